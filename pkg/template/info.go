package template

import (
	"path/filepath"
	"strings"

	"github.com/byteowlz/tmpltr/pkg/core"
)

// Template is a parsed template with the metadata declared in its leading
// comments:
//
//	// @description: Quarterly report
//	// @version: 1.2.0
type Template struct {
	ID          string       `json:"id"`
	Path        string       `json:"path"`
	Description string       `json:"description,omitempty"`
	Version     string       `json:"version,omitempty"`
	Schema      *core.Schema `json:"-"`
	// Accesses are the data reads in the template's code.
	Accesses []Access `json:"-"`
}

// New parses template source read from path. The template id is the file
// name without its extension.
func New(path, src string) (*Template, error) {
	s, err := scan(src)
	if err != nil {
		return nil, err
	}
	schema, err := Build(s.markers)
	if err != nil {
		return nil, err
	}
	t := &Template{
		ID:       IDFromPath(path),
		Path:     path,
		Schema:   schema,
		Accesses: s.accessList(),
	}
	t.Description, t.Version = metadata(src)
	return t, nil
}

// IDFromPath derives a template id from its file name.
func IDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// metadata reads @description and @version from line comments. Only the
// first occurrence of each counts.
func metadata(src string) (description, version string) {
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "//") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "//"))
		if v, ok := strings.CutPrefix(line, "@description:"); ok && description == "" {
			description = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, "@version:"); ok && version == "" {
			version = strings.TrimSpace(v)
		}
	}
	return description, version
}
