package service

import (
	"path/filepath"
	"time"

	"github.com/byteowlz/tmpltr/pkg/core"
	"github.com/byteowlz/tmpltr/pkg/template"
)

// Paths of the reserved meta section.
const (
	MetaTemplate        = "meta.template"
	MetaTemplateID      = "meta.template_id"
	MetaTemplateVersion = "meta.template_version"
	MetaGeneratedAt     = "meta.generated_at"
)

// meta builds the meta section init writes for a content file at file.
// The template reference is relative to the content file when possible.
func meta(file string, tmpl *template.Template, now time.Time) core.Value {
	ref := tmpl.Path
	if absFile, err := filepath.Abs(file); err == nil {
		if absTmpl, err := filepath.Abs(tmpl.Path); err == nil {
			if rel, err := filepath.Rel(filepath.Dir(absFile), absTmpl); err == nil {
				ref = rel
			}
		}
	}
	entries := []core.Entry{
		core.E("template", core.String(filepath.ToSlash(ref))),
		core.E("template_id", core.String(tmpl.ID)),
	}
	if tmpl.Version != "" {
		entries = append(entries, core.E("template_version", core.String(tmpl.Version)))
	}
	entries = append(entries, core.E("generated_at", core.String(now.UTC().Format(time.RFC3339))))
	return core.Map(entries...)
}
