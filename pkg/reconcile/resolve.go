package reconcile

import (
	"errors"
	"strings"

	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/core"
)

// ResolveByTitle returns the path of the block whose title matches title,
// ignoring case and surrounding space. A block without a title in the
// template is matched by the title stored in content. No match is a
// PathNotFoundError; several matches are an AmbiguousTitleError listing
// every candidate in schema order.
func ResolveByTitle(doc *content.Document, schema *core.Schema, title string) (string, error) {
	want := strings.TrimSpace(title)
	var candidates []string
	for _, f := range schema.Blocks() {
		t := f.Title
		if t == "" && doc != nil {
			if s, ok := doc.Get(core.JoinPath(f.ID, keyTitle)).Str(); ok {
				t = s
			}
		}
		if t != "" && strings.EqualFold(strings.TrimSpace(t), want) {
			candidates = append(candidates, f.ID)
		}
	}
	switch len(candidates) {
	case 0:
		return "", &core.PathNotFoundError{Path: title}
	case 1:
		return candidates[0], nil
	}
	return "", &core.AmbiguousTitleError{Title: title, Candidates: candidates}
}

// resolve turns a locator into a path: a schema path, then a block title,
// then any valid path. known is false when the schema does not declare the
// path.
func resolve(schema *core.Schema, doc *content.Document, locator string) (path string, known bool, err error) {
	if _, ok := schema.Lookup(locator); ok {
		return locator, true, nil
	}
	if core.ValidPath(locator) && doc != nil && doc.Has(locator) {
		return locator, false, nil
	}
	path, err = ResolveByTitle(doc, schema, locator)
	if err == nil {
		return path, true, nil
	}
	var notFound *core.PathNotFoundError
	if errors.As(err, &notFound) && core.ValidPath(locator) {
		return locator, false, nil
	}
	return "", false, err
}

// ListBlocks returns the block fields of schema in schema order.
func ListBlocks(schema *core.Schema) []core.Field {
	return schema.Blocks()
}
