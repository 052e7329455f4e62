package reconcile

import (
	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/core"
)

// Coerce turns command line text into the value Set expects at locator:
// text blocks take the text as is, tables parse it as YAML or JSON, and
// scalar fields and unknown paths get a number or bool when the text reads
// as one.
func Coerce(schema *core.Schema, doc *content.Document, locator, text string) (core.Value, error) {
	path, _, err := resolve(schema, doc, locator)
	if err != nil {
		return core.Value{}, err
	}
	f, ok := owner(schema, path)
	if !ok {
		return content.ParseScalar(text), nil
	}
	switch f.Shape {
	case core.ShapeBlockText:
		return core.String(text), nil
	case core.ShapeBlockTable:
		if f.ID != path && path == core.JoinPath(f.ID, keyTitle) {
			return core.String(text), nil
		}
		return content.ParseValue(text), nil
	}
	return content.ParseScalar(text), nil
}
