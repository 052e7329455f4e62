package template

import (
	"encoding/json"
	"strings"

	"github.com/byteowlz/tmpltr/pkg/core"
)

// JSONSchemaDraft is the dialect of generated schemas.
const JSONSchemaDraft = "https://json-schema.org/draft/2020-12/schema"

type schemaNode struct {
	keys     []string
	children map[string]*schemaNode
	field    *core.Field
	required bool
}

func (n *schemaNode) child(key string) *schemaNode {
	if n.children == nil {
		n.children = map[string]*schemaNode{}
	}
	c, ok := n.children[key]
	if !ok {
		c = &schemaNode{}
		n.children[key] = c
		n.keys = append(n.keys, key)
	}
	return c
}

// JSONSchema describes content files for schema as a JSON Schema document.
// Namespaces become nested objects; properties keep schema order. Unknown
// properties are allowed since they only warrant a warning.
func JSONSchema(schema *core.Schema, title string) ([]byte, error) {
	root := &schemaNode{}
	for _, f := range schema.Fields() {
		node := root
		segments := strings.Split(f.ID, ".")
		for _, seg := range segments {
			node = node.child(seg)
			if f.Required {
				node.required = true
			}
		}
		node.field = &f
	}

	doc := objectSchema(root).
		With("$schema", core.String(JSONSchemaDraft))
	if title != "" {
		doc = doc.With("title", core.String(title))
	}
	props := doc.Lookup("properties")
	if props.Lookup(core.MetaKey).IsAbsent() {
		props = props.With(core.MetaKey, core.Map(core.E("type", core.String("object"))))
		doc = doc.With("properties", props)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func objectSchema(n *schemaNode) core.Value {
	props := core.Map()
	var required []string
	for _, key := range n.keys {
		c := n.children[key]
		props = props.With(key, nodeSchema(c))
		if c.required {
			required = append(required, key)
		}
	}
	out := core.Map(
		core.E("type", core.String("object")),
		core.E("properties", props),
	)
	if len(required) > 0 {
		out = out.With("required", core.Strings(required...))
	}
	return out
}

func nodeSchema(n *schemaNode) core.Value {
	// A path that is both a field and a namespace keeps the field shape.
	if n.field == nil {
		return objectSchema(n)
	}
	f := n.field
	var out core.Value
	switch f.Shape {
	case core.ShapeBlockTable:
		out = core.Map(
			core.E("type", core.String("object")),
			core.E("properties", core.Map(
				core.E("title", core.Map(core.E("type", core.String("string")))),
				core.E("type", core.Map(core.E("const", core.String(core.FormatTable)))),
				core.E("columns", core.Map(
					core.E("type", core.String("array")),
					core.E("items", core.Map(core.E("type", core.String("string")))),
				)),
				core.E("rows", core.Map(
					core.E("type", core.String("array")),
					core.E("items", core.Map(core.E("type", core.String("array")))),
				)),
			)),
			core.E("required", core.Strings("columns", "rows")),
		)
	case core.ShapeBlockText:
		out = core.Map(core.E("oneOf", core.Seq(
			core.Map(core.E("type", core.String("string"))),
			core.Map(
				core.E("type", core.String("object")),
				core.E("properties", core.Map(
					core.E("title", core.Map(core.E("type", core.String("string")))),
					core.E("format", core.Map(core.E("type", core.String("string")))),
					core.E("content", core.Map(core.E("type", core.String("string")))),
				)),
				core.E("required", core.Strings("content")),
			),
		)))
	default:
		out = core.Map(core.E("type", core.Strings("string", "number", "boolean")))
	}
	if f.Title != "" {
		out = out.With("title", core.String(f.Title))
	}
	if f.Format != "" {
		out = out.With("x-format", core.String(f.Format))
	}
	if !f.Default.IsAbsent() {
		out = out.With("default", f.Default)
	}
	return out
}
