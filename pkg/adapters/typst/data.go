// Package typst renders content files by handing them to the external
// typst compiler.
package typst

import (
	"strings"

	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/core"
	"github.com/byteowlz/tmpltr/pkg/markdown"
)

// Block formats understood when preparing render data.
const (
	FormatMarkdown = "markdown"
	FormatPlain    = "plain"
	FormatTypst    = "typst"
)

// Warning is a markdown conversion warning for one block.
type Warning struct {
	Path string `json:"path"`
	markdown.Warning
}

// PrepareData returns the content tree as plain data for the template,
// with every text block converted to Typst markup: markdown is converted,
// plain text is escaped and typst passes through unchanged. The format
// stored in the content wins over the one declared by the template.
func PrepareData(schema *core.Schema, doc *content.Document) (map[string]any, []Warning) {
	root := doc.Value()
	var warnings []Warning

	for _, f := range schema.Blocks() {
		if f.Shape != core.ShapeBlockText {
			continue
		}
		stored := lookupPath(root, f.ID)
		format := f.Format
		text, isText := stored.Str()
		if stored.IsMapping() {
			if fm, ok := stored.Lookup("format").Str(); ok && fm != "" {
				format = fm
			}
			text, isText = stored.Lookup("content").Str()
		}
		if !isText {
			continue
		}

		converted, blockWarnings := convert(format, text)
		for _, w := range blockWarnings {
			warnings = append(warnings, Warning{Path: f.ID, Warning: w})
		}

		if stored.IsMapping() {
			root = setPath(root, f.ID+core.PathSeparator+"content", core.String(converted))
		} else {
			root = setPath(root, f.ID, core.String(converted))
		}
	}

	data, _ := root.Interface().(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	return data, warnings
}

func convert(format, text string) (string, []markdown.Warning) {
	switch strings.ToLower(format) {
	case FormatTypst:
		return text, nil
	case FormatPlain, "text":
		return markdown.Escape(text), nil
	default:
		return markdown.Convert(text)
	}
}

func lookupPath(v core.Value, path string) core.Value {
	for _, seg := range strings.Split(path, core.PathSeparator) {
		v = v.Lookup(seg)
		if v.IsAbsent() {
			return v
		}
	}
	return v
}

// setPath returns v with the value at path replaced. Missing mappings on
// the way are created.
func setPath(v core.Value, path string, val core.Value) core.Value {
	head, rest, nested := strings.Cut(path, core.PathSeparator)
	if !nested {
		return v.With(head, val)
	}
	child := v.Lookup(head)
	if !child.IsMapping() {
		child = core.Map()
	}
	return v.With(head, setPath(child, rest, val))
}
