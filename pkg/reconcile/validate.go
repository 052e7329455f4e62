package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/core"
)

// Validate checks doc against schema and returns every problem found, in
// schema order followed by unknown paths in document order. UnknownField
// and AmbiguousTitle are warnings; everything else is an error.
func Validate(schema *core.Schema, doc *content.Document) []core.Diagnostic {
	var diags []core.Diagnostic

	for _, f := range schema.Fields() {
		v := doc.Get(f.ID)
		if f.Shape == core.ShapeBlockText {
			if text, ok := blockText(v); ok && !v.IsAbsent() && text.IsAbsent() && f.Required {
				diags = append(diags, missing(f))
				continue
			}
		}
		if v.IsAbsent() {
			if f.Required {
				diags = append(diags, missing(f))
			}
			continue
		}
		if err := checkShape(f, v); err != nil {
			diags = append(diags, fromError(err))
		}
	}

	diags = append(diags, unknownFields(schema, doc)...)
	diags = append(diags, duplicateTitles(schema)...)
	return diags
}

func missing(f core.Field) core.Diagnostic {
	return core.Diagnostic{
		Kind:     core.MissingField,
		Path:     f.ID,
		Message:  fmt.Sprintf("required %s %s is missing", f.Kind, f.ID),
		Severity: core.SeverityError,
	}
}

func fromError(err error) core.Diagnostic {
	var (
		mismatch *core.TypeMismatchError
		shape    *core.ShapeError
	)
	switch {
	case errors.As(err, &mismatch):
		return core.Diagnostic{
			Kind:     core.TypeMismatch,
			Path:     mismatch.Path,
			Message:  fmt.Sprintf("expected %s, found %s", mismatch.Expected, mismatch.Found),
			Severity: core.SeverityError,
		}
	case errors.As(err, &shape):
		return core.Diagnostic{
			Kind:     core.ShapeMismatch,
			Path:     shape.Path,
			Message:  shape.Reason,
			Severity: core.SeverityError,
		}
	}
	return core.Diagnostic{Kind: core.TypeMismatch, Message: err.Error(), Severity: core.SeverityError}
}

func unknown(path string) core.Diagnostic {
	return core.Diagnostic{
		Kind:     core.UnknownField,
		Path:     path,
		Message:  "not declared by the template",
		Severity: core.SeverityWarning,
	}
}

// unknownFields walks namespaces the schema knows and reports the first
// path on each branch that it does not. Field values are not descended
// into, and the meta section is reserved.
func unknownFields(schema *core.Schema, doc *content.Document) []core.Diagnostic {
	var diags []core.Diagnostic
	var walk func(prefix string, v core.Value)
	walk = func(prefix string, v core.Value) {
		for _, e := range v.Entries() {
			path := e.Key
			if prefix != "" {
				path = core.JoinPath(prefix, e.Key)
			}
			if _, ok := schema.Lookup(path); ok {
				continue
			}
			if schema.IsAncestor(path) {
				if e.Value.IsMapping() {
					walk(path, e.Value)
				}
				continue
			}
			diags = append(diags, unknown(path))
		}
	}

	root := doc.Value()
	for _, e := range root.Entries() {
		if e.Key == core.MetaKey {
			continue
		}
		walk("", core.Map(e))
	}
	return diags
}

func duplicateTitles(schema *core.Schema) []core.Diagnostic {
	byTitle := map[string][]string{}
	var order []string
	for _, f := range schema.Blocks() {
		if f.Title == "" {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(f.Title))
		if _, seen := byTitle[key]; !seen {
			order = append(order, key)
		}
		byTitle[key] = append(byTitle[key], f.ID)
	}
	var diags []core.Diagnostic
	for _, key := range order {
		paths := byTitle[key]
		if len(paths) < 2 {
			continue
		}
		diags = append(diags, core.Diagnostic{
			Kind:     core.AmbiguousTitle,
			Path:     paths[0],
			Message:  fmt.Sprintf("title %q is shared by %s", key, strings.Join(paths, ", ")),
			Severity: core.SeverityWarning,
		})
	}
	return diags
}
