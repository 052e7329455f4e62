package reconcile

import (
	"errors"

	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/core"
)

// Source tells where a Get result came from.
type Source string

const (
	FromContent  Source = "content"
	FromDefault  Source = "default"
	FromFallback Source = "fallback"
)

// Result is the outcome of Get.
type Result struct {
	Path string `json:"path"`
	// Field is nil when the schema does not declare Path.
	Field  *core.Field `json:"field,omitempty"`
	Value  core.Value  `json:"value"`
	Source Source      `json:"source"`
}

type getOptions struct {
	fallback core.Value
}

// GetOption customizes Get.
type GetOption func(*getOptions)

// WithDefault supplies the value returned when neither content nor the
// template provide one.
func WithDefault(v core.Value) GetOption {
	return func(o *getOptions) {
		o.fallback = v
	}
}

// Get reads the value addressed by locator (a path or a block title).
// Resolution order: the content value, the template's literal default, the
// caller's default. When none applies the result is a PathNotFoundError.
//
// Text blocks yield their text; tables yield {columns, rows}.
func Get(schema *core.Schema, doc *content.Document, locator string, opts ...GetOption) (Result, error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	path, known, err := resolve(schema, doc, locator)
	if err != nil {
		return Result{}, err
	}
	res := Result{Path: path}

	v := doc.Get(path)
	if known {
		f, _ := schema.Lookup(path)
		res.Field = &f
		v, err = normalize(f, v)
		if err != nil {
			return Result{}, err
		}
		if v.IsAbsent() && !f.Default.IsAbsent() {
			res.Value, res.Source = f.Default, FromDefault
			return res, nil
		}
	}
	if !v.IsAbsent() {
		res.Value, res.Source = v, FromContent
		return res, nil
	}
	if !o.fallback.IsAbsent() {
		res.Value, res.Source = o.fallback, FromFallback
		return res, nil
	}
	return Result{}, &core.PathNotFoundError{Path: path}
}

// normalize converts a stored value to the form Get returns for f.
func normalize(f core.Field, v core.Value) (core.Value, error) {
	if v.IsAbsent() {
		return v, nil
	}
	if err := checkShape(f, v); err != nil {
		if f.Shape != core.ShapeBlockTable {
			return core.Value{}, err
		}
		// A ragged table is still readable; validate reports it.
		var shape *core.ShapeError
		if !errors.As(err, &shape) {
			return core.Value{}, err
		}
	}
	switch f.Shape {
	case core.ShapeBlockText:
		text, _ := blockText(v)
		return text, nil
	case core.ShapeBlockTable:
		t, _ := parseTable(v)
		return t.value(), nil
	}
	return v, nil
}
