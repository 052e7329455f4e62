package reconcile

import (
	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/core"
)

type initOptions struct {
	meta  core.Value
	extra []core.Field
}

// InitOption customizes Init.
type InitOption func(*initOptions)

// WithMeta writes the given mapping into the reserved meta section,
// replacing keys it names and keeping all others.
func WithMeta(meta core.Value) InitOption {
	return func(o *initOptions) {
		o.meta = meta
	}
}

// WithExtraFields also fills fields the schema does not declare, e.g. data
// the template reads without a marker. An extra field is skipped when the
// schema covers its path or content already holds something there.
func WithExtraFields(fields ...core.Field) InitOption {
	return func(o *initOptions) {
		o.extra = append(o.extra, fields...)
	}
}

// Init returns a content document holding every schema path. Values already
// present in existing are kept verbatim, as is anything existing holds that
// the schema does not know. Missing fields get their literal default or a
// shape-appropriate empty value. Fields with a dynamic default are left out
// so that the template evaluates them. Existing data is never dropped: a
// non-mapping value where a field's namespace must go is a
// TypeMismatchError.
func Init(schema *core.Schema, existing *content.Document, opts ...InitOption) (*content.Document, error) {
	var o initOptions
	for _, opt := range opts {
		opt(&o)
	}

	doc := content.New()
	if existing != nil {
		doc = existing.Clone()
	}

	for _, e := range o.meta.Entries() {
		if e.Value.IsAbsent() {
			continue
		}
		path := core.JoinPath(core.MetaKey, e.Key)
		if err := occupied(doc, path); err != nil {
			return nil, err
		}
		if err := doc.Set(path, e.Value); err != nil {
			return nil, err
		}
	}

	for _, f := range schema.Fields() {
		if doc.Has(f.ID) || f.Dynamic {
			continue
		}
		if err := occupied(doc, f.ID); err != nil {
			return nil, err
		}
		if err := doc.Set(f.ID, skeleton(f)); err != nil {
			return nil, err
		}
	}

	for _, f := range o.extra {
		if schema.Contains(f.ID) || doc.Has(f.ID) {
			continue
		}
		if _, inside := owner(schema, f.ID); inside || occupied(doc, f.ID) != nil {
			continue
		}
		if err := doc.Set(f.ID, skeleton(f)); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// occupied reports a TypeMismatchError when an ancestor of path holds a
// value other than a mapping.
func occupied(doc *content.Document, path string) error {
	segments, err := core.SplitPath(path)
	if err != nil {
		return err
	}
	for i := 1; i < len(segments); i++ {
		prefix := core.JoinPath(segments[:i]...)
		if v := doc.Get(prefix); !v.IsAbsent() && !v.IsMapping() {
			return &core.TypeMismatchError{Path: prefix, Expected: "mapping", Found: v.TypeName()}
		}
	}
	return nil
}

// skeleton is the value Init writes for a field missing from content.
func skeleton(f core.Field) core.Value {
	switch f.Shape {
	case core.ShapeBlockText:
		text := f.Default
		if !text.IsString() {
			text = core.String("")
		}
		v := core.Map()
		if f.Title != "" {
			v = v.With(keyTitle, core.String(f.Title))
		}
		return v.
			With(keyFormat, core.String(f.Format)).
			With(keyContent, text)
	case core.ShapeBlockTable:
		v := core.Map()
		if f.Title != "" {
			v = v.With(keyTitle, core.String(f.Title))
		}
		return v.
			With(keyType, core.String(core.FormatTable)).
			With(keyColumns, core.Seq()).
			With(keyRows, core.Seq())
	default:
		if !f.Default.IsAbsent() {
			return f.Default
		}
		return core.String("")
	}
}
