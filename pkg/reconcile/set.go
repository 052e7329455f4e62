package reconcile

import (
	"slices"
	"strings"

	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/core"
)

// SetResult is the outcome of Set.
type SetResult struct {
	Path string `json:"path"`
	// Field is nil when the schema does not declare Path.
	Field    *core.Field       `json:"field,omitempty"`
	Warnings []core.Diagnostic `json:"warnings,omitempty"`
}

// Set writes v at the path addressed by locator (a path or a block title).
//
// Declared paths are type checked: scalar fields take a scalar, text blocks
// a string, tables a {columns, rows} mapping (or a sequence of rows led by
// the header row) whose rows all match the columns. Tables that fail the row
// check are not written.
//
// A path below a declared block is checked by the shape the block has after
// the write. A path above declared fields takes a mapping: every declared
// field it carries is checked, and declared fields it leaves out keep their
// current content. Paths the schema does not declare are written unchecked
// and reported with an UnknownField warning.
func Set(schema *core.Schema, doc *content.Document, locator string, v core.Value) (SetResult, error) {
	path, known, err := resolve(schema, doc, locator)
	if err != nil {
		return SetResult{}, err
	}
	res := SetResult{Path: path}

	if !known {
		if schema.IsAncestor(path) {
			warnings, err := setAncestor(schema, doc, path, v)
			if err != nil {
				return SetResult{}, err
			}
			res.Warnings = warnings
			return res, nil
		}
		if f, ok := owner(schema, path); ok {
			warnings, err := setInside(doc, f, path, v)
			if err != nil {
				return SetResult{}, err
			}
			res.Field = &f
			res.Warnings = warnings
			return res, nil
		}
		if err := doc.Set(path, v); err != nil {
			return SetResult{}, err
		}
		res.Warnings = append(res.Warnings, unknown(path))
		return res, nil
	}

	f, _ := schema.Lookup(path)
	res.Field = &f
	switch f.Shape {
	case core.ShapeScalar:
		err = setScalar(doc, f, v)
	case core.ShapeBlockText:
		err = setText(doc, f, v)
	case core.ShapeBlockTable:
		err = setTable(doc, f, v)
	}
	if err != nil {
		return SetResult{}, err
	}
	return res, nil
}

func setScalar(doc *content.Document, f core.Field, v core.Value) error {
	if !v.IsScalar() {
		return &core.TypeMismatchError{Path: f.ID, Expected: "scalar", Found: v.TypeName()}
	}
	return doc.Set(f.ID, v)
}

func setText(doc *content.Document, f core.Field, v core.Value) error {
	if !v.IsString() {
		return &core.TypeMismatchError{Path: f.ID, Expected: "string", Found: v.TypeName()}
	}
	if doc.Get(f.ID).IsMapping() {
		return doc.Set(core.JoinPath(f.ID, keyContent), v)
	}
	if doc.Get(f.ID).IsAbsent() {
		return doc.Set(f.ID, skeleton(f).With(keyContent, v))
	}
	return doc.Set(f.ID, v)
}

func setTable(doc *content.Document, f core.Field, v core.Value) error {
	t, ok := parseTable(v)
	if !ok {
		return &core.TypeMismatchError{Path: f.ID, Expected: "table", Found: v.TypeName()}
	}
	if problems := t.check(); len(problems) > 0 {
		return &core.ShapeError{Path: f.ID, Reason: strings.Join(problems, "; ")}
	}
	stored := t.value()
	if existing := doc.Get(f.ID); existing.IsMapping() {
		// Keep title, type and any other keys of the stored block.
		if err := doc.Set(core.JoinPath(f.ID, keyColumns), stored.Lookup(keyColumns)); err != nil {
			return err
		}
		return doc.Set(core.JoinPath(f.ID, keyRows), stored.Lookup(keyRows))
	}
	base := skeleton(f)
	return doc.Set(f.ID, base.With(keyColumns, stored.Lookup(keyColumns)).With(keyRows, stored.Lookup(keyRows)))
}

// blockKeys are the keys a stored block mapping may hold, by shape.
var blockKeys = map[core.Shape][]string{
	core.ShapeBlockText:  {keyTitle, keyFormat, keyContent},
	core.ShapeBlockTable: {keyTitle, keyType, keyColumns, keyRows},
}

// setInside writes below a declared field, e.g. a block's title or a table's
// rows. Scalars have no inside. The block must keep its shape, and keys a
// block does not hold are written with an UnknownField warning.
func setInside(doc *content.Document, f core.Field, path string, v core.Value) ([]core.Diagnostic, error) {
	rel := strings.TrimPrefix(path, f.ID+core.PathSeparator)
	head, _, _ := strings.Cut(rel, core.PathSeparator)
	switch f.Shape {
	case core.ShapeScalar:
		return nil, &core.TypeMismatchError{Path: f.ID, Expected: "scalar", Found: "mapping"}
	case core.ShapeBlockText:
		if rel == keyContent {
			return nil, setText(doc, f, v)
		}
		if (rel == keyTitle || rel == keyFormat) && !v.IsScalar() {
			return nil, &core.TypeMismatchError{Path: path, Expected: "scalar", Found: v.TypeName()}
		}
	}

	write := func(d *content.Document) error {
		// A block stored as bare text moves its text under content first.
		if s := d.Get(f.ID); f.Shape == core.ShapeBlockText && s.IsString() {
			if err := d.Set(f.ID, skeleton(f).With(keyContent, s)); err != nil {
				return err
			}
		}
		return d.Set(path, v)
	}
	trial := doc.Clone()
	if err := write(trial); err != nil {
		return nil, err
	}
	if err := checkShape(f, trial.Get(f.ID)); err != nil {
		return nil, err
	}
	if err := write(doc); err != nil {
		return nil, err
	}
	if !slices.Contains(blockKeys[f.Shape], head) {
		return []core.Diagnostic{unknown(path)}, nil
	}
	return nil, nil
}

// setAncestor writes a mapping above declared fields. Each declared field
// in it must match its shape; tables given as header-led rows are stored in
// mapping form. Declared fields missing from v keep their current values.
func setAncestor(schema *core.Schema, doc *content.Document, path string, v core.Value) ([]core.Diagnostic, error) {
	if !v.IsMapping() {
		return nil, &core.TypeMismatchError{Path: path, Expected: "mapping", Found: v.TypeName()}
	}
	warnings, err := undeclared(schema, path, v)
	if err != nil {
		return nil, err
	}
	var fields []core.Field
	previous := map[string]core.Value{}
	for _, f := range schema.Fields() {
		if strings.HasPrefix(f.ID, path+core.PathSeparator) {
			fields = append(fields, f)
			previous[f.ID] = doc.Get(f.ID)
		}
	}

	write := func(d *content.Document) error {
		if err := d.Set(path, v); err != nil {
			return err
		}
		for _, f := range fields {
			got := d.Get(f.ID)
			switch {
			case got.IsAbsent():
				if old := previous[f.ID]; !old.IsAbsent() {
					if err := d.Set(f.ID, old); err != nil {
						return err
					}
				}
			case f.Shape == core.ShapeBlockTable && got.IsSequence():
				if err := setTable(d, f, got); err != nil {
					return err
				}
			default:
				if err := checkShape(f, got); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := write(doc.Clone()); err != nil {
		return nil, err
	}
	if err := write(doc); err != nil {
		return nil, err
	}
	return warnings, nil
}

// undeclared lists the first path on each branch of v, rooted at prefix,
// that the schema neither declares nor leads to. A namespace above declared
// fields must itself be a mapping.
func undeclared(schema *core.Schema, prefix string, v core.Value) ([]core.Diagnostic, error) {
	var diags []core.Diagnostic
	for _, e := range v.Entries() {
		path := core.JoinPath(prefix, e.Key)
		if _, ok := schema.Lookup(path); ok {
			continue
		}
		if !schema.IsAncestor(path) {
			diags = append(diags, unknown(path))
			continue
		}
		if !e.Value.IsMapping() && !e.Value.IsAbsent() {
			return nil, &core.TypeMismatchError{Path: path, Expected: "mapping", Found: e.Value.TypeName()}
		}
		nested, err := undeclared(schema, path, e.Value)
		if err != nil {
			return nil, err
		}
		diags = append(diags, nested...)
	}
	return diags, nil
}
