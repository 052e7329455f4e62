// Package reconcile aligns a content document with a template Schema:
// init, validate, get, set and list-blocks. Every function is pure; the
// caller owns loading and saving the document.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/core"
)

// Keys of a block's stored mapping form.
const (
	keyTitle   = "title"
	keyFormat  = "format"
	keyContent = "content"
	keyType    = "type"
	keyColumns = "columns"
	keyRows    = "rows"
)

// blockText extracts the text of a block-text value: a string, or the
// content string of a mapping. ok is false on a shape mismatch.
func blockText(v core.Value) (text core.Value, ok bool) {
	switch {
	case v.IsAbsent():
		return v, true
	case v.IsString():
		return v, true
	case v.IsMapping():
		c := v.Lookup(keyContent)
		if c.IsAbsent() || c.IsString() {
			return c, true
		}
	}
	return core.Value{}, false
}

// table is a parsed block-table value.
type table struct {
	columns []string
	rows    [][]core.Value
}

func (t table) value() core.Value {
	rows := make([]core.Value, len(t.rows))
	for i, r := range t.rows {
		rows[i] = core.Seq(r...)
	}
	return core.Map(
		core.E(keyColumns, core.Strings(t.columns...)),
		core.E(keyRows, core.Seq(rows...)),
	)
}

// check returns the row shape problems of t, one message per bad row.
func (t table) check() []string {
	var out []string
	for i, r := range t.rows {
		if len(r) != len(t.columns) {
			out = append(out, fmt.Sprintf("row %d has %d cells, expected %d (columns: %s)",
				i+1, len(r), len(t.columns), strings.Join(t.columns, ", ")))
		}
	}
	return out
}

func parseTable(v core.Value) (table, bool) {
	cols, rows, ok := content.ParseTable(v)
	if !ok {
		return table{}, false
	}
	return table{columns: cols, rows: rows}, true
}

// checkShape reports a TypeMismatch or ShapeError for v against f. Absent
// values are never a mismatch.
func checkShape(f core.Field, v core.Value) error {
	if v.IsAbsent() {
		return nil
	}
	switch f.Shape {
	case core.ShapeScalar:
		if !v.IsScalar() {
			return &core.TypeMismatchError{Path: f.ID, Expected: "scalar", Found: v.TypeName()}
		}
	case core.ShapeBlockText:
		if _, ok := blockText(v); !ok {
			return &core.TypeMismatchError{Path: f.ID, Expected: "text block", Found: v.TypeName()}
		}
	case core.ShapeBlockTable:
		t, ok := parseTable(v)
		if !ok || !v.IsMapping() {
			return &core.TypeMismatchError{Path: f.ID, Expected: "table", Found: v.TypeName()}
		}
		if problems := t.check(); len(problems) > 0 {
			return &core.ShapeError{Path: f.ID, Reason: strings.Join(problems, "; ")}
		}
	}
	return nil
}

// owner returns the schema field that path equals or lies beneath.
func owner(schema *core.Schema, path string) (core.Field, bool) {
	for p := path; p != ""; {
		if f, ok := schema.Lookup(p); ok {
			return f, true
		}
		i := strings.LastIndex(p, core.PathSeparator)
		if i < 0 {
			break
		}
		p = p[:i]
	}
	return core.Field{}, false
}
