// Package core holds the domain model shared by every tmpltr component:
// markers found in templates, the Schema derived from them, content values,
// diagnostics and the error taxonomy.
package core

import (
	"fmt"
	"strings"
)

// MarkerKind distinguishes field markers from block markers.
type MarkerKind string

const (
	KindField MarkerKind = "field"
	KindBlock MarkerKind = "block"
)

// Shape is the expected structure of the content stored for a Field.
type Shape string

const (
	ShapeScalar     Shape = "scalar"
	ShapeBlockText  Shape = "block-text"
	ShapeBlockTable Shape = "block-table"
)

// Block formats understood by the renderer.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatTypst    = "typst"
	FormatPlain    = "plain"
	FormatTable    = "table"
)

// MetaKey is the top-level content section reserved for file metadata.
const MetaKey = "meta"

// Position locates a byte in template source. Line and Column are 1-based.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Marker is one editable call-site found in a template.
type Marker struct {
	ID     string     `json:"id"`
	Kind   MarkerKind `json:"kind"`
	Format string     `json:"format"`
	Title  string     `json:"title,omitempty"`

	// Default is the literal default, Absent when none was declared.
	Default Value `json:"default"`
	// Dynamic is set when the default is an expression that is not a
	// literal; DefaultExpr then holds its source text, unevaluated.
	Dynamic     bool   `json:"dynamic,omitempty"`
	DefaultExpr string `json:"default_expr,omitempty"`

	// ValueExpr is the source text of a field marker's value argument.
	ValueExpr string `json:"value_expr,omitempty"`
	// Body is the raw text between a block marker's brackets.
	Body string `json:"-"`

	Position Position `json:"position"`
}

// HasDefault reports whether the marker declared any default, literal or
// dynamic.
func (m Marker) HasDefault() bool {
	return !m.Default.IsAbsent() || m.Dynamic
}

// Field is a Schema entry: a marker plus what content must look like.
type Field struct {
	Marker
	Required bool  `json:"required"`
	Shape    Shape `json:"shape"`
}

// IsBlock reports whether the field addresses a text or table block.
func (f Field) IsBlock() bool {
	return f.Shape == ShapeBlockText || f.Shape == ShapeBlockTable
}

// Schema is the ordered, immutable set of Fields derived from a template.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema wraps fields in discovery order. Callers must guarantee unique
// ids; the template builder does.
func NewSchema(fields []Field) *Schema {
	s := &Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)
	for i, f := range s.fields {
		s.index[f.ID] = i
	}
	return s
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// Fields returns a copy of all fields in schema order.
func (s *Schema) Fields() []Field {
	if s == nil {
		return nil
	}
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Lookup returns the field registered for path.
func (s *Schema) Lookup(path string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	i, ok := s.index[path]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Blocks returns the block fields in schema order.
func (s *Schema) Blocks() []Field {
	var out []Field
	for _, f := range s.Fields() {
		if f.IsBlock() {
			out = append(out, f)
		}
	}
	return out
}

// Paths returns every field path in schema order.
func (s *Schema) Paths() []string {
	fields := s.Fields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.ID
	}
	return out
}

// Contains reports whether path is a field path or an ancestor of one.
func (s *Schema) Contains(path string) bool {
	if _, ok := s.Lookup(path); ok {
		return true
	}
	return s.IsAncestor(path)
}

// IsAncestor reports whether path is a strict prefix of some field path.
func (s *Schema) IsAncestor(path string) bool {
	if s == nil {
		return false
	}
	prefix := path + "."
	for _, f := range s.fields {
		if strings.HasPrefix(f.ID, prefix) {
			return true
		}
	}
	return false
}
