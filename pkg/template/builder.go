package template

import (
	"github.com/byteowlz/tmpltr/pkg/core"
)

// Build turns scanned markers into a Schema, keeping discovery order.
//
// A field is required when it declares no default at all; a dynamic default
// counts as declared. Duplicate ids fail with a DuplicateFieldIDError that
// lists every position of the first id found twice.
func Build(markers []core.Marker) (*core.Schema, error) {
	positions := make(map[string][]core.Position, len(markers))
	var firstDup string
	for _, m := range markers {
		if len(positions[m.ID]) == 1 && firstDup == "" {
			firstDup = m.ID
		}
		positions[m.ID] = append(positions[m.ID], m.Position)
	}
	if firstDup != "" {
		return nil, &core.DuplicateFieldIDError{ID: firstDup, Positions: positions[firstDup]}
	}

	fields := make([]core.Field, len(markers))
	for i, m := range markers {
		fields[i] = core.Field{
			Marker:   m,
			Required: !m.HasDefault(),
			Shape:    shapeOf(m),
		}
	}
	return core.NewSchema(fields), nil
}

func shapeOf(m core.Marker) core.Shape {
	switch {
	case m.Kind == core.KindField:
		return core.ShapeScalar
	case m.Format == core.FormatTable:
		return core.ShapeBlockTable
	default:
		return core.ShapeBlockText
	}
}

// Parse scans src and builds its Schema.
func Parse(src string) (*core.Schema, error) {
	markers, err := Scan(src)
	if err != nil {
		return nil, err
	}
	return Build(markers)
}
