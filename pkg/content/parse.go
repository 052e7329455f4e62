package content

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/byteowlz/tmpltr/pkg/core"
)

// ParseScalar interprets command-line text as a scalar: YAML numbers and
// booleans keep their type, everything else is the text itself.
func ParseScalar(text string) core.Value {
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(text), &n); err != nil || len(n.Content) != 1 {
		return core.String(text)
	}
	node := n.Content[0]
	if node.Kind != yaml.ScalarNode || node.Style != 0 {
		return core.String(text)
	}
	switch node.ShortTag() {
	case "!!int", "!!float", "!!bool":
		return toValue(node)
	}
	return core.String(text)
}

// ParseValue interprets text as a YAML (or JSON) value. Text that does not
// parse is a string.
func ParseValue(text string) core.Value {
	if strings.TrimSpace(text) == "" {
		return core.String(text)
	}
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(text), &n); err != nil || len(n.Content) != 1 {
		return core.String(text)
	}
	v := toValue(n.Content[0])
	if v.IsAbsent() {
		return core.String(text)
	}
	return v
}

// ParseTable reads a table value from its stored form: a mapping with
// columns and rows, or a bare sequence of rows whose first row names the
// columns.
func ParseTable(v core.Value) (columns []string, rows [][]core.Value, ok bool) {
	var rowValues []core.Value
	switch {
	case v.IsMapping():
		cols := v.Lookup("columns")
		if !cols.IsSequence() && !cols.IsAbsent() {
			return nil, nil, false
		}
		for _, c := range cols.Items() {
			s, isStr := c.Str()
			if !isStr {
				if !c.IsScalar() {
					return nil, nil, false
				}
				s = c.Text()
			}
			columns = append(columns, s)
		}
		rs := v.Lookup("rows")
		if !rs.IsSequence() && !rs.IsAbsent() {
			return nil, nil, false
		}
		rowValues = rs.Items()
	case v.IsSequence():
		items := v.Items()
		if len(items) == 0 {
			return nil, nil, true
		}
		if !items[0].IsSequence() {
			return nil, nil, false
		}
		for _, c := range items[0].Items() {
			if !c.IsScalar() {
				return nil, nil, false
			}
			columns = append(columns, c.Text())
		}
		rowValues = items[1:]
	default:
		return nil, nil, false
	}
	for _, r := range rowValues {
		if !r.IsSequence() {
			return nil, nil, false
		}
		rows = append(rows, r.Items())
	}
	return columns, rows, true
}
