package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	Absent ValueKind = iota
	Mapping
	Sequence
	Scalar
)

func (k ValueKind) String() string {
	switch k {
	case Mapping:
		return "mapping"
	case Sequence:
		return "sequence"
	case Scalar:
		return "scalar"
	default:
		return "absent"
	}
}

// ScalarKind tags the scalar type of a Scalar value.
type ScalarKind int

const (
	StringScalar ScalarKind = iota
	NumberScalar
	BoolScalar
)

// Entry is one key/value pair of an ordered Mapping.
type Entry struct {
	Key   string
	Value Value
}

// Value is a node of a content tree: Absent, an ordered Mapping, a Sequence
// or a Scalar (string, number or boolean). The zero Value is Absent.
//
// Numbers keep their literal text so that values read from a content file
// compare and print exactly as written.
type Value struct {
	kind    ValueKind
	scalar  ScalarKind
	text    string
	entries []Entry
	items   []Value
}

// String returns a string scalar.
func String(s string) Value {
	return Value{kind: Scalar, scalar: StringScalar, text: s}
}

// Number returns a number scalar from its literal text.
func Number(literal string) Value {
	return Value{kind: Scalar, scalar: NumberScalar, text: literal}
}

// Int returns a number scalar.
func Int(i int64) Value {
	return Number(strconv.FormatInt(i, 10))
}

// Float returns a number scalar.
func Float(f float64) Value {
	return Number(strconv.FormatFloat(f, 'g', -1, 64))
}

// Bool returns a boolean scalar.
func Bool(b bool) Value {
	return Value{kind: Scalar, scalar: BoolScalar, text: strconv.FormatBool(b)}
}

// Map returns a Mapping holding the entries in order. Later duplicates of a
// key replace the earlier value in place.
func Map(entries ...Entry) Value {
	v := Value{kind: Mapping, entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		v = v.With(e.Key, e.Value)
	}
	return v
}

// Seq returns a Sequence holding items in order.
func Seq(items ...Value) Value {
	out := make([]Value, len(items))
	copy(out, items)
	return Value{kind: Sequence, items: out}
}

// Strings returns a Sequence of string scalars.
func Strings(items ...string) Value {
	out := make([]Value, len(items))
	for i, s := range items {
		out[i] = String(s)
	}
	return Value{kind: Sequence, items: out}
}

// E is shorthand for building a mapping Entry.
func E(key string, v Value) Entry {
	return Entry{Key: key, Value: v}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) ScalarKind() ScalarKind { return v.scalar }
func (v Value) IsAbsent() bool { return v.kind == Absent }
func (v Value) IsMapping() bool { return v.kind == Mapping }
func (v Value) IsSequence() bool { return v.kind == Sequence }
func (v Value) IsScalar() bool { return v.kind == Scalar }

// IsString reports whether v is a string scalar.
func (v Value) IsString() bool {
	return v.kind == Scalar && v.scalar == StringScalar
}

// Str returns the string held by a string scalar.
func (v Value) Str() (string, bool) {
	if !v.IsString() {
		return "", false
	}
	return v.text, true
}

// Text renders a scalar as text. Non-scalars render as an empty string.
func (v Value) Text() string {
	if v.kind != Scalar {
		return ""
	}
	return v.text
}

// Float64 parses a number scalar.
func (v Value) Float64() (float64, bool) {
	if v.kind != Scalar || v.scalar != NumberScalar {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	return f, err == nil
}

// Boolean returns the value of a boolean scalar.
func (v Value) Boolean() (bool, bool) {
	if v.kind != Scalar || v.scalar != BoolScalar {
		return false, false
	}
	return v.text == "true", true
}

// Len returns the number of entries of a Mapping or items of a Sequence.
func (v Value) Len() int {
	switch v.kind {
	case Mapping:
		return len(v.entries)
	case Sequence:
		return len(v.items)
	}
	return 0
}

// Lookup returns the value stored under key, or Absent.
func (v Value) Lookup(key string) Value {
	if v.kind != Mapping {
		return Value{}
	}
	for _, e := range v.entries {
		if e.Key == key {
			return e.Value
		}
	}
	return Value{}
}

// Keys returns the mapping keys in order.
func (v Value) Keys() []string {
	if v.kind != Mapping {
		return nil
	}
	keys := make([]string, len(v.entries))
	for i, e := range v.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the mapping entries.
func (v Value) Entries() []Entry {
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Items returns a copy of the sequence items.
func (v Value) Items() []Value {
	out := make([]Value, len(v.items))
	copy(out, v.items)
	return out
}

// With returns a copy of the mapping with key set to val. The position of an
// existing key is kept; new keys are appended.
func (v Value) With(key string, val Value) Value {
	if v.kind != Mapping {
		v = Value{kind: Mapping}
	}
	entries := make([]Entry, len(v.entries), len(v.entries)+1)
	copy(entries, v.entries)
	for i := range entries {
		if entries[i].Key == key {
			entries[i].Value = val
			return Value{kind: Mapping, entries: entries}
		}
	}
	entries = append(entries, Entry{Key: key, Value: val})
	return Value{kind: Mapping, entries: entries}
}

// Equal reports deep equality, including mapping key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Absent:
		return true
	case Scalar:
		return v.scalar == o.scalar && v.text == o.text
	case Mapping:
		if len(v.entries) != len(o.entries) {
			return false
		}
		for i := range v.entries {
			if v.entries[i].Key != o.entries[i].Key || !v.entries[i].Value.Equal(o.entries[i].Value) {
				return false
			}
		}
		return true
	case Sequence:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// TypeName describes the value for diagnostics ("string", "mapping", ...).
func (v Value) TypeName() string {
	if v.kind != Scalar {
		return v.kind.String()
	}
	switch v.scalar {
	case NumberScalar:
		return "number"
	case BoolScalar:
		return "boolean"
	default:
		return "string"
	}
}

// Interface converts the value to plain Go data (map[string]any, []any,
// string, float64, bool, nil) suitable for JSON encoding.
func (v Value) Interface() any {
	switch v.kind {
	case Mapping:
		m := make(map[string]any, len(v.entries))
		for _, e := range v.entries {
			m[e.Key] = e.Value.Interface()
		}
		return m
	case Sequence:
		l := make([]any, len(v.items))
		for i, item := range v.items {
			l[i] = item.Interface()
		}
		return l
	case Scalar:
		switch v.scalar {
		case NumberScalar:
			if f, ok := v.Float64(); ok {
				return f
			}
			return v.text
		case BoolScalar:
			return v.text == "true"
		default:
			return v.text
		}
	}
	return nil
}

// MarshalJSON keeps mapping key order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Mapping:
		var b strings.Builder
		b.WriteByte('{')
		for i, e := range v.entries {
			if i > 0 {
				b.WriteByte(',')
			}
			key, err := json.Marshal(e.Key)
			if err != nil {
				return nil, err
			}
			b.Write(key)
			b.WriteByte(':')
			val, err := e.Value.MarshalJSON()
			if err != nil {
				return nil, err
			}
			b.Write(val)
		}
		b.WriteByte('}')
		return []byte(b.String()), nil
	case Sequence:
		var b strings.Builder
		b.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				b.WriteByte(',')
			}
			val, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			b.Write(val)
		}
		b.WriteByte(']')
		return []byte(b.String()), nil
	case Scalar:
		if v.scalar == NumberScalar {
			if _, ok := v.Float64(); ok {
				return []byte(v.text), nil
			}
		}
		return json.Marshal(v.Interface())
	}
	return []byte("null"), nil
}

// FromInterface converts decoded JSON/YAML data into a Value. Map keys are
// sorted since Go maps carry no order.
func FromInterface(in any) (Value, error) {
	switch t := in.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		return Float(t), nil
	case json.Number:
		return Number(t.String()), nil
	case []string:
		return Strings(t...), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Seq(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, 0, len(keys))
		for _, k := range keys {
			v, err := FromInterface(t[k])
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, Entry{Key: k, Value: v})
		}
		return Map(entries...), nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", in)
}
