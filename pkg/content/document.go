// Package content holds the content file model: an order-preserving YAML
// node tree with a typed core.Value view and in-place, structure-preserving
// edits.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/byteowlz/tmpltr/pkg/core"
)

// ErrNotMapping is returned when a content file's root is not a mapping.
var ErrNotMapping = errors.New("content root must be a mapping")

// section is the extent of one top-level key in the source text.
type section struct {
	key  string
	line int // 1-based line of the key
}

// leaf is a source scalar whose value was replaced in place.
type leaf struct {
	section string
	orig    *yaml.Node // node as parsed, carries Line and Column
	node    *yaml.Node // current replacement
}

// Document is a parsed content file.
//
// Set patches the node tree in place. Encode copies every untouched
// section, comments and blank lines included, byte for byte from the
// source. A section whose only edits replaced existing scalars is copied
// too, with the bytes of those scalars rewritten. Any other touched section
// is re-emitted.
type Document struct {
	src        []byte
	root       *yaml.Node
	sections   []section
	dirty      map[string]bool
	structural map[string]bool
	leaves     map[string]leaf
}

// New returns an empty document.
func New() *Document {
	return &Document{
		root:       &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"},
		dirty:      map[string]bool{},
		structural: map[string]bool{},
		leaves:     map[string]leaf{},
	}
}

// Parse reads a YAML content file. Empty input yields an empty document.
func Parse(data []byte) (*Document, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}

	d := New()
	d.src = data
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return d, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}
	if err := checkDuplicates(root, ""); err != nil {
		return nil, err
	}
	d.root = root
	for i := 0; i+1 < len(root.Content); i += 2 {
		d.sections = append(d.sections, section{key: root.Content[i].Value, line: root.Content[i].Line})
	}
	return d, nil
}

func checkDuplicates(n *yaml.Node, prefix string) error {
	switch n.Kind {
	case yaml.MappingNode:
		seen := make(map[string]bool, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			path := joinPath(prefix, key)
			if seen[key] {
				return fmt.Errorf("duplicate key %q at line %d", path, n.Content[i].Line)
			}
			seen[key] = true
			if err := checkDuplicates(n.Content[i+1], path); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for _, c := range n.Content {
			if err := checkDuplicates(c, prefix); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + core.PathSeparator + key
}

// Keys returns the top-level keys in file order.
func (d *Document) Keys() []string {
	out := make([]string, 0, len(d.root.Content)/2)
	for i := 0; i+1 < len(d.root.Content); i += 2 {
		out = append(out, d.root.Content[i].Value)
	}
	return out
}

// Get returns the value at path, or Absent when a segment is missing or an
// intermediate node is not a mapping.
func (d *Document) Get(path string) core.Value {
	n := d.lookup(path)
	if n == nil {
		return core.Value{}
	}
	return toValue(n)
}

// Has reports whether path holds a non-null value.
func (d *Document) Has(path string) bool {
	return !d.Get(path).IsAbsent()
}

func (d *Document) lookup(path string) *yaml.Node {
	segments, err := core.SplitPath(path)
	if err != nil {
		return nil
	}
	n := d.root
	for _, seg := range segments {
		n = resolveAlias(n)
		if n.Kind != yaml.MappingNode {
			return nil
		}
		_, v := find(n, seg)
		if v == nil {
			return nil
		}
		n = v
	}
	return resolveAlias(n)
}

// Value returns the whole document as a Mapping.
func (d *Document) Value() core.Value {
	return toValue(d.root)
}

// Set writes v at path, creating intermediate mappings. A non-mapping
// intermediate is replaced. The key order of every mapping is kept and new
// keys are appended.
func (d *Document) Set(path string, v core.Value) error {
	if v.IsAbsent() {
		return fmt.Errorf("set %s: value is absent", path)
	}
	segments, err := core.SplitPath(path)
	if err != nil {
		return err
	}

	n := d.root
	reshaped := false
	for _, seg := range segments[:len(segments)-1] {
		_, child := find(n, seg)
		if child == nil || child.Kind != yaml.MappingNode {
			reshaped = true
		}
		switch {
		case child == nil:
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			appendPair(n, seg, child)
		case child.Kind == yaml.AliasNode && child.Alias != nil && child.Alias.Kind == yaml.MappingNode:
			// Edits must not leak into the anchored node.
			copied := cloneNode(child.Alias)
			copied.Anchor = ""
			replaceValue(n, seg, copied)
			child = copied
		case child.Kind != yaml.MappingNode:
			fresh := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", LineComment: child.LineComment}
			replaceValue(n, seg, fresh)
			child = fresh
		}
		n = child
	}

	last := segments[len(segments)-1]
	_, old := find(n, last)
	node := toNode(v, old)
	if old == nil {
		appendPair(n, last, node)
	} else {
		replaceValue(n, last, node)
	}
	d.track(strings.Join(segments, "\x00"), segments[0], old, node, reshaped)
	return nil
}

// track marks section dirty and remembers in-place scalar replacements so
// Encode can rewrite them without re-emitting their section.
func (d *Document) track(key, section string, old, node *yaml.Node, reshaped bool) {
	d.dirty[section] = true
	if !reshaped && old != nil && old.Kind == yaml.ScalarNode && old.Anchor == "" && node.Kind == yaml.ScalarNode {
		if l, ok := d.leaves[key]; ok {
			l.node = node
			d.leaves[key] = l
			return
		}
		if old.Line > 0 {
			d.leaves[key] = leaf{section: section, orig: old, node: node}
			return
		}
	}
	d.structural[section] = true
}

// Dirty reports whether the document changed since it was parsed.
func (d *Document) Dirty() bool {
	return len(d.dirty) > 0
}

// Clone returns an independent deep copy.
func (d *Document) Clone() *Document {
	c := &Document{
		src:        d.src,
		root:       cloneNode(d.root),
		sections:   append([]section(nil), d.sections...),
		dirty:      make(map[string]bool, len(d.dirty)),
		structural: make(map[string]bool, len(d.structural)),
		leaves:     make(map[string]leaf, len(d.leaves)),
	}
	for k := range d.dirty {
		c.dirty[k] = true
	}
	for k := range d.structural {
		c.structural[k] = true
	}
	// The clone's tree holds copies, so current nodes are looked up again.
	for k, l := range d.leaves {
		if n := c.lookupRaw(strings.Split(k, "\x00")); n != nil {
			l.node = n
			c.leaves[k] = l
		} else {
			c.structural[l.section] = true
		}
	}
	return c
}

func (d *Document) lookupRaw(segments []string) *yaml.Node {
	n := d.root
	for _, seg := range segments {
		_, n = find(n, seg)
		if n == nil {
			return nil
		}
	}
	return n
}

func find(mapping *yaml.Node, key string) (k, v *yaml.Node) {
	if mapping.Kind != yaml.MappingNode {
		return nil, nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i], mapping.Content[i+1]
		}
	}
	return nil, nil
}

func appendPair(mapping *yaml.Node, key string, v *yaml.Node) {
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)
}

func replaceValue(mapping *yaml.Node, key string, v *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = v
			return
		}
	}
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Content != nil {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}

// toValue converts a node to the typed view.
func toValue(n *yaml.Node) core.Value {
	n = resolveAlias(n)
	if n == nil {
		return core.Value{}
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return core.Value{}
		}
		return toValue(n.Content[0])
	case yaml.MappingNode:
		entries := make([]core.Entry, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Tag == "!!merge" {
				continue
			}
			entries = append(entries, core.E(n.Content[i].Value, toValue(n.Content[i+1])))
		}
		return core.Map(entries...)
	case yaml.SequenceNode:
		items := make([]core.Value, len(n.Content))
		for i, c := range n.Content {
			items[i] = toValue(c)
		}
		return core.Seq(items...)
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return core.Value{}
		case "!!int", "!!float":
			return core.Number(n.Value)
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err == nil {
				return core.Bool(b)
			}
		}
		return core.String(n.Value)
	}
	return core.Value{}
}

// toNode builds a node for v. Styles and the line comment of the node it
// replaces are carried over where they still apply.
func toNode(v core.Value, old *yaml.Node) *yaml.Node {
	var n *yaml.Node
	switch v.Kind() {
	case core.Mapping:
		n = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range v.Entries() {
			var oldChild *yaml.Node
			if old != nil {
				_, oldChild = find(resolveAlias(old), e.Key)
			}
			appendPair(n, e.Key, toNode(e.Value, oldChild))
		}
	case core.Sequence:
		n = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		flow := v.Len() > 0
		for _, item := range v.Items() {
			if !item.IsScalar() {
				flow = false
			}
			n.Content = append(n.Content, toNode(item, nil))
		}
		if flow {
			n.Style = yaml.FlowStyle
		}
	case core.Scalar:
		n = scalarNode(v)
		if old != nil && old.Kind == yaml.ScalarNode && n.Tag == "!!str" && !strings.Contains(n.Value, "\n") {
			n.Style = old.Style &^ (yaml.LiteralStyle | yaml.FoldedStyle)
		}
	default:
		n = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	if old != nil {
		n.LineComment = old.LineComment
	}
	return n
}

func scalarNode(v core.Value) *yaml.Node {
	switch v.ScalarKind() {
	case core.NumberScalar:
		tag := "!!float"
		if _, err := strconv.ParseInt(v.Text(), 10, 64); err == nil {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.Text()}
	case core.BoolScalar:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v.Text()}
	}
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Text()}
	if strings.Contains(n.Value, "\n") {
		n.Style = yaml.LiteralStyle
	}
	return n
}

// Encode renders the document as YAML.
func (d *Document) Encode() ([]byte, error) {
	if len(d.dirty) == 0 && d.src != nil {
		return append([]byte(nil), d.src...), nil
	}
	if len(d.sections) == 0 || d.root.Style&yaml.FlowStyle != 0 {
		if len(bytes.TrimSpace(d.src)) > 0 && len(d.sections) == 0 && d.root.Style&yaml.FlowStyle == 0 {
			// Comment-only source: keep it and append the new keys.
			return d.appendKeys(append([]byte(nil), d.src...), nil)
		}
		return encodeNode(d.root)
	}
	return d.splice()
}

func encodeNode(n *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeEntry renders a single `key: value` pair without the comments that
// live outside its own lines in the source.
func encodeEntry(key, value *yaml.Node) ([]byte, error) {
	k := *key
	k.HeadComment = ""
	k.FootComment = ""
	v := cloneNode(value)
	clearTrailingFoot(v)
	return encodeNode(&yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{&k, v}})
}

// clearTrailingFoot drops foot comments along the last-child chain. The
// source lines they came from are copied verbatim by splice.
func clearTrailingFoot(n *yaml.Node) {
	for n != nil {
		n.FootComment = ""
		if len(n.Content) == 0 {
			return
		}
		if n.Kind == yaml.MappingNode && len(n.Content) >= 2 {
			n.Content[len(n.Content)-2].FootComment = ""
		}
		n = n.Content[len(n.Content)-1]
	}
}

func (d *Document) splice() ([]byte, error) {
	lines := bytes.SplitAfter(d.src, []byte("\n"))
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}

	var out bytes.Buffer
	// Preamble: everything before the first key.
	first := d.sections[0].line - 1
	for _, l := range lines[:first] {
		out.Write(l)
	}

	written := make(map[string]bool, len(d.sections))
	for i, sec := range d.sections {
		start := sec.line - 1
		end := len(lines)
		if i+1 < len(d.sections) {
			end = d.sections[i+1].line - 1
		}
		written[sec.key] = true
		if !d.dirty[sec.key] {
			for _, l := range lines[start:end] {
				out.Write(l)
			}
			continue
		}
		if patched, ok := d.patchSection(sec.key, lines, start, end); ok {
			for _, l := range patched {
				out.Write(l)
			}
			continue
		}

		key, value := find(d.root, sec.key)
		if key == nil {
			continue
		}
		encoded, err := encodeEntry(key, value)
		if err != nil {
			return nil, err
		}
		out.Write(encoded)

		// Keep blank lines and column-0 comments that trail the section.
		tail := end
		for tail > start+1 && isTrailer(lines[tail-1]) {
			tail--
		}
		for _, l := range lines[tail:end] {
			out.Write(l)
		}
	}
	return d.appendKeys(out.Bytes(), written)
}

// patchSection returns the source lines of a section with its replaced
// scalars rewritten in place. It reports false when the section changed
// shape or a scalar cannot be located on a single line.
func (d *Document) patchSection(key string, lines [][]byte, start, end int) ([][]byte, bool) {
	if d.structural[key] {
		return nil, false
	}
	out := append([][]byte(nil), lines[start:end]...)
	patched := false
	for _, l := range d.leaves {
		if l.section != key {
			continue
		}
		idx := l.orig.Line - 1
		if idx < start || idx >= end {
			return nil, false
		}
		line, ok := patchLine(out[idx-start], l.orig, l.node)
		if !ok {
			return nil, false
		}
		out[idx-start] = line
		patched = true
	}
	return out, patched
}

// patchLine replaces the bytes of orig in line with the encoding of node.
// Only a scalar that ends its line, optionally followed by a comment, is
// patched.
func patchLine(line []byte, orig, node *yaml.Node) ([]byte, bool) {
	body := bytes.TrimRight(line, "\r\n")
	eol := line[len(body):]
	from := byteOffset(body, orig.Column-1)
	if from < 0 || from >= len(body) {
		return nil, false
	}
	to, ok := scalarEnd(body, from, orig)
	if !ok {
		return nil, false
	}
	if rest := bytes.TrimSpace(body[to:]); len(rest) > 0 && rest[0] != '#' {
		return nil, false
	}
	text, ok := inlineScalar(node)
	if !ok {
		return nil, false
	}
	out := make([]byte, 0, len(line)+len(text))
	out = append(out, body[:from]...)
	out = append(out, text...)
	out = append(out, body[to:]...)
	return append(out, eol...), true
}

// byteOffset converts a 0-based rune column to a byte offset.
func byteOffset(line []byte, col int) int {
	for i := range string(line) {
		if col == 0 {
			return i
		}
		col--
	}
	if col == 0 {
		return len(line)
	}
	return -1
}

// scalarEnd returns the byte offset just past the scalar starting at from.
func scalarEnd(body []byte, from int, orig *yaml.Node) (int, bool) {
	switch {
	case orig.Style&yaml.SingleQuotedStyle != 0:
		if body[from] != '\'' {
			return 0, false
		}
		for i := from + 1; i < len(body); i++ {
			if body[i] != '\'' {
				continue
			}
			if i+1 < len(body) && body[i+1] == '\'' {
				i++
				continue
			}
			return i + 1, true
		}
	case orig.Style&yaml.DoubleQuotedStyle != 0:
		if body[from] != '"' {
			return 0, false
		}
		for i := from + 1; i < len(body); i++ {
			switch body[i] {
			case '\\':
				i++
			case '"':
				return i + 1, true
			}
		}
	case orig.Style&(yaml.LiteralStyle|yaml.FoldedStyle|yaml.FlowStyle) == 0:
		end := len(body)
		for i := from + 1; i < len(body); i++ {
			if body[i] == '#' && (body[i-1] == ' ' || body[i-1] == '\t') {
				end = i
				break
			}
		}
		end = from + len(bytes.TrimRight(body[from:end], " \t"))
		if string(body[from:end]) == orig.Value {
			return end, true
		}
	}
	return 0, false
}

// inlineScalar encodes n as a single-line scalar.
func inlineScalar(n *yaml.Node) ([]byte, bool) {
	c := *n
	c.HeadComment, c.LineComment, c.FootComment = "", "", ""
	out, err := encodeNode(&c)
	if err != nil {
		return nil, false
	}
	out = bytes.TrimSuffix(out, []byte("\n"))
	if len(out) == 0 || bytes.ContainsAny(out, "\n") {
		return nil, false
	}
	return out, true
}

func isTrailer(line []byte) bool {
	trimmed := bytes.TrimRight(line, "\r\n")
	if len(bytes.TrimSpace(trimmed)) == 0 {
		return true
	}
	return trimmed[0] == '#'
}

// appendKeys writes top-level keys missing from written after buf.
func (d *Document) appendKeys(buf []byte, written map[string]bool) ([]byte, error) {
	out := bytes.NewBuffer(buf)
	for i := 0; i+1 < len(d.root.Content); i += 2 {
		key := d.root.Content[i]
		if written[key.Value] {
			continue
		}
		if out.Len() > 0 && !bytes.HasSuffix(out.Bytes(), []byte("\n")) {
			out.WriteByte('\n')
		}
		encoded, err := encodeEntry(key, d.root.Content[i+1])
		if err != nil {
			return nil, err
		}
		out.Write(encoded)
	}
	return out.Bytes(), nil
}
