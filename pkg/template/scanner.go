package template

import (
	"errors"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/byteowlz/tmpltr/pkg/core"
)

// Marker call names recognized in template source.
const (
	FieldMarker = "editable"
	BlockMarker = "editable-block"
)

// errEOF signals that a bracketed region ran past the end of input. The
// marker that opened the region turns it into an UnterminatedMarkerError.
var errEOF = errors.New("unexpected end of input")

// Scan finds every field and block marker in Typst template source, in
// source order.
//
// The scanner understands just enough of Typst to find call-sites: markup
// and code modes, comments, raw spans, escapes and string literals in code.
// It never evaluates anything.
//
// Escapes: inside markup (including block bodies) a backslash escapes the
// next character, so `\]` never closes a body and `\\` is a literal
// backslash followed by an active character. Double quotes in markup are
// ordinary text; they delimit strings only in code, where `\"` and `\\`
// are escapes inside the string.
func Scan(src string) ([]core.Marker, error) {
	s, err := scan(src)
	if err != nil {
		return nil, err
	}
	return s.markers, nil
}

func scan(src string) (*scanner, error) {
	s := newScanner(src)
	if err := s.markup(false); err != nil {
		if errors.Is(err, errEOF) {
			return nil, &core.ParseError{Position: s.position(len(src)), Reason: err.Error()}
		}
		return nil, err
	}
	sort.SliceStable(s.markers, func(i, j int) bool {
		return s.markers[i].Position.Offset < s.markers[j].Position.Offset
	})
	return s, nil
}

type scanner struct {
	src        string
	pos        int
	lineStarts []int
	markers    []core.Marker
	// accesses is nil for throwaway scanners.
	accesses map[string]Access
}

func newScanner(src string) *scanner {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &scanner{src: src, lineStarts: starts, accesses: map[string]Access{}}
}

func (s *scanner) position(offset int) core.Position {
	line := sort.Search(len(s.lineStarts), func(i int) bool { return s.lineStarts[i] > offset }) - 1
	col := utf8.RuneCountInString(s.src[s.lineStarts[line]:offset]) + 1
	return core.Position{Offset: offset, Line: line + 1, Column: col}
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek(n int) byte {
	if s.pos+n < len(s.src) {
		return s.src[s.pos+n]
	}
	return 0
}

// markup scans Typst markup. When nested is true the opening '[' has been
// consumed and markup returns after the matching ']'.
func (s *scanner) markup(nested bool) error {
	depth := 0
	for !s.eof() {
		c := s.src[s.pos]
		switch {
		case c == '\\':
			s.skipEscape()
		case c == '/' && (s.peek(1) == '/' || s.peek(1) == '*'):
			s.skipComment()
		case c == '`':
			if err := s.skipRaw(); err != nil && nested {
				return err
			}
		case c == '[':
			depth++
			s.pos++
		case c == ']':
			s.pos++
			if depth > 0 {
				depth--
				continue
			}
			if nested {
				return nil
			}
		case c == '#':
			if err := s.hash(); err != nil {
				return err
			}
		default:
			s.advance()
		}
	}
	if nested {
		return errEOF
	}
	return nil
}

// code scans Typst code until the closing byte. The opening bracket has been
// consumed.
func (s *scanner) code(closing byte) error {
	prevIdent := ""
	for !s.eof() {
		c := s.src[s.pos]
		switch {
		case c == closing:
			s.pos++
			return nil
		case c == '"':
			if err := s.skipString(); err != nil {
				return err
			}
		case c == '/' && (s.peek(1) == '/' || s.peek(1) == '*'):
			s.skipComment()
		case c == '`':
			if err := s.skipRaw(); err != nil {
				return err
			}
		case c == '(':
			s.pos++
			if err := s.code(')'); err != nil {
				return err
			}
		case c == '{':
			s.pos++
			if err := s.code('}'); err != nil {
				return err
			}
		case c == '[':
			s.pos++
			if err := s.markup(true); err != nil {
				return err
			}
		case isIdentStart(c):
			start := s.pos
			ident := s.ident()
			if isMarkerName(ident) && s.peek(0) == '(' && prevIdent != "let" && !s.afterDot(start) {
				if err := s.marker(start, ident); err != nil {
					return err
				}
			} else {
				s.noteIdent(start, ident)
			}
			prevIdent = ident
			continue
		default:
			s.advance()
		}
		if !unicode.IsSpace(rune(c)) {
			prevIdent = ""
		}
	}
	return errEOF
}

// statement scans a keyword-led code line embedded in markup (#let, #set,
// #show, #if, ...). It ends at a newline or ';' outside of brackets.
func (s *scanner) statement(keyword string) error {
	prevIdent := keyword
	for !s.eof() {
		c := s.src[s.pos]
		switch {
		case c == '\n' || c == ';':
			return nil
		case c == '"':
			if err := s.skipString(); err != nil {
				return err
			}
		case c == '/' && (s.peek(1) == '/' || s.peek(1) == '*'):
			if s.peek(1) == '/' {
				return nil
			}
			s.skipComment()
		case c == '(':
			s.pos++
			if err := s.code(')'); err != nil {
				return err
			}
		case c == '{':
			s.pos++
			if err := s.code('}'); err != nil {
				return err
			}
		case c == '[':
			s.pos++
			if err := s.markup(true); err != nil {
				return err
			}
		case c == ']':
			// Closing bracket of an enclosing body; leave it to the caller.
			return nil
		case isIdentStart(c):
			start := s.pos
			ident := s.ident()
			if isMarkerName(ident) && s.peek(0) == '(' && prevIdent != "let" && !s.afterDot(start) {
				if err := s.marker(start, ident); err != nil {
					return err
				}
			} else {
				s.noteIdent(start, ident)
			}
			prevIdent = ident
			continue
		default:
			s.advance()
		}
		if c != ' ' && c != '\t' {
			prevIdent = ""
		}
	}
	return nil
}

var statementKeywords = map[string]bool{
	"let": true, "set": true, "show": true, "import": true, "include": true,
	"if": true, "for": true, "while": true, "return": true, "context": true,
}

// hash handles an embedded code expression starting at '#'.
func (s *scanner) hash() error {
	start := s.pos
	s.pos++
	if s.eof() {
		return nil
	}
	c := s.src[s.pos]
	switch {
	case isIdentStart(c):
		ident := s.ident()
		if isMarkerName(ident) && s.peek(0) == '(' {
			return s.marker(start, ident)
		}
		s.noteIdent(start+1, ident)
		if statementKeywords[ident] {
			return s.statement(ident)
		}
		return s.callChain()
	case c == '{':
		s.pos++
		return s.code('}')
	case c == '(':
		s.pos++
		return s.code(')')
	case c == '[':
		s.pos++
		return s.markup(true)
	case c == '"':
		return s.skipString()
	}
	return nil
}

// callChain consumes the argument lists, trailing content blocks and field
// accesses that follow an identifier in markup, e.g. `#link("x")[text]`.
func (s *scanner) callChain() error {
	for !s.eof() {
		switch c := s.src[s.pos]; {
		case c == '(':
			s.pos++
			if err := s.code(')'); err != nil {
				return err
			}
		case c == '[':
			s.pos++
			if err := s.markup(true); err != nil {
				return err
			}
		case c == '.' && isIdentStart(s.peek(1)):
			s.pos++
			s.ident()
		default:
			return nil
		}
	}
	return nil
}

// rawArg is one argument of a marker call, unparsed.
type rawArg struct {
	name   string
	text   string
	offset int
}

// marker parses a marker call whose name starts at start; s.pos is at '('.
func (s *scanner) marker(start int, name string) error {
	pos := s.position(start)
	s.pos++ // '('
	args, err := s.arguments()
	if err != nil {
		if errors.Is(err, errEOF) {
			return &core.UnterminatedMarkerError{Position: pos, Marker: name}
		}
		return err
	}

	var m core.Marker
	if name == FieldMarker {
		m, err = s.fieldMarker(pos, args)
	} else {
		m, err = s.blockMarker(pos, args)
	}
	if err != nil {
		return err
	}

	idx := len(s.markers)
	s.markers = append(s.markers, m)
	if name != BlockMarker {
		return nil
	}

	// Optional trailing body, possibly after whitespace.
	save := s.pos
	for !s.eof() && isSpace(s.src[s.pos]) {
		s.pos++
	}
	if s.eof() || s.src[s.pos] != '[' {
		s.pos = save
		return nil
	}
	s.pos++
	bodyStart := s.pos
	if err := s.markup(true); err != nil {
		if errors.Is(err, errEOF) {
			return &core.UnterminatedMarkerError{Position: pos, Marker: name}
		}
		return err
	}
	body := s.src[bodyStart : s.pos-1]
	s.markers[idx].Body = body
	if trimmed := strings.TrimSpace(body); trimmed != "" && s.markers[idx].Format != core.FormatTable {
		s.markers[idx].Default = core.String(dedent(trimmed))
	}
	return nil
}

// arguments splits a call's argument list at top-level commas. s.pos is
// just past '('; on return it is just past ')'.
func (s *scanner) arguments() ([]rawArg, error) {
	var args []rawArg
	argStart := s.pos
	flush := func(end int) {
		text := s.src[argStart:end]
		if strings.TrimSpace(text) == "" {
			return
		}
		args = append(args, splitNamed(text, argStart))
	}
	for !s.eof() {
		c := s.src[s.pos]
		switch {
		case c == ')':
			flush(s.pos)
			s.pos++
			return args, nil
		case c == ',':
			flush(s.pos)
			s.pos++
			argStart = s.pos
		case c == '"':
			if err := s.skipString(); err != nil {
				return nil, err
			}
		case c == '/' && (s.peek(1) == '/' || s.peek(1) == '*'):
			s.skipComment()
		case c == '`':
			if err := s.skipRaw(); err != nil {
				return nil, err
			}
		case c == '(':
			s.pos++
			if err := s.code(')'); err != nil {
				return nil, err
			}
		case c == '{':
			s.pos++
			if err := s.code('}'); err != nil {
				return nil, err
			}
		case c == '[':
			s.pos++
			if err := s.markup(true); err != nil {
				return nil, err
			}
		case isIdentStart(c):
			start := s.pos
			s.noteIdent(start, s.ident())
		default:
			s.advance()
		}
	}
	return nil, errEOF
}

// splitNamed separates `name: expr` from a positional expression.
func splitNamed(text string, offset int) rawArg {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	offset += len(text) - len(trimmed)
	i := 0
	if i < len(trimmed) && isIdentStart(trimmed[i]) {
		for i < len(trimmed) && isIdentPart(trimmed[i]) {
			i++
		}
		j := i
		for j < len(trimmed) && (trimmed[j] == ' ' || trimmed[j] == '\t') {
			j++
		}
		if j < len(trimmed) && trimmed[j] == ':' {
			return rawArg{
				name:   trimmed[:i],
				text:   strings.TrimSpace(trimmed[j+1:]),
				offset: offset,
			}
		}
	}
	return rawArg{text: strings.TrimSpace(trimmed), offset: offset}
}

var (
	fieldParams = []string{"id", "value", "type", "default"}
	blockParams = []string{"id", "title", "format"}
)

// bind maps positional and named arguments onto parameter names.
func (s *scanner) bind(params []string, args []rawArg) (map[string]rawArg, error) {
	out := make(map[string]rawArg, len(args))
	positional := 0
	for _, a := range args {
		if a.name == "" {
			if positional >= len(params) {
				return nil, &core.ParseError{Position: s.position(a.offset), Reason: "too many positional arguments"}
			}
			a.name = params[positional]
			positional++
		}
		if _, dup := out[a.name]; dup {
			return nil, &core.ParseError{Position: s.position(a.offset), Reason: "argument " + a.name + " given twice"}
		}
		out[a.name] = a
	}
	return out, nil
}

func (s *scanner) markerID(pos core.Position, args map[string]rawArg) (string, error) {
	a, ok := args["id"]
	if !ok {
		return "", &core.ParseError{Position: pos, Reason: "marker has no id"}
	}
	id, ok := parseString(a.text)
	if !ok {
		return "", &core.ParseError{Position: s.position(a.offset), Reason: "marker id must be a string literal, got " + a.text}
	}
	if !core.ValidPath(id) {
		return "", &core.ParseError{Position: s.position(a.offset), Reason: "invalid marker id " + quote(id)}
	}
	return id, nil
}

func (s *scanner) stringArg(args map[string]rawArg, name, fallback string) (string, error) {
	a, ok := args[name]
	if !ok {
		return fallback, nil
	}
	v, ok := parseString(a.text)
	if !ok {
		return "", &core.ParseError{Position: s.position(a.offset), Reason: name + " must be a string literal, got " + a.text}
	}
	return v, nil
}

func (s *scanner) fieldMarker(pos core.Position, list []rawArg) (core.Marker, error) {
	args, err := s.bind(fieldParams, list)
	if err != nil {
		return core.Marker{}, err
	}
	id, err := s.markerID(pos, args)
	if err != nil {
		return core.Marker{}, err
	}
	typ, err := s.stringArg(args, "type", core.FormatText)
	if err != nil {
		return core.Marker{}, err
	}
	m := core.Marker{ID: id, Kind: core.KindField, Format: typ, Position: pos}
	if v, ok := args["value"]; ok {
		m.ValueExpr = v.text
	}
	if d, ok := args["default"]; ok {
		if lit, ok := parseLiteral(d.text); ok {
			m.Default = lit
		} else {
			m.Dynamic = true
			m.DefaultExpr = d.text
		}
	}
	return m, nil
}

func (s *scanner) blockMarker(pos core.Position, list []rawArg) (core.Marker, error) {
	args, err := s.bind(blockParams, list)
	if err != nil {
		return core.Marker{}, err
	}
	id, err := s.markerID(pos, args)
	if err != nil {
		return core.Marker{}, err
	}
	title, err := s.stringArg(args, "title", "")
	if err != nil {
		return core.Marker{}, err
	}
	format, err := s.stringArg(args, "format", core.FormatMarkdown)
	if err != nil {
		return core.Marker{}, err
	}
	return core.Marker{ID: id, Kind: core.KindBlock, Title: title, Format: format, Position: pos}, nil
}

// --- lexical helpers ---

func (s *scanner) advance() {
	_, size := utf8.DecodeRuneInString(s.src[s.pos:])
	s.pos += size
}

func (s *scanner) skipEscape() {
	s.pos++ // backslash
	if !s.eof() {
		s.advance()
	}
}

func (s *scanner) skipComment() {
	if s.peek(1) == '/' {
		for !s.eof() && s.src[s.pos] != '\n' {
			s.pos++
		}
		return
	}
	// Block comments nest in Typst.
	s.pos += 2
	depth := 1
	for !s.eof() && depth > 0 {
		switch {
		case s.src[s.pos] == '/' && s.peek(1) == '*':
			depth++
			s.pos += 2
		case s.src[s.pos] == '*' && s.peek(1) == '/':
			depth--
			s.pos += 2
		default:
			s.pos++
		}
	}
}

// skipRaw skips a raw span delimited by one backtick or by runs of three or
// more. Two backticks are an empty raw span.
func (s *scanner) skipRaw() error {
	n := 0
	for s.peek(n) == '`' {
		n++
	}
	s.pos += n
	if n == 2 {
		return nil
	}
	fence := strings.Repeat("`", n)
	idx := strings.Index(s.src[s.pos:], fence)
	if idx < 0 {
		s.pos = len(s.src)
		return errEOF
	}
	s.pos += idx + n
	return nil
}

func (s *scanner) skipString() error {
	s.pos++ // opening quote
	for !s.eof() {
		switch s.src[s.pos] {
		case '\\':
			s.pos += 2
			continue
		case '"':
			s.pos++
			return nil
		}
		s.pos++
	}
	s.pos = len(s.src)
	return errEOF
}

func (s *scanner) ident() string {
	start := s.pos
	for !s.eof() && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	// Typst identifiers may contain '-' but not end with one.
	for s.pos > start+1 && s.src[s.pos-1] == '-' {
		s.pos--
	}
	return s.src[start:s.pos]
}

// afterDot reports whether the identifier at start is a field access.
func (s *scanner) afterDot(start int) bool {
	return start > 0 && s.src[start-1] == '.'
}

func isMarkerName(ident string) bool {
	return ident == FieldMarker || ident == BlockMarker
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// dedent removes the common leading indentation of every non-blank line.
func dedent(text string) string {
	lines := strings.Split(text, "\n")
	indent := -1
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return text
	}
	for i := 1; i < len(lines); i++ {
		if len(lines[i]) >= indent {
			lines[i] = lines[i][indent:]
		} else {
			lines[i] = strings.TrimLeft(lines[i], " \t")
		}
	}
	return strings.Join(lines, "\n")
}
