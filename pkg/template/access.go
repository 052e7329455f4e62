package template

import (
	"sort"
	"strings"

	"github.com/byteowlz/tmpltr/pkg/core"
)

// Identifiers under which templates read their input.
const (
	dataIdent   = "data"
	blocksIdent = "blocks"
	getIdent    = "get"
)

// Access is a read of the data input found in template code: `data.a.b`,
// `blocks.intro` or `get(data, "a.b", default: "x")`.
type Access struct {
	Path string
	// Default is the literal default of a get call, Absent otherwise.
	Default core.Value
	// Block is set for reads below blocks; Path is then blocks.<name>.
	Block bool
}

// Accesses lists the data reads in template source, sorted by path. Reads
// of the reserved meta section are left out.
func Accesses(src string) ([]Access, error) {
	s, err := scan(src)
	if err != nil {
		return nil, err
	}
	return s.accessList(), nil
}

func (s *scanner) accessList() []Access {
	out := make([]Access, 0, len(s.accesses))
	for _, a := range s.accesses {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// noteIdent records the data read an identifier in code starts, if any.
// s.pos is just past the identifier and is not moved.
func (s *scanner) noteIdent(start int, ident string) {
	if s.accesses == nil || s.afterDot(start) {
		return
	}
	switch ident {
	case dataIdent:
		if segs := s.fieldChain(); len(segs) > 0 {
			s.note(accessOf(segs, core.Value{}))
		}
	case blocksIdent:
		if segs := s.fieldChain(); len(segs) > 0 {
			s.note(Access{Path: core.JoinPath(blocksIdent, segs[0]), Block: true})
		}
	case getIdent:
		if s.peek(0) == '(' {
			s.getCall()
		}
	}
}

// fieldChain returns the `.name` segments following s.pos. A segment
// followed by '(' is a method call and ends the chain.
func (s *scanner) fieldChain() []string {
	var segs []string
	p := s.pos
	for p+1 < len(s.src) && s.src[p] == '.' && isIdentStart(s.src[p+1]) {
		q := p + 1
		for q < len(s.src) && isIdentPart(s.src[q]) {
			q++
		}
		for q > p+2 && s.src[q-1] == '-' {
			q--
		}
		if q < len(s.src) && s.src[q] == '(' {
			break
		}
		segs = append(segs, s.src[p+1:q])
		p = q
	}
	return segs
}

// getCall reads `get(data, "path", default: v)` at s.pos without
// consuming it; the caller scans the arguments as ordinary code.
func (s *scanner) getCall() {
	sub := &scanner{src: s.src, pos: s.pos + 1, lineStarts: s.lineStarts}
	args, err := sub.arguments()
	if err != nil || len(args) < 2 || args[0].name != "" || args[0].text != dataIdent || args[1].name != "" {
		return
	}
	path, ok := parseString(args[1].text)
	if !ok || !core.ValidPath(path) {
		return
	}
	var def core.Value
	for _, a := range args[2:] {
		if a.name == "default" {
			if lit, ok := parseLiteral(a.text); ok {
				def = lit
			}
		}
	}
	s.note(accessOf(strings.Split(path, core.PathSeparator), def))
}

func accessOf(segs []string, def core.Value) Access {
	if segs[0] == blocksIdent && len(segs) > 1 {
		return Access{Path: core.JoinPath(blocksIdent, segs[1]), Default: def, Block: true}
	}
	return Access{Path: core.JoinPath(segs...), Default: def}
}

// note keeps the first read of a path and the first default seen for it.
func (s *scanner) note(a Access) {
	if a.Path == core.MetaKey || strings.HasPrefix(a.Path, core.MetaKey+core.PathSeparator) {
		return
	}
	prev, ok := s.accesses[a.Path]
	if !ok {
		s.accesses[a.Path] = a
		return
	}
	if prev.Default.IsAbsent() && !a.Default.IsAbsent() {
		prev.Default = a.Default
		s.accesses[a.Path] = prev
	}
}
