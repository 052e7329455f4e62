package markdown

import (
	"strings"
	"unicode/utf8"
)

// special are the characters that start Typst markup anywhere in a line.
const special = "\\#$*_`<>@[]~"

// lineStart are the characters that start Typst markup at the beginning of
// a line: headings, lists, numbered lists and term lists.
const lineStart = "=-+/"

// Escape makes text safe to embed in Typst markup: every character with
// markup meaning is backslash-escaped so it renders literally.
func Escape(text string) string {
	w := &writer{atLineStart: true}
	w.text(text)
	return w.String()
}

// writer accumulates Typst output, escaping text and tracking line starts.
type writer struct {
	buf         strings.Builder
	atLineStart bool
	lastSlash   bool
}

func (w *writer) String() string { return w.buf.String() }

// raw writes markup as is.
func (w *writer) raw(s string) {
	if s == "" {
		return
	}
	w.buf.WriteString(s)
	w.atLineStart = strings.HasSuffix(s, "\n")
	w.lastSlash = false
}

func (w *writer) newline() {
	w.buf.WriteByte('\n')
	w.atLineStart = true
	w.lastSlash = false
}

// blankLine separates blocks.
func (w *writer) blankLine() {
	s := w.buf.String()
	if s == "" || strings.HasSuffix(s, "\n\n") {
		return
	}
	if !strings.HasSuffix(s, "\n") {
		w.buf.WriteByte('\n')
	}
	w.buf.WriteByte('\n')
	w.atLineStart = true
	w.lastSlash = false
}

// text writes literal text.
func (w *writer) text(s string) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '\n':
			w.newline()
			i += size
			continue
		case w.atLineStart && (r == ' ' || r == '\t'):
			w.buf.WriteRune(r)
			i += size
			continue
		}

		if w.atLineStart {
			w.atLineStart = false
			if strings.ContainsRune(lineStart, r) {
				w.buf.WriteByte('\\')
				w.buf.WriteRune(r)
				w.lastSlash = false
				i += size
				continue
			}
			if n := leadingDigits(s[i:]); n > 0 && i+n < len(s) && s[i+n] == '.' {
				w.buf.WriteString(s[i : i+n])
				w.buf.WriteString(`\.`)
				w.lastSlash = false
				i += n + 1
				continue
			}
		}

		next := s[i+size:]
		switch {
		case strings.ContainsRune(special, r):
			w.buf.WriteByte('\\')
			w.buf.WriteRune(r)
			w.lastSlash = false
		case r == '/' && (w.lastSlash || strings.HasPrefix(next, "/") || strings.HasPrefix(next, "*")):
			w.buf.WriteString(`\/`)
			w.lastSlash = false
		default:
			w.buf.WriteRune(r)
			w.lastSlash = r == '/'
		}
		i += size
	}
}

func leadingDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}
