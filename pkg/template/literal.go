package template

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/byteowlz/tmpltr/pkg/core"
)

var numberLiteral = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)([eE][-+]?\d+)?$`)

// parseString decodes a Typst string literal.
func parseString(text string) (string, bool) {
	if len(text) < 2 || text[0] != '"' || text[len(text)-1] != '"' {
		return "", false
	}
	body := text[1 : len(text)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '"' {
			// An unescaped quote means text was more than one literal.
			return "", false
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", false
		}
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '"':
			b.WriteByte(body[i])
		case 'u':
			// \u{1F600}
			end := strings.IndexByte(body[i:], '}')
			if i+1 >= len(body) || body[i+1] != '{' || end < 0 {
				return "", false
			}
			code, err := strconv.ParseUint(body[i+2:i+end], 16, 32)
			if err != nil {
				return "", false
			}
			b.WriteRune(rune(code))
			i += end
		default:
			b.WriteByte('\\')
			b.WriteByte(body[i])
		}
	}
	return b.String(), true
}

// parseLiteral interprets a default expression. It returns ok=false for
// anything that is not a string, number, boolean or none literal; such
// defaults are dynamic. none yields Absent.
func parseLiteral(text string) (core.Value, bool) {
	switch text {
	case "none":
		return core.Value{}, true
	case "true":
		return core.Bool(true), true
	case "false":
		return core.Bool(false), true
	}
	if s, ok := parseString(text); ok {
		return core.String(s), true
	}
	if numberLiteral.MatchString(text) {
		return core.Number(text), true
	}
	return core.Value{}, false
}

func quote(s string) string {
	return strconv.Quote(s)
}
