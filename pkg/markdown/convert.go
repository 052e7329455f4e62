// Package markdown converts a constrained markdown subset into Typst markup.
//
// Supported: ATX and setext headings, emphasis, strikethrough, flat lists,
// inline links and autolinks, inline and fenced code, thematic breaks and
// hard line breaks. Tables, images, block quotes, raw HTML and nested lists
// are not converted: they are kept as escaped literal text (nested list
// items are flattened) and reported as warnings.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Warning reports a construct that was not converted.
type Warning struct {
	Construct string `json:"construct"`
	Line      int    `json:"line"`
	Message   string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

// Construct names used in warnings.
const (
	ConstructTable      = "table"
	ConstructImage      = "image"
	ConstructBlockquote = "blockquote"
	ConstructHTML       = "html"
	ConstructNestedList = "nested-list"
)

var engine = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))

// Convert renders src as Typst markup. The result is deterministic and has
// no trailing newline.
func Convert(src string) (string, []Warning) {
	source := []byte(src)
	doc := engine.Parser().Parse(text.NewReader(source))

	c := &converter{source: source, out: &writer{atLineStart: true}}
	c.blocks(doc)
	return strings.TrimRight(c.out.String(), "\n"), c.warnings
}

type converter struct {
	source   []byte
	out      *writer
	warnings []Warning
}

func (c *converter) warn(n ast.Node, construct, msg string) {
	c.warnings = append(c.warnings, Warning{Construct: construct, Line: c.line(n), Message: msg})
}

// blocks renders the block children of n separated by blank lines.
func (c *converter) blocks(n ast.Node) {
	first := true
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if !first {
			c.out.blankLine()
		}
		first = false
		c.block(child)
	}
}

func (c *converter) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.Heading:
		c.out.raw(strings.Repeat("=", n.Level) + " ")
		c.inlines(n)
	case *ast.Paragraph, *ast.TextBlock:
		c.inlines(n)
	case *ast.List:
		c.list(n, false)
	case *ast.FencedCodeBlock:
		c.codeBlock(string(n.Language(c.source)), n.Lines())
	case *ast.CodeBlock:
		c.codeBlock("", n.Lines())
	case *ast.ThematicBreak:
		c.out.raw("#line(length: 100%)")
	case *ast.Blockquote:
		c.literal(n, ConstructBlockquote, "block quote kept as literal text")
	case *ast.HTMLBlock:
		c.literal(n, ConstructHTML, "raw HTML kept as literal text")
	case *east.Table:
		c.literal(n, ConstructTable, "table kept as literal text")
	default:
		c.literal(n, n.Kind().String(), fmt.Sprintf("unsupported %s kept as literal text", n.Kind()))
	}
}

// list renders a list. Items of nested lists are emitted at the same level.
func (c *converter) list(l *ast.List, nested bool) {
	if nested {
		c.warn(l, ConstructNestedList, "nested list flattened to a single level")
	}
	marker := "- "
	if l.IsOrdered() {
		marker = "+ "
	}
	first := true
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		if !first {
			c.out.newline()
		}
		first = false
		c.out.raw(marker)
		c.listItem(item)
	}
}

func (c *converter) listItem(item ast.Node) {
	wrote := false
	for child := item.FirstChild(); child != nil; child = child.NextSibling() {
		switch child := child.(type) {
		case *ast.List:
			c.out.newline()
			c.list(child, true)
			wrote = true
		case *ast.Paragraph, *ast.TextBlock:
			if wrote {
				c.out.raw(" ")
			}
			c.inlines(child)
			wrote = true
		default:
			c.out.newline()
			c.block(child)
			wrote = true
		}
	}
}

func (c *converter) codeBlock(lang string, lines *text.Segments) {
	var body strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		body.Write(seg.Value(c.source))
	}
	code := strings.TrimRight(body.String(), "\n")
	fence := "```"
	for strings.Contains(code, fence) {
		fence += "`"
	}
	c.out.raw(fence + lang + "\n" + code + "\n" + fence)
}

func (c *converter) inlines(n ast.Node) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		c.inline(child)
	}
}

func (c *converter) inline(n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		c.out.text(string(n.Segment.Value(c.source)))
		switch {
		case n.HardLineBreak():
			c.out.raw(" \\")
			c.out.newline()
		case n.SoftLineBreak():
			c.out.raw(" ")
		}
	case *ast.String:
		c.out.text(string(n.Value))
	case *ast.Emphasis:
		delim := "_"
		if n.Level >= 2 {
			delim = "*"
		}
		c.out.raw(delim)
		c.inlines(n)
		c.out.raw(delim)
	case *east.Strikethrough:
		c.out.raw("#strike[")
		c.inlines(n)
		c.out.raw("]")
	case *ast.Link:
		c.out.raw(fmt.Sprintf("#link(%s)[", typstString(string(n.Destination))))
		c.inlines(n)
		c.out.raw("]")
	case *ast.AutoLink:
		url := string(n.URL(c.source))
		label := string(n.Label(c.source))
		if n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(url, "mailto:") {
			url = "mailto:" + url
		}
		c.out.raw(fmt.Sprintf("#link(%s)[", typstString(url)))
		c.out.text(label)
		c.out.raw("]")
	case *ast.CodeSpan:
		c.codeSpan(n)
	case *ast.Image:
		c.warn(n, ConstructImage, "image kept as literal text")
		c.out.text("![")
		c.inlines(n)
		c.out.text("](" + string(n.Destination) + ")")
	case *ast.RawHTML:
		c.warn(n, ConstructHTML, "inline HTML kept as literal text")
		segs := n.Segments
		for i := 0; i < segs.Len(); i++ {
			seg := segs.At(i)
			c.out.text(string(seg.Value(c.source)))
		}
	default:
		c.inlines(n)
	}
}

func (c *converter) codeSpan(n *ast.CodeSpan) {
	var code bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch t := child.(type) {
		case *ast.Text:
			code.Write(t.Segment.Value(c.source))
		case *ast.String:
			code.Write(t.Value)
		}
	}
	s := code.String()
	if strings.Contains(s, "`") {
		c.out.raw(fmt.Sprintf("#raw(%s)", typstString(s)))
		return
	}
	c.out.raw("`" + s + "`")
}

// literal emits the source lines of n as escaped text.
func (c *converter) literal(n ast.Node, construct, msg string) {
	c.warn(n, construct, msg)
	start, stop, ok := c.span(n)
	if !ok {
		return
	}
	// Widen to whole lines so markers like "> " and "|" are kept.
	for start > 0 && c.source[start-1] != '\n' {
		start--
	}
	for stop < len(c.source) && c.source[stop] != '\n' {
		stop++
	}
	lines := strings.Split(strings.TrimRight(string(c.source[start:stop]), "\n"), "\n")
	for i, line := range lines {
		if i > 0 {
			c.out.raw(" \\")
			c.out.newline()
		}
		c.out.text(strings.TrimRight(line, "\r"))
	}
}

// span returns the byte range of source covered by n and its descendants.
func (c *converter) span(n ast.Node) (start, stop int, ok bool) {
	start, stop = len(c.source), 0
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		extend := func(s text.Segment) {
			if s.Start < start {
				start = s.Start
			}
			if s.Stop > stop {
				stop = s.Stop
			}
			ok = true
		}
		if node.Type() == ast.TypeBlock {
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				extend(lines.At(i))
			}
		}
		if t, isText := node.(*ast.Text); isText {
			extend(t.Segment)
		}
		return ast.WalkContinue, nil
	})
	return start, stop, ok
}

// line returns the 1-based source line where n starts.
func (c *converter) line(n ast.Node) int {
	start, _, ok := c.span(n)
	if !ok {
		return 0
	}
	return bytes.Count(c.source[:start], []byte("\n")) + 1
}

// typstString quotes s as a Typst string literal.
func typstString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
