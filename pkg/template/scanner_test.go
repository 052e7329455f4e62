package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/tmpltr/pkg/core"
)

func ids(markers []core.Marker) []string {
	out := make([]string, len(markers))
	for i, m := range markers {
		out[i] = m.ID
	}
	return out
}

func TestScan_Fields(t *testing.T) {
	t.Run("Positional And Named Arguments", func(t *testing.T) {
		src := `#editable("doc.title", x, "text", default: "Untitled")
#editable(id: "doc.author", type: "text")`
		markers, err := Scan(src)
		require.NoError(t, err)
		require.Len(t, markers, 2)

		assert.Equal(t, "doc.title", markers[0].ID)
		assert.Equal(t, core.KindField, markers[0].Kind)
		assert.Equal(t, "x", markers[0].ValueExpr)
		assert.True(t, markers[0].Default.Equal(core.String("Untitled")))
		assert.Equal(t, core.Position{Offset: 0, Line: 1, Column: 1}, markers[0].Position)

		assert.Equal(t, "doc.author", markers[1].ID)
		assert.True(t, markers[1].Default.IsAbsent())
		assert.Equal(t, 2, markers[1].Position.Line)
	})

	t.Run("Default Type Is Text", func(t *testing.T) {
		markers, err := Scan(`#editable("a")`)
		require.NoError(t, err)
		assert.Equal(t, core.FormatText, markers[0].Format)
	})

	t.Run("Literal Defaults", func(t *testing.T) {
		src := `#editable("n", default: 42)
#editable("f", default: -1.5)
#editable("b", default: true)
#editable("s", default: "a \"quoted\" word")
#editable("none", default: none)`
		markers, err := Scan(src)
		require.NoError(t, err)
		require.Len(t, markers, 5)

		assert.True(t, markers[0].Default.Equal(core.Number("42")))
		assert.True(t, markers[1].Default.Equal(core.Number("-1.5")))
		assert.True(t, markers[2].Default.Equal(core.Bool(true)))
		assert.True(t, markers[3].Default.Equal(core.String(`a "quoted" word`)))
		assert.True(t, markers[4].Default.IsAbsent())
		assert.False(t, markers[4].Dynamic)
	})

	t.Run("Dynamic Default", func(t *testing.T) {
		markers, err := Scan(`#editable("date", default: datetime.today().display())`)
		require.NoError(t, err)
		require.Len(t, markers, 1)
		assert.True(t, markers[0].Dynamic)
		assert.Equal(t, "datetime.today().display()", markers[0].DefaultExpr)
		assert.True(t, markers[0].HasDefault())
	})

	t.Run("Inside Code Blocks", func(t *testing.T) {
		src := `#let header = {
  let name = editable("company.name", default: "ACME")
  [#name]
}
#set document(title: editable("doc.title"))`
		markers, err := Scan(src)
		require.NoError(t, err)
		assert.Equal(t, []string{"company.name", "doc.title"}, ids(markers))
	})
}

func TestScan_Blocks(t *testing.T) {
	t.Run("Body Becomes Default", func(t *testing.T) {
		src := "#editable-block(\"blocks.intro\", title: \"Introduction\")[\n  Hello *world*.\n]"
		markers, err := Scan(src)
		require.NoError(t, err)
		require.Len(t, markers, 1)

		m := markers[0]
		assert.Equal(t, core.KindBlock, m.Kind)
		assert.Equal(t, "Introduction", m.Title)
		assert.Equal(t, core.FormatMarkdown, m.Format)
		assert.True(t, m.Default.Equal(core.String("Hello *world*.")))
	})

	t.Run("Missing Or Empty Body Has No Default", func(t *testing.T) {
		markers, err := Scan("#editable-block(\"a\")\n#editable-block(\"b\")[  ]")
		require.NoError(t, err)
		require.Len(t, markers, 2)
		assert.True(t, markers[0].Default.IsAbsent())
		assert.True(t, markers[1].Default.IsAbsent())
	})

	t.Run("Table Body Is Not A Default", func(t *testing.T) {
		markers, err := Scan(`#editable-block("t", format: "table")[#table(columns: 2)[a][b]]`)
		require.NoError(t, err)
		require.Len(t, markers, 1)
		assert.Equal(t, core.FormatTable, markers[0].Format)
		assert.True(t, markers[0].Default.IsAbsent())
	})

	t.Run("Nested Blocks Keep Source Order", func(t *testing.T) {
		src := `#editable-block("outer", title: "Outer")[
  before [brackets] here
  #editable-block("outer.inner", title: "Inner")[inner text]
  #editable("outer.field")
  after
]
#editable("tail")`
		markers, err := Scan(src)
		require.NoError(t, err)
		assert.Equal(t, []string{"outer", "outer.inner", "outer.field", "tail"}, ids(markers))
		assert.True(t, markers[1].Default.Equal(core.String("inner text")))
	})
}

func TestScan_Skips(t *testing.T) {
	src := "// #editable(\"comment.line\")\n" +
		"/* #editable(\"comment.block\") /* nested */ still comment */\n" +
		"`#editable(\"raw.inline\")`\n" +
		"```typ\n#editable(\"raw.fenced\")\n```\n" +
		"\\#editable(\"escaped\")\n" +
		"#let editable(id, value: none) = value\n" +
		"#editable(\"real\")\n"

	markers, err := Scan(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"real"}, ids(markers))
}

func TestScan_Brackets(t *testing.T) {
	t.Run("Escaped Bracket Does Not Close Body", func(t *testing.T) {
		markers, err := Scan(`#editable-block("b")[a \] b]`)
		require.NoError(t, err)
		require.Len(t, markers, 1)
		assert.Equal(t, `a \] b`, markers[0].Body)
	})

	t.Run("Escaped Backslash Before Bracket Closes Body", func(t *testing.T) {
		markers, err := Scan(`#editable-block("b")[a \\]#editable("after")`)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "after"}, ids(markers))
		assert.Equal(t, `a \\`, markers[0].Body)
	})

	t.Run("Brackets In Code Strings Are Ignored", func(t *testing.T) {
		markers, err := Scan(`#editable-block("b")[#text(fill: red, "a]")]`)
		require.NoError(t, err)
		require.Len(t, markers, 1)
		assert.Equal(t, `#text(fill: red, "a]")`, markers[0].Body)
	})

	t.Run("Quotes In Markup Are Text", func(t *testing.T) {
		markers, err := Scan(`#editable-block("b")[He said "hi]`)
		require.NoError(t, err)
		require.Len(t, markers, 1)
		assert.Equal(t, `He said "hi`, markers[0].Body)
	})

	t.Run("Brackets In Raw Spans Are Ignored", func(t *testing.T) {
		markers, err := Scan("#editable-block(\"b\")[use `]` here]")
		require.NoError(t, err)
		require.Len(t, markers, 1)
		assert.Equal(t, "use `]` here", markers[0].Body)
	})
}

func TestScan_Errors(t *testing.T) {
	t.Run("Unterminated Body", func(t *testing.T) {
		_, err := Scan("text\n#editable-block(\"a\")[never closed")
		var target *core.UnterminatedMarkerError
		require.True(t, errors.As(err, &target), "got %v", err)
		assert.Equal(t, 2, target.Position.Line)
		assert.Equal(t, 1, target.Position.Column)
	})

	t.Run("Unterminated Arguments", func(t *testing.T) {
		_, err := Scan(`#editable("a", default: "x"`)
		var target *core.UnterminatedMarkerError
		require.True(t, errors.As(err, &target), "got %v", err)
	})

	t.Run("Non Literal ID", func(t *testing.T) {
		_, err := Scan(`#editable(name)`)
		var target *core.ParseError
		require.True(t, errors.As(err, &target), "got %v", err)
	})

	t.Run("Invalid Path ID", func(t *testing.T) {
		_, err := Scan(`#editable("a..b")`)
		var target *core.ParseError
		require.True(t, errors.As(err, &target), "got %v", err)
	})

	t.Run("Non Literal Title", func(t *testing.T) {
		_, err := Scan(`#editable-block("a", title: t)`)
		var target *core.ParseError
		require.True(t, errors.As(err, &target), "got %v", err)
	})
}

func TestScan_Deterministic(t *testing.T) {
	src := `#editable("a.b", default: 1)
#editable-block("blocks.x", title: "X")[body #editable("blocks.y")]
#editable("c")`
	first, err := Scan(src)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Scan(src)
		require.NoError(t, err)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].ID, again[j].ID)
			assert.Equal(t, first[j].Position, again[j].Position)
			assert.True(t, first[j].Default.Equal(again[j].Default))
		}
	}
}

func TestScan_UnicodeColumns(t *testing.T) {
	markers, err := Scan("ünïcödé #editable(\"x\")")
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, 9, markers[0].Position.Column)
}
