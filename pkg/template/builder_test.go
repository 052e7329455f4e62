package template

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/tmpltr/pkg/core"
)

const reportTemplate = `// @description: Quarterly report
// @version: 1.2.0
#set page(paper: "a4")
= #editable("doc.title", default: "Report")
By #editable("doc.author")

#editable-block("blocks.summary", title: "Summary")[
  Write the *summary* here.
]
#editable-block("blocks.figures", title: "Figures", format: "table")
#editable("doc.date", default: datetime.today().display())
`

func TestBuild(t *testing.T) {
	schema, err := Parse(reportTemplate)
	require.NoError(t, err)

	assert.Equal(t, []string{"doc.title", "doc.author", "blocks.summary", "blocks.figures", "doc.date"}, schema.Paths())

	cases := []struct {
		path     string
		required bool
		shape    core.Shape
	}{
		{"doc.title", false, core.ShapeScalar},
		{"doc.author", true, core.ShapeScalar},
		{"blocks.summary", false, core.ShapeBlockText},
		{"blocks.figures", true, core.ShapeBlockTable},
		{"doc.date", false, core.ShapeScalar},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			f, ok := schema.Lookup(tc.path)
			require.True(t, ok)
			assert.Equal(t, tc.required, f.Required)
			assert.Equal(t, tc.shape, f.Shape)
		})
	}

	assert.Len(t, schema.Blocks(), 2)
	assert.True(t, schema.IsAncestor("doc"))
	assert.False(t, schema.IsAncestor("doc.title"))
}

func TestBuild_DuplicateIDs(t *testing.T) {
	src := "#editable(\"a\")\n#editable(\"b\")\n#editable-block(\"a\")[x]\n#editable(\"a\")"
	_, err := Parse(src)

	var dup *core.DuplicateFieldIDError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "a", dup.ID)
	require.Len(t, dup.Positions, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{dup.Positions[0].Line, dup.Positions[1].Line, dup.Positions[2].Line})
}

func TestBuild_Deterministic(t *testing.T) {
	first, err := Parse(reportTemplate)
	require.NoError(t, err)
	second, err := Parse(reportTemplate)
	require.NoError(t, err)
	assert.Equal(t, first.Fields(), second.Fields())
}

func TestNew_Metadata(t *testing.T) {
	tmpl, err := New("/templates/quarterly-report.typ", reportTemplate)
	require.NoError(t, err)

	assert.Equal(t, "quarterly-report", tmpl.ID)
	assert.Equal(t, "Quarterly report", tmpl.Description)
	assert.Equal(t, "1.2.0", tmpl.Version)
	assert.Equal(t, 5, tmpl.Schema.Len())
}

func TestJSONSchema(t *testing.T) {
	schema, err := Parse(reportTemplate)
	require.NoError(t, err)

	raw, err := JSONSchema(schema, "quarterly-report")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, JSONSchemaDraft, doc["$schema"])
	assert.Equal(t, "quarterly-report", doc["title"])

	props := doc["properties"].(map[string]any)
	assert.Contains(t, props, "meta")
	assert.ElementsMatch(t, []any{"doc", "blocks"}, doc["required"])

	docProps := props["doc"].(map[string]any)
	assert.Equal(t, []any{"author"}, docProps["required"])

	figures := props["blocks"].(map[string]any)["properties"].(map[string]any)["figures"].(map[string]any)
	assert.Equal(t, "object", figures["type"])
	assert.Equal(t, "Figures", figures["title"])
}
