package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/tmpltr/pkg/core"
)

const dataTemplate = `#let data = json(bytes(sys.inputs.data))
#let get(d, path, default: none) = d.at(path, default: default)

= #data.quote.title
#data.client.name, #get(data, "client.address", default: "n/a")

#for p in data.items.map(x => x) [
  - #p
]
#editable("quote.total", value: data.quote.total)
#data.blocks.intro.content
#blocks.terms
// data.commented.out
Text mentioning data.prose in markup.
#get(data, "quote.title", default: "Untitled")
#data.meta.template
#str(data.at("x"))
`

func TestAccesses(t *testing.T) {
	t.Run("Collects Reads In Code", func(t *testing.T) {
		got, err := Accesses(dataTemplate)
		require.NoError(t, err)

		paths := make([]string, len(got))
		for i, a := range got {
			paths[i] = a.Path
		}
		assert.Equal(t, []string{
			"blocks.intro",
			"blocks.terms",
			"client.address",
			"client.name",
			"items",
			"quote.title",
			"quote.total",
		}, paths)

		byPath := make(map[string]Access, len(got))
		for _, a := range got {
			byPath[a.Path] = a
		}
		assert.True(t, byPath["blocks.intro"].Block)
		assert.True(t, byPath["blocks.terms"].Block)
		assert.False(t, byPath["client.name"].Block)
		assert.True(t, byPath["client.address"].Default.Equal(core.String("n/a")))
		assert.True(t, byPath["quote.title"].Default.Equal(core.String("Untitled")))
		assert.True(t, byPath["items"].Default.IsAbsent())
	})

	t.Run("Get With Other Source Is Ignored", func(t *testing.T) {
		got, err := Accesses(`#get(settings, "theme", default: "dark")`)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Non Literal Default Is Dropped", func(t *testing.T) {
		got, err := Accesses(`#get(data, "quote.date", default: datetime.today())`)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "quote.date", got[0].Path)
		assert.True(t, got[0].Default.IsAbsent())
	})

	t.Run("Scan Errors Propagate", func(t *testing.T) {
		_, err := Accesses(`#editable("a"`)
		assert.Error(t, err)
	})
}

func TestNew_Accesses(t *testing.T) {
	tmpl, err := New("quote.typ", dataTemplate)
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.Schema.Len())
	require.NotEmpty(t, tmpl.Accesses)
	assert.Equal(t, "blocks.intro", tmpl.Accesses[0].Path)
}
