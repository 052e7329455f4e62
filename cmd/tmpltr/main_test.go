package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/tmpltr"
	"github.com/byteowlz/tmpltr/pkg/core"
)

const quoteTemplate = `// @description: Project quote
#editable("quote.title", default: "Untitled")
#editable("quote.number")
#editable("quote.total", type: "number", default: 0)
#editable-block("blocks.intro", title: "Introduction")[
  Thank you for *your* interest.
]
`

// workspace is a template directory, a content path and a private cache.
type workspace struct {
	dir      string
	template string
	content  string
	cache    string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	tmplDir := filepath.Join(dir, "templates")
	require.NoError(t, os.MkdirAll(tmplDir, 0o755))
	tmpl := filepath.Join(tmplDir, "quote.typ")
	require.NoError(t, os.WriteFile(tmpl, []byte(quoteTemplate), 0o644))
	return &workspace{
		dir:      dir,
		template: tmpl,
		content:  filepath.Join(dir, "acme.yaml"),
		cache:    filepath.Join(dir, "cache"),
	}
}

// run executes the CLI in process with the workspace cache.
func (w *workspace) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--cache-dir", w.cache, "-q"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores flags changed by a previous run; cobra keeps them.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestCLI_InitGetSet(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "", "init", w.template, "-o", w.content)
	require.NoError(t, err)
	assert.Contains(t, out, "Created "+w.content)
	assert.FileExists(t, w.content)

	out, err = w.run(t, "", "get", w.content, "quote.title")
	require.NoError(t, err)
	assert.Equal(t, "Untitled\n", out)

	_, err = w.run(t, "", "set", w.content, "quote.number", "Q-1")
	require.NoError(t, err)
	out, err = w.run(t, "", "get", w.content, "quote.number")
	require.NoError(t, err)
	assert.Equal(t, "Q-1\n", out)

	t.Run("Value From Stdin By Title", func(t *testing.T) {
		_, err := w.run(t, "Hello *there*\n", "set", w.content, "Introduction", "-")
		require.NoError(t, err)
		out, err := w.run(t, "", "get", w.content, "Introduction")
		require.NoError(t, err)
		assert.Contains(t, out, "Hello *there*")
	})

	t.Run("From Last", func(t *testing.T) {
		_, err := w.run(t, "", "set", "Introduction", "from", "last", "Latest words")
		require.NoError(t, err)
		out, err := w.run(t, "", "get", w.content, "blocks.intro")
		require.NoError(t, err)
		assert.Contains(t, out, "Latest words")
	})

	t.Run("Batch", func(t *testing.T) {
		_, err := w.run(t, `{"quote.number": "Q-2", "quote.total": 12}`, "set", w.content, "--batch")
		require.NoError(t, err)
		out, err := w.run(t, "", "get", w.content, "quote.total")
		require.NoError(t, err)
		assert.Equal(t, "12\n", out)
	})

	t.Run("JSON Output", func(t *testing.T) {
		out, err := w.run(t, "", "--json", "get", w.content, "quote.number")
		require.NoError(t, err)
		var res struct {
			Path   string `json:"path"`
			Value  any    `json:"value"`
			Source string `json:"source"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, "quote.number", res.Path)
		assert.Equal(t, "Q-2", res.Value)
		assert.Equal(t, "content", res.Source)
	})

	t.Run("Default Flag", func(t *testing.T) {
		out, err := w.run(t, "", "get", w.content, "quote.missing", "--default", "n/a")
		require.NoError(t, err)
		assert.Equal(t, "n/a\n", out)
	})
}

func TestCLI_Errors(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "", "init", w.template, "-o", w.content)
	require.NoError(t, err)

	_, err = w.run(t, "", "get", w.content, "nope.path")
	assert.Equal(t, "path_not_found", core.Kind(err))
	assert.Equal(t, 1, core.ExitCode(err))

	_, err = w.run(t, "", "get", w.content)
	assert.ErrorIs(t, err, core.ErrUsage)

	_, err = w.run(t, `{"quote.number": "kept?", "quote.total": [1, 2]}`, "set", w.content, "--batch")
	assert.Equal(t, "type_mismatch", core.Kind(err))
	out, err := w.run(t, "", "get", w.content, "quote.number")
	require.NoError(t, err)
	assert.NotContains(t, out, "kept?")

	_, err = w.run(t, "", "--lock-timeout", "1h", "get", w.content, "quote.title")
	assert.ErrorIs(t, err, core.ErrUsage)
}

func TestCLI_NewAndAnalyzeData(t *testing.T) {
	w := newWorkspace(t)
	t.Setenv("TMPLTR_TEMPLATES", filepath.Dir(w.template))

	out, err := w.run(t, "", "new", "quote", "-o", w.content)
	require.NoError(t, err)
	assert.Contains(t, out, "Created "+w.content+" (3 fields, 1 blocks)")

	_, err = w.run(t, "", "new", "invoice", "-o", w.content)
	assert.Equal(t, "template_not_found", core.Kind(err))

	reads := filepath.Join(filepath.Dir(w.template), "letter.typ")
	require.NoError(t, os.WriteFile(reads, []byte(`#editable("letter.subject")
#data.recipient.name
#blocks.closing
`), 0o644))
	letter := filepath.Join(w.dir, "letter.yaml")
	out, err = w.run(t, "", "init", reads, "-o", letter, "--analyze-data")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 fields, 1 blocks)")

	out, err = w.run(t, "", "get", letter, "recipient.name")
	require.NoError(t, err)
	assert.Equal(t, "<recipient.name>\n", out)
}

func TestCLI_ValidateAndBlocks(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "", "init", w.template, "-o", w.content)
	require.NoError(t, err)

	out, err := w.run(t, "", "validate", w.content)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	out, err = w.run(t, "", "blocks", w.content)
	require.NoError(t, err)
	assert.Contains(t, out, "blocks.intro")
	assert.Contains(t, out, "Introduction")

	broken := filepath.Join(w.dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("meta:\n  template: templates/quote.typ\nquote:\n  total: [1]\n"), 0o644))
	out, err = w.run(t, "", "--json", "validate", broken)
	var validation *core.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, out, `"valid": false`)
}

func TestCLI_Compile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	w := newWorkspace(t)
	bin := filepath.Join(w.dir, "typst")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nfor last; do :; done; printf '%%PDF' > \"$last\"\n"), 0o755))

	_, err := w.run(t, "", "init", w.template, "-o", w.content)
	require.NoError(t, err)

	pdf := filepath.Join(w.dir, "out.pdf")
	out, err := w.run(t, "", "--typst", bin, "compile", w.content, "-o", pdf)
	require.NoError(t, err)
	assert.Contains(t, out, "Compiled "+pdf+" (4 B)")
	assert.FileExists(t, pdf)
}

func TestCLI_RecentTemplatesVersion(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "", "init", w.template, "-o", w.content)
	require.NoError(t, err)
	_, err = w.run(t, "", "get", w.content, "quote.title")
	require.NoError(t, err)

	out, err := w.run(t, "", "--json", "recent")
	require.NoError(t, err)
	var docs []core.RecentDocument
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "quote", docs[0].TemplateID)

	out, err = w.run(t, "", "templates", filepath.Dir(w.template))
	require.NoError(t, err)
	assert.Contains(t, out, "Project quote")

	out, err = w.run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "tmpltr version "+strings.TrimSpace(tmpltr.Version)+"\n", out)
}
