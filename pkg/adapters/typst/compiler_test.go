package typst

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/tmpltr/pkg/core"
)

// fakeTypst writes a shell script standing in for the typst binary.
func fakeTypst(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "typst")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("", "out/report.SVG")
	require.NoError(t, err)
	assert.Equal(t, "svg", f)

	f, err = FormatOf("", "")
	require.NoError(t, err)
	assert.Equal(t, "pdf", f)

	_, err = FormatOf("docx", "")
	assert.ErrorIs(t, err, core.ErrUsage)
}

func TestCompiler_Args(t *testing.T) {
	c := NewCompiler("", []string{"/fonts"}, nil)
	args, err := c.Args(core.RenderJob{
		Template: "quote.typ",
		Data:     map[string]any{"quote": map[string]any{"number": "Q-1"}},
	}, "pdf", "quote.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"compile", "--format", "pdf",
		"--input", `data={"quote":{"number":"Q-1"}}`,
		"--font-path", "/fonts",
		"quote.typ", "quote.pdf",
	}, args)
	assert.Equal(t, DefaultBinary, c.Binary)
}

func TestCompiler_Render(t *testing.T) {
	ctx := context.Background()

	t.Run("Writes Output", func(t *testing.T) {
		// The output path is the last argument.
		bin := fakeTypst(t, `for last; do :; done; printf '%%PDF' > "$last"`)
		out := filepath.Join(t.TempDir(), "quote.pdf")

		res, err := NewCompiler(bin, nil, nil).Render(ctx, core.RenderJob{Template: "quote.typ", Output: out})
		require.NoError(t, err)
		assert.Equal(t, out, res.Output)
		assert.Equal(t, "pdf", res.Format)
		assert.Equal(t, int64(4), res.Size)
	})

	t.Run("Failure Is Render Error", func(t *testing.T) {
		bin := fakeTypst(t, "echo 'error: unknown variable: data' >&2\necho '  ┌─ quote.typ:3:1' >&2\nexit 1\n")

		_, err := NewCompiler(bin, nil, nil).Render(ctx, core.RenderJob{Template: "quote.typ", Output: "x.pdf"})
		var renderErr *core.RenderError
		require.True(t, errors.As(err, &renderErr))
		assert.Equal(t, "typst compilation failed: error: unknown variable: data", renderErr.Message)
		assert.True(t, strings.Contains(renderErr.Details, "quote.typ:3:1"))
		assert.Equal(t, 2, core.ExitCode(err))
	})

	t.Run("Warnings Only Succeed", func(t *testing.T) {
		bin := fakeTypst(t, "echo 'warning: unused font' >&2\nexit 1\n")
		_, err := NewCompiler(bin, nil, nil).Render(ctx, core.RenderJob{Template: "q.typ", CheckOnly: true})
		assert.NoError(t, err)
	})

	t.Run("Check Only Keeps No Output", func(t *testing.T) {
		bin := fakeTypst(t, `for last; do :; done; echo x > "$last"`)
		res, err := NewCompiler(bin, nil, nil).Render(ctx, core.RenderJob{Template: "q.typ", CheckOnly: true})
		require.NoError(t, err)
		assert.Equal(t, "check", res.Format)
		assert.Empty(t, res.Output)
	})

	t.Run("Missing Binary", func(t *testing.T) {
		c := NewCompiler(filepath.Join(t.TempDir(), "no-typst"), nil, nil)
		_, err := c.Render(ctx, core.RenderJob{Template: "q.typ", Output: "q.pdf"})
		assert.Equal(t, "render_error", core.Kind(err))
	})
}
