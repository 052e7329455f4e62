package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_Matches(t *testing.T) {
	dir := t.TempDir()
	content := filepath.Join(dir, "acme.yaml")
	tmpl := filepath.Join(dir, "quote.typ")

	w := NewWorker(WorkerConfig{
		Targets: map[string][]string{
			content: {content},
			tmpl:    {content},
		},
		Pattern: "*.yml",
	})

	assert.Equal(t, []string{dir}, w.Dirs())
	assert.Equal(t, []string{content}, w.Matches(content))
	assert.Equal(t, []string{content}, w.Matches(tmpl))
	assert.Equal(t, []string{filepath.Join(dir, "other.yml")}, w.Matches(filepath.Join(dir, "other.yml")))
	assert.Empty(t, w.Matches(content+".lock"))
	assert.Empty(t, w.Matches(filepath.Join(dir, "notes.md")))
}

func TestWorker_TriggersPasses(t *testing.T) {
	dir := t.TempDir()
	content := filepath.Join(dir, "acme.yaml")
	tmpl := filepath.Join(dir, "quote.typ")
	require.NoError(t, os.WriteFile(content, []byte("a: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(tmpl, []byte("= Quote\n"), 0o644))

	rec := newRecorder()
	seq := NewSequencer(SequencerConfig{
		Debounce: testDebounce,
		Pass:     func(context.Context, string) error { return nil },
		OnResult: rec.record,
	})
	defer seq.Close(time.Second)

	w := NewWorker(WorkerConfig{
		Targets:   map[string][]string{content: {content}, tmpl: {content}},
		Sequencer: seq,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop(context.Background())

	t.Run("Content Change", func(t *testing.T) {
		require.NoError(t, os.WriteFile(content, []byte("a: 2\n"), 0o644))
		assert.Equal(t, content, rec.wait(t).File)
	})

	t.Run("Template Change Recompiles Content", func(t *testing.T) {
		require.NoError(t, os.WriteFile(tmpl, []byte("= Quote v2\n"), 0o644))
		assert.Equal(t, content, rec.wait(t).File)
	})

	t.Run("Lock Files Are Ignored", func(t *testing.T) {
		require.NoError(t, os.WriteFile(content+".lock", nil, 0o644))
		rec.quiet(t, 5*testDebounce)
	})

	assert.GreaterOrEqual(t, w.Seen(), 2)
}
