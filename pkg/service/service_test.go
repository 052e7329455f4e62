package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/tmpltr/pkg/adapters/fs"
	"github.com/byteowlz/tmpltr/pkg/core"
	"github.com/byteowlz/tmpltr/pkg/reconcile"
)

const quoteTemplate = `// @description: Project quote
// @version: 2.1.0
#let data = json(bytes(sys.inputs.data))
#editable("quote.title", default: "Untitled")
#editable("quote.number")
#editable("quote.total", type: "number", default: 0)
#editable-block("blocks.intro", title: "Introduction")[
  Thank you for *your* interest.
]
#editable-block("blocks.phases", title: "Phases", format: "table")
`

type fakeRenderer struct {
	mu   sync.Mutex
	jobs []core.RenderJob
	err  error
}

func (f *fakeRenderer) Render(_ context.Context, job core.RenderJob) (core.RenderOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return core.RenderOutput{}, f.err
	}
	return core.RenderOutput{Output: job.Output, Format: job.Format, Size: 1234}, nil
}

type fixture struct {
	svc      *Service
	dir      string
	template string
	content  string
	renderer *fakeRenderer
	recent   *fs.Recent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	tmplDir := filepath.Join(dir, "templates")
	require.NoError(t, os.MkdirAll(tmplDir, 0o755))
	tmplPath := filepath.Join(tmplDir, "quote.typ")
	require.NoError(t, os.WriteFile(tmplPath, []byte(quoteTemplate), 0o644))

	f := &fixture{
		dir:      dir,
		template: tmplPath,
		content:  filepath.Join(dir, "docs", "acme.yaml"),
		renderer: &fakeRenderer{},
		recent:   fs.NewRecent(filepath.Join(dir, "cache"), false),
	}
	f.svc = New(Config{
		Store:        fs.NewStore(fs.Config{LockTimeout: time.Second}),
		Renderer:     f.renderer,
		Recent:       f.recent,
		Now:          func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
		TemplateDirs: []string{tmplDir},
	})
	return f
}

func (f *fixture) init(t *testing.T) InitResult {
	t.Helper()
	res, err := f.svc.Init(context.Background(), InitRequest{Template: f.template, Output: f.content})
	require.NoError(t, err)
	return res
}

func TestService_Init(t *testing.T) {
	ctx := context.Background()

	t.Run("Writes Skeleton and Meta", func(t *testing.T) {
		f := newFixture(t)
		res := f.init(t)
		assert.Equal(t, 3, res.Fields)
		assert.Equal(t, 2, res.Blocks)
		assert.False(t, res.Existing)

		l, err := f.svc.Load(ctx, f.content)
		require.NoError(t, err)
		assert.Equal(t, "../templates/quote.typ", l.Doc.Get(MetaTemplate).Text())
		assert.Equal(t, "quote", l.Doc.Get(MetaTemplateID).Text())
		assert.Equal(t, "2.1.0", l.Doc.Get(MetaTemplateVersion).Text())
		assert.Equal(t, "2024-05-01T12:00:00Z", l.Doc.Get(MetaGeneratedAt).Text())
		assert.Equal(t, "Untitled", l.Doc.Get("quote.title").Text())
		assert.Equal(t, "Thank you for *your* interest.", l.Doc.Get("blocks.intro.content").Text())
	})

	t.Run("Keeps Existing Values", func(t *testing.T) {
		f := newFixture(t)
		f.init(t)
		_, err := f.svc.SetText(ctx, f.content, "quote.number", "Q-9")
		require.NoError(t, err)

		res := f.init(t)
		assert.True(t, res.Existing)
		got, err := f.svc.Get(ctx, f.content, "quote.number")
		require.NoError(t, err)
		assert.Equal(t, "Q-9", got.Value.Text())
	})

	t.Run("Force Starts Over", func(t *testing.T) {
		f := newFixture(t)
		f.init(t)
		_, err := f.svc.SetText(ctx, f.content, "quote.number", "Q-9")
		require.NoError(t, err)

		_, err = f.svc.Init(ctx, InitRequest{Template: f.template, Output: f.content, Force: true})
		require.NoError(t, err)
		got, err := f.svc.Get(ctx, f.content, "quote.number")
		require.NoError(t, err)
		assert.Equal(t, "", got.Value.Text())
	})

	t.Run("Writes JSON Schema", func(t *testing.T) {
		f := newFixture(t)
		schemaPath := filepath.Join(f.dir, "quote.schema.json")
		res, err := f.svc.Init(ctx, InitRequest{Template: f.template, Output: f.content, SchemaOutput: schemaPath})
		require.NoError(t, err)
		assert.Equal(t, schemaPath, res.Schema)
		data, err := os.ReadFile(schemaPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"quote"`)
	})

	t.Run("Default Output Next to Template", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.Init(ctx, InitRequest{Template: f.template})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(f.dir, "templates", "quote.yaml"), res.Output)
		assert.FileExists(t, res.Output)
	})
}

func TestService_InitAnalyzeData(t *testing.T) {
	ctx := context.Background()
	src := quoteTemplate + `#data.client.name
#get(data, "client.city", default: "Berlin")
#data.blocks.terms.content
#data.quote.title
`

	t.Run("Seeds Undeclared Reads", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, os.WriteFile(f.template, []byte(src), 0o644))

		res, err := f.svc.Init(ctx, InitRequest{Template: f.template, Output: f.content, AnalyzeData: true})
		require.NoError(t, err)
		assert.Equal(t, 5, res.Fields)
		assert.Equal(t, 3, res.Blocks)

		l, err := f.svc.Load(ctx, f.content)
		require.NoError(t, err)
		assert.Equal(t, "<client.name>", l.Doc.Get("client.name").Text())
		assert.Equal(t, "Berlin", l.Doc.Get("client.city").Text())
		assert.Equal(t, "terms", l.Doc.Get("blocks.terms.title").Text())
		assert.Equal(t, "# terms\n\nAdd content here.", l.Doc.Get("blocks.terms.content").Text())
		assert.Equal(t, "Untitled", l.Doc.Get("quote.title").Text())
	})

	t.Run("Off By Default", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, os.WriteFile(f.template, []byte(src), 0o644))

		res := f.init(t)
		assert.Equal(t, 3, res.Fields)
		l, err := f.svc.Load(ctx, f.content)
		require.NoError(t, err)
		assert.False(t, l.Doc.Has("client"))
	})
}

func TestService_New(t *testing.T) {
	ctx := context.Background()

	t.Run("Finds Template By Name", func(t *testing.T) {
		f := newFixture(t)
		nested := filepath.Join(filepath.Dir(f.template), "archive", "quote.typ")
		require.NoError(t, os.MkdirAll(filepath.Dir(nested), 0o755))
		require.NoError(t, os.WriteFile(nested, []byte(`#editable("old.title")`), 0o644))

		res, err := f.svc.New(ctx, "quote", InitRequest{Output: f.content})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Fields)

		l, err := f.svc.Load(ctx, f.content)
		require.NoError(t, err)
		assert.Equal(t, "../templates/quote.typ", l.Doc.Get(MetaTemplate).Text())
	})

	t.Run("Path Is Used As Is", func(t *testing.T) {
		f := newFixture(t)
		path, err := f.svc.FindTemplate(ctx, f.template)
		require.NoError(t, err)
		assert.Equal(t, f.template, path)
	})

	t.Run("Unknown Name", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.New(ctx, "invoice", InitRequest{Output: f.content})
		assert.ErrorIs(t, err, core.ErrTemplateNotFound)
		assert.NoFileExists(t, f.content)
	})
}

func TestService_GetSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.init(t)

	res, err := f.svc.SetText(ctx, f.content, "Introduction", "# Hello")
	require.NoError(t, err)
	assert.Equal(t, "blocks.intro", res.Path)

	got, err := f.svc.Get(ctx, f.content, "Introduction")
	require.NoError(t, err)
	assert.Equal(t, "# Hello", got.Value.Text())

	_, err = f.svc.SetText(ctx, f.content, "quote.total", "1200.50")
	require.NoError(t, err)
	got, err = f.svc.Get(ctx, f.content, "quote.total")
	require.NoError(t, err)
	n, ok := got.Value.Float64()
	require.True(t, ok)
	assert.Equal(t, 1200.5, n)

	t.Run("Type Mismatch Leaves File Untouched", func(t *testing.T) {
		before, err := os.ReadFile(f.content)
		require.NoError(t, err)
		_, err = f.svc.Set(ctx, f.content, "quote.title", core.Map(core.E("a", core.String("b"))))
		var mismatch *core.TypeMismatchError
		require.True(t, errors.As(err, &mismatch))
		after, _ := os.ReadFile(f.content)
		assert.Equal(t, string(before), string(after))
	})

	t.Run("Fallback Default", func(t *testing.T) {
		got, err := f.svc.Get(ctx, f.content, "custom.missing", reconcile.WithDefault(core.String("n/a")))
		require.NoError(t, err)
		assert.Equal(t, reconcile.FromFallback, got.Source)
	})

	t.Run("Missing Template Reference", func(t *testing.T) {
		bare := filepath.Join(f.dir, "bare.yaml")
		require.NoError(t, os.WriteFile(bare, []byte("quote:\n  title: x\n"), 0o644))
		_, err := f.svc.Get(ctx, bare, "quote.title")
		assert.ErrorIs(t, err, core.ErrNoTemplate)
	})
}

func TestService_ConcurrentSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.init(t)

	for round := 0; round < 5; round++ {
		title := fmt.Sprintf("Kickoff %d", round)
		number := fmt.Sprintf("Q-%d", round)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.Set(ctx, f.content, "quote.title", core.String(title))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.Set(ctx, f.content, "quote.number", core.String(number))
			assert.NoError(t, err)
		}()
		wg.Wait()

		got, err := f.svc.Get(ctx, f.content, "quote.title")
		require.NoError(t, err)
		assert.Equal(t, title, got.Value.Text())
		got, err = f.svc.Get(ctx, f.content, "quote.number")
		require.NoError(t, err)
		assert.Equal(t, number, got.Value.Text())
	}
	assert.NoFileExists(t, fs.LockPath(f.content))
}

func TestService_SetLast(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.svc.SetLast(ctx, "Introduction", "x")
	assert.ErrorIs(t, err, core.ErrNoRecentDocument)

	f.init(t)
	file, res, err := f.svc.SetLast(ctx, "Introduction", "From last")
	require.NoError(t, err)
	abs, _ := filepath.Abs(f.content)
	assert.Equal(t, abs, file)
	assert.Equal(t, "blocks.intro", res.Path)

	recent, err := f.svc.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "quote", recent[0].TemplateID)
	assert.Equal(t, "Untitled", recent[0].Title)
	assert.Len(t, recent[0].Blocks, 2)
}

func TestService_SetBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.init(t)

	batch, err := core.FromInterface(map[string]any{
		"quote.number":  "Q-1",
		"blocks.phases": `{"columns": ["phase", "days"], "rows": [["build", 5]]}`,
	})
	require.NoError(t, err)
	results, err := f.svc.SetBatch(ctx, f.content, batch)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	got, err := f.svc.Get(ctx, f.content, "Phases")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Value.Lookup("rows").Len())

	t.Run("Failure Writes Nothing", func(t *testing.T) {
		before, _ := os.ReadFile(f.content)
		bad := core.Map(
			core.E("quote.number", core.String("Q-2")),
			core.E("blocks.phases", core.Map(
				core.E("columns", core.Strings("a", "b")),
				core.E("rows", core.Seq(core.Strings("only-one"))),
			)),
		)
		_, err := f.svc.SetBatch(ctx, f.content, bad)
		var shape *core.ShapeError
		require.True(t, errors.As(err, &shape))
		after, _ := os.ReadFile(f.content)
		assert.Equal(t, string(before), string(after))
	})

	t.Run("Rejects Non Object", func(t *testing.T) {
		_, err := f.svc.SetBatch(ctx, f.content, core.String("x"))
		assert.ErrorIs(t, err, core.ErrUsage)
	})
}

func TestService_ValidateAndBlocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.init(t)

	diags, err := f.svc.Validate(ctx, f.content, false)
	require.NoError(t, err)
	// quote.number is required and empty strings count as present.
	assert.False(t, core.HasErrors(diags))

	blocks, err := f.svc.Blocks(ctx, f.content)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "blocks.intro", blocks[0].ID)

	diags, err = f.svc.Validate(ctx, f.content, true)
	require.NoError(t, err)
	assert.False(t, core.HasErrors(diags))
}

func TestService_Compile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.init(t)

	res, err := f.svc.Compile(ctx, CompileRequest{File: f.content})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "docs", "acme.pdf"), res.Output)

	require.Len(t, f.renderer.jobs, 1)
	job := f.renderer.jobs[0]
	assert.Equal(t, "pdf", job.Format)
	assert.Equal(t, filepath.Join(f.dir, "templates", "quote.typ"), job.Template)
	intro := job.Data["blocks"].(map[string]any)["intro"].(map[string]any)
	assert.Equal(t, "Thank you for _your_ interest.", intro["content"])

	t.Run("Renderer Failure", func(t *testing.T) {
		f.renderer.err = &core.RenderError{Message: "boom"}
		defer func() { f.renderer.err = nil }()
		_, err := f.svc.Compile(ctx, CompileRequest{File: f.content, Format: "svg"})
		assert.Equal(t, 2, core.ExitCode(err))
	})

	t.Run("Validation Errors Stop Render", func(t *testing.T) {
		_, err := f.svc.Set(ctx, f.content, "quote.total", core.Seq(core.Int(1)))
		require.Error(t, err)

		broken := filepath.Join(f.dir, "docs", "broken.yaml")
		require.NoError(t, os.WriteFile(broken, []byte("meta:\n  template: ../templates/quote.typ\nquote:\n  total: [1]\n"), 0o644))
		jobs := len(f.renderer.jobs)
		_, err = f.svc.Compile(ctx, CompileRequest{File: broken})
		var validation *core.ValidationError
		require.True(t, errors.As(err, &validation))
		assert.Equal(t, jobs, len(f.renderer.jobs))
	})
}

func TestService_Templates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "templates", "broken.typ"), []byte(`#editable(`), 0o644))

	list, err := f.svc.Templates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "broken", list[0].ID)
	assert.NotEmpty(t, list[0].Error)
	assert.Equal(t, "quote", list[1].ID)
	assert.Equal(t, "Project quote", list[1].Description)
	assert.Equal(t, 3, list[1].Fields)

	state := f.svc.State().(ServiceState)
	assert.Equal(t, "store", state.StoreType)
	assert.Equal(t, 1, state.Operations["templates"])
}
