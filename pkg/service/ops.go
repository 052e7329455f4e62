package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/byteowlz/tmpltr/pkg/adapters/typst"
	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/core"
	"github.com/byteowlz/tmpltr/pkg/reconcile"
	"github.com/byteowlz/tmpltr/pkg/template"
)

// InitRequest describes an init run.
type InitRequest struct {
	Template string
	// Output is the content file; empty means <template stem>.yaml next to
	// the template.
	Output string
	// SchemaOutput, when set, receives the JSON Schema of the template.
	SchemaOutput string
	// Force discards an existing content file instead of completing it.
	Force bool
	// AnalyzeData also seeds the data the template reads in code without
	// declaring a marker for it.
	AnalyzeData bool
}

// InitResult reports what init produced.
type InitResult struct {
	Output   string `json:"output"`
	Schema   string `json:"schema,omitempty"`
	Fields   int    `json:"fields"`
	Blocks   int    `json:"blocks"`
	Existing bool   `json:"existing"`
	// Content is the encoded content file, also in dry-run mode.
	Content []byte `json:"-"`
	// JSONSchema is the encoded JSON Schema when one was requested.
	JSONSchema []byte `json:"-"`
}

// Init creates or completes the content file for a template.
func (s *Service) Init(ctx context.Context, req InitRequest) (InitResult, error) {
	s.count("init")
	tmpl, err := s.store.ReadTemplate(req.Template)
	if err != nil {
		return InitResult{}, err
	}
	output := req.Output
	if output == "" {
		output = strings.TrimSuffix(req.Template, filepath.Ext(req.Template)) + ".yaml"
	}

	res := InitResult{
		Output: output,
		Fields: tmpl.Schema.Len() - len(tmpl.Schema.Blocks()),
		Blocks: len(tmpl.Schema.Blocks()),
	}
	opts := []reconcile.InitOption{reconcile.WithMeta(meta(output, tmpl, s.now()))}
	if req.AnalyzeData {
		extra := accessFields(tmpl)
		for _, f := range extra {
			if f.IsBlock() {
				res.Blocks++
			} else {
				res.Fields++
			}
		}
		opts = append(opts, reconcile.WithExtraFields(extra...))
		s.logger.Debug("data reads analyzed", "template", req.Template, "extra", len(extra))
	}

	if req.SchemaOutput != "" {
		data, err := template.JSONSchema(tmpl.Schema, tmpl.ID)
		if err != nil {
			return InitResult{}, err
		}
		if err := s.store.WriteFile(req.SchemaOutput, data); err != nil {
			return InitResult{}, err
		}
		res.Schema = req.SchemaOutput
		res.JSONSchema = data
	}

	var result *content.Document
	res.Content, err = s.store.Replace(ctx, output, func(existing *content.Document) (*content.Document, error) {
		if req.Force {
			existing = nil
		}
		res.Existing = existing != nil
		doc, err := reconcile.Init(tmpl.Schema, existing, opts...)
		result = doc
		return doc, err
	})
	if err != nil {
		return InitResult{}, err
	}

	s.logger.Info("content initialized", "template", req.Template, "output", output, "fields", res.Fields, "blocks", res.Blocks)
	s.remember(ctx, &Loaded{File: output, Doc: result, Template: tmpl})
	return res, nil
}

// accessFields turns the data reads of tmpl that no marker covers into
// fields. Plain reads default to a "<path>" placeholder and blocks to a
// heading with a hint.
func accessFields(tmpl *template.Template) []core.Field {
	var out []core.Field
	for _, a := range tmpl.Accesses {
		if tmpl.Schema.Contains(a.Path) {
			continue
		}
		f := core.Field{
			Marker: core.Marker{ID: a.Path, Kind: core.KindField, Format: core.FormatText, Default: a.Default},
			Shape:  core.ShapeScalar,
		}
		switch {
		case a.Block:
			name := strings.TrimPrefix(a.Path, "blocks"+core.PathSeparator)
			f.Kind = core.KindBlock
			f.Title = name
			f.Format = core.FormatMarkdown
			f.Shape = core.ShapeBlockText
			if !a.Default.IsString() {
				f.Default = core.String("# " + name + "\n\nAdd content here.")
			}
		case a.Default.IsAbsent():
			f.Default = core.String("<" + a.Path + ">")
		}
		out = append(out, f)
	}
	return out
}

// FindTemplate resolves a template name to a file. A name with a path
// separator or the .typ extension is taken as a path. Otherwise the
// template directories are searched in order for <name>.typ, and the
// shallowest match in the first directory holding one wins.
func (s *Service) FindTemplate(ctx context.Context, name string) (string, error) {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) || filepath.Ext(name) == ".typ" {
		return name, nil
	}
	for _, dir := range s.templateDirs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		paths, err := s.store.Templates(dir)
		if err != nil {
			return "", err
		}
		best := ""
		for _, p := range paths {
			if template.IDFromPath(p) != name {
				continue
			}
			if best == "" || strings.Count(p, string(filepath.Separator)) < strings.Count(best, string(filepath.Separator)) {
				best = p
			}
		}
		if best != "" {
			return best, nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched %s)", core.ErrTemplateNotFound, name, strings.Join(s.templateDirs, ", "))
}

// New is Init for a template given by name; see FindTemplate.
func (s *Service) New(ctx context.Context, name string, req InitRequest) (InitResult, error) {
	path, err := s.FindTemplate(ctx, name)
	if err != nil {
		return InitResult{}, err
	}
	req.Template = path
	return s.Init(ctx, req)
}

// Get reads the value addressed by locator (a path or a block title).
func (s *Service) Get(ctx context.Context, file, locator string, opts ...reconcile.GetOption) (reconcile.Result, error) {
	s.count("get")
	l, err := s.Load(ctx, file)
	if err != nil {
		return reconcile.Result{}, err
	}
	res, err := reconcile.Get(l.Template.Schema, l.Doc, locator, opts...)
	if err != nil {
		return reconcile.Result{}, err
	}
	s.remember(ctx, l)
	return res, nil
}

// Set writes value at locator and saves the content file.
func (s *Service) Set(ctx context.Context, file, locator string, value core.Value) (reconcile.SetResult, error) {
	return s.set(ctx, file, locator, func(*core.Schema, *content.Document) (core.Value, error) {
		return value, nil
	})
}

// SetText is Set for command line input: the text is coerced to the
// shape of the addressed field.
func (s *Service) SetText(ctx context.Context, file, locator, text string) (reconcile.SetResult, error) {
	return s.set(ctx, file, locator, func(schema *core.Schema, doc *content.Document) (core.Value, error) {
		return reconcile.Coerce(schema, doc, locator, text)
	})
}

// SetLast is SetText on the most recently used content file.
func (s *Service) SetLast(ctx context.Context, locator, text string) (string, reconcile.SetResult, error) {
	if s.recent == nil {
		return "", reconcile.SetResult{}, core.ErrNoRecentDocument
	}
	last, err := s.recent.Last(ctx)
	if err != nil {
		return "", reconcile.SetResult{}, err
	}
	res, err := s.SetText(ctx, last.File, locator, text)
	return last.File, res, err
}

func (s *Service) set(ctx context.Context, file, locator string, value func(*core.Schema, *content.Document) (core.Value, error)) (reconcile.SetResult, error) {
	s.count("set")
	l, err := s.Load(ctx, file)
	if err != nil {
		return reconcile.SetResult{}, err
	}
	schema := l.Template.Schema

	var res reconcile.SetResult
	_, err = s.store.Update(ctx, file, func(doc *content.Document) error {
		v, err := value(schema, doc)
		if err != nil {
			return err
		}
		res, err = reconcile.Set(schema, doc, locator, v)
		l.Doc = doc
		return err
	})
	if err != nil {
		return reconcile.SetResult{}, err
	}
	s.logger.Debug("value set", "file", file, "path", res.Path)
	s.remember(ctx, l)
	return res, nil
}

// SetBatch applies every path/value pair of values in order and saves once.
// When any pair fails nothing is written.
func (s *Service) SetBatch(ctx context.Context, file string, values core.Value) ([]reconcile.SetResult, error) {
	s.count("set")
	if !values.IsMapping() {
		return nil, fmt.Errorf("%w: batch input must be an object of path to value", core.ErrUsage)
	}
	l, err := s.Load(ctx, file)
	if err != nil {
		return nil, err
	}
	schema := l.Template.Schema

	var results []reconcile.SetResult
	_, err = s.store.Update(ctx, file, func(doc *content.Document) error {
		results = results[:0]
		for _, e := range values.Entries() {
			v := e.Value
			if text, ok := v.Str(); ok {
				coerced, err := reconcile.Coerce(schema, doc, e.Key, text)
				if err != nil {
					return fmt.Errorf("%s: %w", e.Key, err)
				}
				if coerced.IsMapping() || coerced.IsSequence() {
					v = coerced
				}
			}
			res, err := reconcile.Set(schema, doc, e.Key, v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.Key, err)
			}
			results = append(results, res)
		}
		l.Doc = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.remember(ctx, l)
	return results, nil
}

// Blocks lists the blocks the template of file declares.
func (s *Service) Blocks(ctx context.Context, file string) ([]core.Field, error) {
	s.count("blocks")
	l, err := s.Load(ctx, file)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, l)
	return reconcile.ListBlocks(l.Template.Schema), nil
}

// Validate checks file against its template. With jsonSchema the content
// is also checked against the generated JSON Schema.
func (s *Service) Validate(ctx context.Context, file string, jsonSchema bool) ([]core.Diagnostic, error) {
	s.count("validate")
	l, err := s.Load(ctx, file)
	if err != nil {
		return nil, err
	}
	diags := reconcile.Validate(l.Template.Schema, l.Doc)
	if jsonSchema {
		extra, err := reconcile.ValidateJSONSchema(l.Template.Schema, l.Doc)
		if err != nil {
			return nil, err
		}
		diags = append(diags, extra...)
	}
	s.remember(ctx, l)
	return diags, nil
}

// CompileRequest describes a render.
type CompileRequest struct {
	File string
	// Output defaults to the content file with the format's extension.
	Output string
	Format string
	// Check renders without keeping the output.
	Check bool
}

// CompileResult reports a finished render.
type CompileResult struct {
	core.RenderOutput
	Warnings    []typst.Warning   `json:"warnings,omitempty"`
	Diagnostics []core.Diagnostic `json:"diagnostics,omitempty"`
}

// Compile validates file and renders it with its template. Validation
// errors stop the render with a *core.ValidationError.
func (s *Service) Compile(ctx context.Context, req CompileRequest) (CompileResult, error) {
	s.count("compile")
	if s.renderer == nil {
		return CompileResult{}, errors.New("no renderer configured")
	}
	l, err := s.Load(ctx, req.File)
	if err != nil {
		return CompileResult{}, err
	}

	diags := reconcile.Validate(l.Template.Schema, l.Doc)
	if core.HasErrors(diags) {
		return CompileResult{Diagnostics: diags}, &core.ValidationError{Diagnostics: diags}
	}

	format, err := typst.FormatOf(req.Format, req.Output)
	if err != nil {
		return CompileResult{}, err
	}
	output := req.Output
	if output == "" && !req.Check {
		output = strings.TrimSuffix(req.File, filepath.Ext(req.File)) + "." + format
	}

	data, warnings := typst.PrepareData(l.Template.Schema, l.Doc)
	for _, w := range warnings {
		s.logger.Warn("markdown construct not converted", "path", w.Path, "line", w.Line, "construct", w.Construct)
	}

	out, err := s.renderer.Render(ctx, core.RenderJob{
		Template:  l.Template.Path,
		Output:    output,
		Format:    format,
		Data:      data,
		CheckOnly: req.Check,
	})
	if err != nil {
		return CompileResult{}, err
	}
	s.logger.Info("document compiled", "file", req.File, "output", out.Output, "duration", out.Duration)
	s.remember(ctx, l)
	return CompileResult{RenderOutput: out, Warnings: warnings, Diagnostics: diags}, nil
}

// Recent lists the recently used content files, most recent first.
func (s *Service) Recent(ctx context.Context) ([]core.RecentDocument, error) {
	if s.recent == nil {
		return nil, nil
	}
	return s.recent.List(ctx)
}

// TemplateSummary describes a discovered template.
type TemplateSummary struct {
	Path        string `json:"path"`
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	Fields      int    `json:"fields"`
	Blocks      int    `json:"blocks"`
	Error       string `json:"error,omitempty"`
}

// Templates lists the templates under dirs, or under the configured
// template directories when dirs is empty. Templates that fail to scan are
// listed with their error.
func (s *Service) Templates(ctx context.Context, dirs ...string) ([]TemplateSummary, error) {
	s.count("templates")
	if len(dirs) == 0 {
		dirs = s.templateDirs
	}
	paths, err := s.store.Templates(dirs...)
	if err != nil {
		return nil, err
	}
	out := make([]TemplateSummary, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sum := TemplateSummary{Path: p, ID: template.IDFromPath(p)}
		tmpl, err := s.store.ReadTemplate(p)
		if err != nil {
			sum.Error = err.Error()
			out = append(out, sum)
			continue
		}
		sum.Description = tmpl.Description
		sum.Version = tmpl.Version
		sum.Blocks = len(tmpl.Schema.Blocks())
		sum.Fields = tmpl.Schema.Len() - sum.Blocks
		out = append(out, sum)
	}
	return out, nil
}
