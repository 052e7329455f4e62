// Package service runs tmpltr operations against files: it loads the
// content file and its template, applies the pure reconcile operations and
// saves, renders or remembers the result.
package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/core"
	"github.com/byteowlz/tmpltr/pkg/template"
)

// Store is the file access the service needs.
type Store interface {
	ReadTemplate(path string) (*template.Template, error)
	ReadDocument(path string) (*content.Document, error)
	Update(ctx context.Context, path string, fn func(*content.Document) error) ([]byte, error)
	Replace(ctx context.Context, path string, fn func(existing *content.Document) (*content.Document, error)) ([]byte, error)
	WriteFile(path string, data []byte) error
	Templates(dirs ...string) ([]string, error)
}

// Config wires the service to its collaborators.
type Config struct {
	Store    Store
	Renderer core.Renderer
	Recent   core.RecentIndex
	Logger   *slog.Logger
	// Now is the clock used for generated_at stamps.
	Now func() time.Time
	// TemplateDirs are searched by Templates when no directory is given.
	TemplateDirs []string
}

// Service handles the tmpltr operations on content files.
type Service struct {
	store        Store
	renderer     core.Renderer
	recent       core.RecentIndex
	logger       *slog.Logger
	now          func() time.Time
	templateDirs []string

	mu         sync.Mutex
	operations map[string]int
	lastFile   string
}

// New creates a Service. Store is required; without a Renderer Compile
// fails and without a Recent index nothing is remembered.
func New(config Config) *Service {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Service{
		store:        config.Store,
		renderer:     config.Renderer,
		recent:       config.Recent,
		logger:       config.Logger,
		now:          config.Now,
		templateDirs: config.TemplateDirs,
		operations:   make(map[string]int),
	}
}

// Loaded is a content file together with its template.
type Loaded struct {
	File     string
	Doc      *content.Document
	Template *template.Template
}

// Load reads the content file and the template named by its meta.template,
// which is resolved relative to the content file.
func (s *Service) Load(ctx context.Context, file string) (*Loaded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.store.ReadDocument(file)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.templateFor(file, doc)
	if err != nil {
		return nil, err
	}
	return &Loaded{File: file, Doc: doc, Template: tmpl}, nil
}

func (s *Service) templateFor(file string, doc *content.Document) (*template.Template, error) {
	ref, ok := doc.Get(MetaTemplate).Str()
	if !ok || ref == "" {
		return nil, core.ErrNoTemplate
	}
	return s.store.ReadTemplate(TemplatePath(file, ref))
}

// TemplatePath resolves a meta.template reference against the directory
// of the content file.
func TemplatePath(file, ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(filepath.Dir(file), filepath.FromSlash(ref))
}

// remember records file in the recent index. Failures are logged only.
func (s *Service) remember(ctx context.Context, l *Loaded) {
	s.mu.Lock()
	s.lastFile = l.File
	s.mu.Unlock()

	if s.recent == nil {
		return
	}
	entry := core.RecentDocument{
		File:            l.File,
		TemplateID:      l.Template.ID,
		TemplateVersion: l.Template.Version,
		Title:           documentTitle(l.Doc),
	}
	for _, f := range l.Template.Schema.Blocks() {
		entry.Blocks = append(entry.Blocks, f.Info())
	}
	if err := s.recent.Touch(ctx, entry); err != nil {
		s.logger.Warn("failed to update recent documents", "file", l.File, "error", err)
	}
}

// documentTitle picks the display title of a content file.
func documentTitle(doc *content.Document) string {
	for _, path := range []string{"quote.title", "meta.title", "title"} {
		if s, ok := doc.Get(path).Str(); ok && s != "" {
			return s
		}
	}
	return ""
}

func (s *Service) count(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operations[op]++
}
