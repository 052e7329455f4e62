package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/core"
	"github.com/byteowlz/tmpltr/pkg/template"
)

// TemplatePattern matches template sources during discovery.
const TemplatePattern = "**/*.typ"

// Config holds the configuration for the filesystem store.
type Config struct {
	// LockTimeout bounds the wait for a content file lock.
	LockTimeout time.Duration
	// DryRun computes every change but never writes to disk.
	DryRun bool
	Logger *slog.Logger
}

// Store reads templates and content files and saves content files under
// the per-file lock with atomic writes.
type Store struct {
	config Config

	mu        sync.Mutex
	writes    int
	held      map[string]time.Time
	lastWrite *time.Time
}

// NewStore creates a filesystem store.
func NewStore(config Config) *Store {
	if config.LockTimeout <= 0 {
		config.LockTimeout = DefaultLockTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Store{config: config, held: make(map[string]time.Time)}
}

// DryRun reports whether writes are suppressed.
func (s *Store) DryRun() bool { return s.config.DryRun }

// ReadTemplate loads and scans the template at path.
func (s *Store) ReadTemplate(path string) (*template.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.IOError{Path: path, Err: err}
	}
	return template.New(path, string(data))
}

// ReadDocument loads the content file at path without locking it.
func (s *Store) ReadDocument(path string) (*content.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.IOError{Path: path, Err: err}
	}
	doc, err := content.Parse(data)
	if err != nil {
		return nil, &core.IOError{Path: path, Err: err}
	}
	return doc, nil
}

// Update applies fn to the content file at path while holding its lock and
// saves the result when fn changed anything. It returns the encoded
// document, which is what would be written in dry-run mode.
func (s *Store) Update(ctx context.Context, path string, fn func(*content.Document) error) ([]byte, error) {
	return s.withLock(ctx, path, func() ([]byte, error) {
		doc, err := s.ReadDocument(path)
		if err != nil {
			return nil, err
		}
		if err := fn(doc); err != nil {
			return nil, err
		}
		return s.save(path, doc)
	})
}

// Replace is Update for files that may not exist yet: fn receives the
// current document, or nil when there is none, and returns the document
// to save.
func (s *Store) Replace(ctx context.Context, path string, fn func(existing *content.Document) (*content.Document, error)) ([]byte, error) {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if s.config.DryRun {
			// Nothing exists to lock or read; nothing will be written.
			doc, err := fn(nil)
			if err != nil {
				return nil, err
			}
			return s.write(path, doc)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &core.IOError{Path: dir, Err: err}
		}
	}
	return s.withLock(ctx, path, func() ([]byte, error) {
		existing, err := s.ReadDocument(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			existing = nil
		}
		doc, err := fn(existing)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return s.write(path, doc)
		}
		return s.save(path, doc)
	})
}

// WriteFile atomically writes an auxiliary file such as a generated JSON
// Schema.
func (s *Store) WriteFile(path string, data []byte) error {
	if s.config.DryRun {
		s.config.Logger.Info("dry run: skipping write", "path", path, "bytes", len(data))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &core.IOError{Path: filepath.Dir(path), Err: err}
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return &core.IOError{Path: path, Err: err}
	}
	s.recordWrite()
	return nil
}

func (s *Store) withLock(ctx context.Context, path string, fn func() ([]byte, error)) ([]byte, error) {
	unlock, err := Lock(ctx, path, s.config.LockTimeout)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.held[path] = time.Now()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.held, path)
		s.mu.Unlock()
		unlock()
	}()
	return fn()
}

// save writes doc when it has changes.
func (s *Store) save(path string, doc *content.Document) ([]byte, error) {
	if !doc.Dirty() {
		s.config.Logger.Debug("content unchanged, nothing to write", "path", path)
		return doc.Encode()
	}
	return s.write(path, doc)
}

func (s *Store) write(path string, doc *content.Document) ([]byte, error) {
	data, err := doc.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	if s.config.DryRun {
		s.config.Logger.Info("dry run: skipping write", "path", path, "bytes", len(data))
		return data, nil
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return nil, &core.IOError{Path: path, Err: err}
	}
	s.config.Logger.Debug("content saved", "path", path, "bytes", len(data))
	s.recordWrite()
	return data, nil
}

func (s *Store) recordWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.writes++
	s.lastWrite = &now
}

// FindTemplates lists the template files under each directory, sorted and
// without duplicates. Missing directories are skipped.
func FindTemplates(dirs ...string) ([]string, error) {
	seen := make(map[string]bool)
	var found []string
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(dir), TemplatePattern)
		if err != nil {
			return nil, fmt.Errorf("search templates in %s: %w", dir, err)
		}
		for _, m := range matches {
			path := filepath.Join(dir, filepath.FromSlash(m))
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			if !seen[path] {
				seen[path] = true
				found = append(found, path)
			}
		}
	}
	sort.Strings(found)
	return found, nil
}

// Templates implements template discovery for the service.
func (s *Store) Templates(dirs ...string) ([]string, error) {
	return FindTemplates(dirs...)
}
