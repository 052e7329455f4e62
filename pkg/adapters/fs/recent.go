package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/byteowlz/tmpltr/pkg/core"
)

const (
	// RecentFile is the name of the recent documents index in the cache dir.
	RecentFile = "documents.json"

	// MaxRecent caps the number of remembered documents.
	MaxRecent = 100
)

// recentIndex is the persistent form of the index, most recent first.
type recentIndex struct {
	Version   int                   `json:"version"`
	Documents []core.RecentDocument `json:"documents"`
}

// Recent implements core.RecentIndex on a JSON file.
type Recent struct {
	Path string // e.g. ~/.cache/tmpltr/documents.json

	mu     sync.Mutex
	index  recentIndex
	loaded bool
	dryRun bool
	now    func() time.Time
}

var _ core.RecentIndex = (*Recent)(nil)

// NewRecent creates the index stored in cacheDir. In dry-run mode touches
// are kept in memory only.
func NewRecent(cacheDir string, dryRun bool) *Recent {
	return &Recent{
		Path:   filepath.Join(cacheDir, RecentFile),
		index:  recentIndex{Version: 1},
		dryRun: dryRun,
		now:    time.Now,
	}
}

// DefaultCacheDir returns the per-user cache directory for tmpltr.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "tmpltr")
	}
	return filepath.Join(os.TempDir(), "tmpltr-cache")
}

// load reads the index once. A missing or corrupted file starts empty.
func (r *Recent) load() error {
	if r.loaded {
		return nil
	}
	data, err := os.ReadFile(r.Path)
	if os.IsNotExist(err) {
		r.index = recentIndex{Version: 1}
		r.loaded = true
		return nil
	}
	if err != nil {
		return &core.IOError{Path: r.Path, Err: fmt.Errorf("failed to read recent index: %w", err)}
	}
	var idx recentIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		idx = recentIndex{Version: 1}
	}
	r.index = idx
	r.loaded = true
	return nil
}

func (r *Recent) save() error {
	if r.dryRun {
		return nil
	}
	data, err := json.MarshalIndent(r.index, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.Path), 0o755); err != nil {
		return &core.IOError{Path: filepath.Dir(r.Path), Err: err}
	}
	if err := writeFileAtomic(r.Path, data, 0o644); err != nil {
		return &core.IOError{Path: r.Path, Err: err}
	}
	return nil
}

// Touch moves doc to the front of the index, replacing any older entry for
// the same file, and drops entries beyond MaxRecent. The file is re-read
// under its lock so that touches from other processes are kept.
func (r *Recent) Touch(ctx context.Context, doc core.RecentDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if abs, err := filepath.Abs(doc.File); err == nil {
		doc.File = abs
	}
	if doc.LastUsedAt.IsZero() {
		doc.LastUsedAt = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dryRun {
		if err := os.MkdirAll(filepath.Dir(r.Path), 0o755); err != nil {
			return &core.IOError{Path: filepath.Dir(r.Path), Err: err}
		}
		unlock, err := Lock(ctx, r.Path, DefaultLockTimeout)
		if err != nil {
			return err
		}
		defer unlock()
		r.loaded = false
	}
	if err := r.load(); err != nil {
		return err
	}

	docs := make([]core.RecentDocument, 0, len(r.index.Documents)+1)
	docs = append(docs, doc)
	for _, d := range r.index.Documents {
		if d.File != doc.File {
			docs = append(docs, d)
		}
	}
	if len(docs) > MaxRecent {
		docs = docs[:MaxRecent]
	}
	r.index.Documents = docs
	return r.save()
}

// Last returns the most recently used document, or core.ErrNoRecentDocument.
func (r *Recent) Last(ctx context.Context) (core.RecentDocument, error) {
	docs, err := r.List(ctx)
	if err != nil {
		return core.RecentDocument{}, err
	}
	if len(docs) == 0 {
		return core.RecentDocument{}, core.ErrNoRecentDocument
	}
	return docs[0], nil
}

// List returns a copy of the index, most recent first.
func (r *Recent) List(ctx context.Context) ([]core.RecentDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return nil, err
	}
	out := make([]core.RecentDocument, len(r.index.Documents))
	copy(out, r.index.Documents)
	return out, nil
}

// Len returns the number of remembered documents.
func (r *Recent) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.load()
	return len(r.index.Documents)
}
