package tmpltr

import (
	"log/slog"
	"time"

	"github.com/byteowlz/tmpltr/internal/platform"
	"github.com/byteowlz/tmpltr/pkg/core"
	"github.com/byteowlz/tmpltr/pkg/service"
)

// --- Types ---

// Service is the tmpltr service.
type Service = service.Service

// Store is the file access a Service needs.
type Store = service.Store

// --- Configuration ---

// Option defines a functional option for configuring tmpltr.
type Option = platform.Option

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithLockTimeout bounds the wait for a content file lock.
func WithLockTimeout(d time.Duration) Option {
	return platform.WithLockTimeout(d)
}

// WithCacheDir sets the directory of the recent documents index.
func WithCacheDir(dir string) Option {
	return platform.WithCacheDir(dir)
}

// WithTypst sets the typst binary used for rendering.
func WithTypst(binary string) Option {
	return platform.WithTypst(binary)
}

// WithFontPaths adds font directories passed to typst.
func WithFontPaths(paths ...string) Option {
	return platform.WithFontPaths(paths...)
}

// WithTemplateDirs replaces the directories searched for templates.
func WithTemplateDirs(dirs ...string) Option {
	return platform.WithTemplateDirs(dirs...)
}

// WithDryRun computes every change but writes nothing.
func WithDryRun(enabled bool) Option {
	return platform.WithDryRun(enabled)
}

// WithClock sets the clock used for generated_at stamps.
func WithClock(now func() time.Time) Option {
	return platform.WithClock(now)
}

// WithStore allows injecting a custom store.
func WithStore(store Store) Option {
	return platform.WithStore(store)
}

// WithRenderer allows injecting a custom renderer.
func WithRenderer(r core.Renderer) Option {
	return platform.WithRenderer(r)
}

// WithRecent allows injecting a custom recent documents index.
func WithRecent(r core.RecentIndex) Option {
	return platform.WithRecent(r)
}

// --- Factory ---

// New creates a tmpltr Service.
func New(opts ...Option) (*Service, error) {
	return platform.New(opts...)
}

// --- Utils ---

// FindTemplatesDir looks upwards from startDir for a templates directory.
func FindTemplatesDir(startDir string) string {
	return platform.FindTemplatesDir(startDir)
}
