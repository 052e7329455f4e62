package platform

import (
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/byteowlz/tmpltr/pkg/adapters/fs"
	"github.com/byteowlz/tmpltr/pkg/adapters/typst"
	"github.com/byteowlz/tmpltr/pkg/core"
	"github.com/byteowlz/tmpltr/pkg/service"
)

// Environment variables that override defaults (options still win).
const (
	EnvCacheDir     = "TMPLTR_CACHE_DIR"
	EnvTypst        = "TMPLTR_TYPST"
	EnvTemplateDirs = "TMPLTR_TEMPLATES"
)

// MaxLockTimeout bounds the lock wait a caller may configure.
const MaxLockTimeout = 10 * time.Minute

// options holds the internal configuration for the tmpltr service.
type options struct {
	Logger       *slog.Logger
	LockTimeout  time.Duration `json:"lock_timeout"`
	CacheDir     string        `json:"cache_dir"`
	TypstBinary  string        `json:"typst"`
	FontPaths    []string      `json:"font_paths"`
	TemplateDirs []string      `json:"template_dirs"`
	DryRun       bool          `json:"dry_run"`
	Now          func() time.Time

	store    service.Store
	renderer core.Renderer
	recent   core.RecentIndex
}

// Option defines a functional option for configuring tmpltr.
type Option func(*options)

// defaultOptions returns the default configuration, honoring environment
// overrides.
func defaultOptions() *options {
	o := &options{
		LockTimeout: fs.DefaultLockTimeout,
		CacheDir:    fs.DefaultCacheDir(),
		TypstBinary: typst.DefaultBinary,
		Now:         time.Now,
	}
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		o.CacheDir = dir
	}
	if bin := os.Getenv(EnvTypst); bin != "" {
		o.TypstBinary = bin
	}
	o.TemplateDirs = DefaultTemplateDirs()
	return o
}

// validate checks option values before anything is built.
func (o *options) validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.LockTimeout, validation.Min(time.Duration(0)), validation.Max(MaxLockTimeout)),
		validation.Field(&o.CacheDir, validation.When(o.recent == nil, validation.Required)),
		validation.Field(&o.TypstBinary, validation.When(o.renderer == nil, validation.Required)),
		validation.Field(&o.FontPaths, validation.Each(validation.Required)),
	)
}

// WithLogger sets the logger for the service and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.Logger = logger
	}
}

// WithLockTimeout bounds the wait for a content file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.LockTimeout = d
	}
}

// WithCacheDir sets the directory of the recent documents index.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.CacheDir = dir
	}
}

// WithTypst sets the typst binary used for rendering.
func WithTypst(binary string) Option {
	return func(o *options) {
		o.TypstBinary = binary
	}
}

// WithFontPaths adds font directories passed to typst.
func WithFontPaths(paths ...string) Option {
	return func(o *options) {
		o.FontPaths = append(o.FontPaths, paths...)
	}
}

// WithTemplateDirs replaces the directories searched for templates.
func WithTemplateDirs(dirs ...string) Option {
	return func(o *options) {
		o.TemplateDirs = dirs
	}
}

// WithDryRun computes every change but writes nothing.
func WithDryRun(enabled bool) Option {
	return func(o *options) {
		o.DryRun = enabled
	}
}

// WithClock sets the clock used for generated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.Now = now
	}
}

// WithStore allows injecting a custom store (e.g. in-memory for tests).
// If provided, the filesystem store is skipped.
func WithStore(store service.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRenderer allows injecting a custom renderer.
// If provided, the typst compiler is skipped.
func WithRenderer(r core.Renderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}

// WithRecent allows injecting a custom recent documents index.
func WithRecent(r core.RecentIndex) Option {
	return func(o *options) {
		o.recent = r
	}
}
