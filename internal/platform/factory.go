package platform

import (
	"fmt"
	"log/slog"

	"github.com/byteowlz/tmpltr/pkg/adapters/fs"
	"github.com/byteowlz/tmpltr/pkg/adapters/typst"
	"github.com/byteowlz/tmpltr/pkg/core"
	"github.com/byteowlz/tmpltr/pkg/service"
)

// New builds a Service from the defaults, the environment and opts.
// Invalid options are reported as core.ErrUsage.
func New(opts ...Option) (*service.Service, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUsage, err)
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store := o.store
	if store == nil {
		store = fs.NewStore(fs.Config{
			LockTimeout: o.LockTimeout,
			DryRun:      o.DryRun,
			Logger:      logger,
		})
	}
	renderer := o.renderer
	if renderer == nil {
		renderer = typst.NewCompiler(o.TypstBinary, o.FontPaths, logger)
	}
	recent := o.recent
	if recent == nil {
		recent = fs.NewRecent(o.CacheDir, o.DryRun)
	}

	return service.New(service.Config{
		Store:        store,
		Renderer:     renderer,
		Recent:       recent,
		Logger:       logger,
		Now:          o.Now,
		TemplateDirs: o.TemplateDirs,
	}), nil
}
