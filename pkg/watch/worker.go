package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/byteowlz/tmpltr/pkg/adapters/fs"
)

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	// Targets maps a watched file to the files whose pass it triggers.
	// A content file usually triggers itself; its template triggers every
	// content file built on it.
	Targets map[string][]string
	// Pattern, when set, also triggers a pass for any other file in the
	// watched directories whose path or name matches this glob.
	Pattern      string
	Sequencer    *Sequencer
	Logger       *slog.Logger
	ErrorHandler func(error)
}

// Worker turns fsnotify events on the parent directories of the watched
// files into Sequencer notifications. Directories are watched instead of
// files so that atomic replaces (rename over the file) are seen.
type Worker struct {
	*worker.BaseWorker
	config  WorkerConfig
	targets map[string][]string
	cancel  context.CancelFunc

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	events  int
}

// NewWorker creates a watch worker. Paths in Targets are made absolute.
func NewWorker(config WorkerConfig) *Worker {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	targets := make(map[string][]string, len(config.Targets))
	for src, dsts := range config.Targets {
		targets[absPath(src)] = append(targets[absPath(src)], dsts...)
	}
	return &Worker{
		BaseWorker: worker.NewBaseWorker("watch"),
		config:     config,
		targets:    targets,
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Dirs returns the directories the worker watches.
func (w *Worker) Dirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	for src := range w.targets {
		dir := filepath.Dir(src)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}

func (w *Worker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, dir := range w.Dirs() {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *Worker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// Matches returns the files a change of path should trigger.
func (w *Worker) Matches(path string) []string {
	path = absPath(path)
	if fs.IsTransient(path) {
		return nil
	}
	if dsts, ok := w.targets[path]; ok {
		return dsts
	}
	if w.config.Pattern == "" {
		return nil
	}
	slash := filepath.ToSlash(path)
	if ok, _ := doublestar.Match(w.config.Pattern, slash); ok {
		return []string{path}
	}
	if ok, _ := doublestar.Match(w.config.Pattern, filepath.Base(path)); ok {
		return []string{path}
	}
	return nil
}

// handle forwards one filesystem event. Returns true if it triggered a pass.
func (w *Worker) handle(ctx context.Context, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	dsts := w.Matches(event.Name)
	if len(dsts) == 0 {
		return false
	}
	w.config.Logger.Debug("change detected", "path", event.Name, "op", event.Op.String())

	w.mu.Lock()
	w.events++
	w.mu.Unlock()
	for _, dst := range dsts {
		w.config.Sequencer.Notify(ctx, dst)
	}
	return true
}

// Seen returns the number of events that triggered passes.
func (w *Worker) Seen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events
}

func (w *Worker) handleError(err error) {
	w.config.Logger.Error("fsnotify error", "error", err)
	if w.config.ErrorHandler != nil {
		w.config.ErrorHandler(err)
	}
}

// run is the main event loop of the worker.
func (w *Worker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if w.config.Logger.Enabled(ctx, slog.LevelDebug) {
				w.config.Logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.config.Logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.handle(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleError(wErr)
		}
	}
}
