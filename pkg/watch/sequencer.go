// Package watch re-runs work on files as they change: a Sequencer orders
// passes per file and a Worker feeds it filesystem events.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"
)

// DefaultDebounce is the quiet period before a pass starts.
const DefaultDebounce = 300 * time.Millisecond

// PassFunc does the work for one file, e.g. a compile.
type PassFunc func(ctx context.Context, file string) error

// Result reports a finished pass.
type Result struct {
	File     string
	PassID   string
	Err      error
	Duration time.Duration
	// FollowUp is true for the pass scheduled because the file changed
	// while the previous pass ran.
	FollowUp bool
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: pass %s failed: %v", r.File, r.PassID, r.Err)
	}
	return fmt.Sprintf("%s: pass %s finished in %s", r.File, r.PassID, r.Duration.Round(time.Millisecond))
}

// SequencerConfig configures a Sequencer.
type SequencerConfig struct {
	Debounce time.Duration
	Pass     PassFunc
	// OnResult is called after every pass, from the pass goroutine.
	OnResult func(Result)
	Logger   *slog.Logger
}

type fileState struct {
	ctx      context.Context
	timer    *time.Timer
	gen      uint64
	running  bool
	stale    bool
	followUp bool
}

// Sequencer runs at most one pass per file at a time. Events inside the
// debounce window coalesce into one pass. An event during a pass marks it
// stale and schedules exactly one follow-up pass, however many events
// arrive. Different files run concurrently.
type Sequencer struct {
	config SequencerConfig

	mu     sync.Mutex
	files  map[string]*fileState
	closed bool
	wg     sync.WaitGroup

	passes    int
	coalesced int
	failures  int
}

// NewSequencer creates a Sequencer.
func NewSequencer(config SequencerConfig) *Sequencer {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Sequencer{config: config, files: make(map[string]*fileState)}
}

// Notify records a change of file. The pass runs with ctx once the file
// has been quiet for the debounce period.
func (s *Sequencer) Notify(ctx context.Context, file string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	st, ok := s.files[file]
	if !ok {
		st = &fileState{}
		s.files[file] = st
	}
	st.ctx = ctx

	if st.running {
		if st.stale {
			s.coalesced++
		}
		st.stale = true
		return
	}
	if st.timer != nil {
		s.coalesced++
	}
	s.schedule(file, st, false)
}

// schedule (re)arms the debounce timer of file. Callers hold s.mu.
func (s *Sequencer) schedule(file string, st *fileState, followUp bool) {
	if st.timer != nil && st.timer.Stop() {
		s.wg.Done()
	}
	st.gen++
	gen := st.gen
	st.followUp = st.followUp || followUp
	s.wg.Add(1)
	st.timer = time.AfterFunc(s.config.Debounce, func() {
		s.fire(file, gen)
	})
}

// fire starts the pass for file unless a newer timer replaced this one.
func (s *Sequencer) fire(file string, gen uint64) {
	s.mu.Lock()
	st := s.files[file]
	if s.closed || st == nil || st.gen != gen {
		s.mu.Unlock()
		s.wg.Done()
		return
	}
	st.timer = nil
	st.running = true
	st.stale = false
	followUp := st.followUp
	st.followUp = false
	ctx := st.ctx
	s.passes++
	s.mu.Unlock()

	passID := uuid.NewString()
	if err := ctx.Err(); err != nil {
		s.finish(file, Result{File: file, PassID: passID, Err: err, FollowUp: followUp})
		return
	}
	lifecycle.Go(ctx, func(ctx context.Context) error {
		start := time.Now()
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("pass panic: %v", r)
			}
			s.finish(file, Result{
				File:     file,
				PassID:   passID,
				Err:      err,
				Duration: time.Since(start),
				FollowUp: followUp,
			})
		}()
		s.config.Logger.Debug("pass started", "file", file, "pass", passID, "follow_up", followUp)
		err = s.config.Pass(ctx, file)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		s.config.Logger.Error("pass goroutine failed", "file", file, "pass", passID, "error", err)
	}))
}

func (s *Sequencer) finish(file string, res Result) {
	defer s.wg.Done()

	s.mu.Lock()
	st := s.files[file]
	st.running = false
	if res.Err != nil {
		s.failures++
	}
	if st.stale && !s.closed && st.ctx.Err() == nil {
		st.stale = false
		s.schedule(file, st, true)
	}
	s.mu.Unlock()

	if res.Err != nil {
		s.config.Logger.Debug("pass failed", "file", file, "pass", res.PassID, "error", res.Err)
	} else {
		s.config.Logger.Debug("pass finished", "file", file, "pass", res.PassID, "duration", res.Duration)
	}
	if s.config.OnResult != nil {
		s.config.OnResult(res)
	}
}

// Close stops pending timers and waits up to timeout for running passes.
// Notify is a no-op afterwards.
func (s *Sequencer) Close(timeout time.Duration) error {
	s.mu.Lock()
	s.closed = true
	for _, st := range s.files {
		if st.timer != nil && st.timer.Stop() {
			s.wg.Done()
		}
		st.timer = nil
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s waiting for running passes", timeout)
	}
}
