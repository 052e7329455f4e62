// Package lifecycle exposes watch pass results as a lifecycle event source.
package lifecycle

import (
	"context"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/byteowlz/tmpltr/pkg/watch"
)

// DefaultBuffer is the number of results Publish queues before it blocks.
const DefaultBuffer = 16

// ResultSource feeds watch.Result values to lifecycle consumers. Results go
// in through Publish (usually wired as a Sequencer's OnResult) and come out
// of Events once Start has been called.
type ResultSource struct {
	in  chan watch.Result
	out chan lifecycle.Event

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

var _ lifecycle.Source = (*ResultSource)(nil)

// NewSource creates a ResultSource.
func NewSource() *ResultSource {
	return &ResultSource{
		in:   make(chan watch.Result, DefaultBuffer),
		out:  make(chan lifecycle.Event),
		done: make(chan struct{}),
	}
}

// Publish queues a result. It drops the result once the source has stopped.
func (s *ResultSource) Publish(res watch.Result) {
	select {
	case s.in <- res:
	case <-s.done:
	}
}

func (s *ResultSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start forwards published results until ctx is done, then closes Events.
func (s *ResultSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return nil
			case res := <-s.in:
				// watch.Result implements lifecycle.Event through String.
				select {
				case s.out <- res:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
