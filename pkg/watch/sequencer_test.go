package watch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 20 * time.Millisecond

// recorder collects pass results.
type recorder struct {
	mu      sync.Mutex
	results []Result
	done    chan Result
}

func newRecorder() *recorder {
	return &recorder{done: make(chan Result, 64)}
}

func (r *recorder) record(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
	r.done <- res
}

func (r *recorder) wait(t *testing.T) Result {
	t.Helper()
	select {
	case res := <-r.done:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for pass")
		return Result{}
	}
}

// quiet asserts that no further pass finishes within d.
func (r *recorder) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case res := <-r.done:
		t.Fatalf("unexpected pass for %s", res.File)
	case <-time.After(d):
	}
}

func TestSequencer_CoalescesBurst(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	var calls atomic.Int32
	s := NewSequencer(SequencerConfig{
		Debounce: testDebounce,
		Pass: func(context.Context, string) error {
			calls.Add(1)
			return nil
		},
		OnResult: rec.record,
	})
	defer s.Close(time.Second)

	for i := 0; i < 5; i++ {
		s.Notify(ctx, "a.yaml")
	}
	res := rec.wait(t)
	assert.Equal(t, "a.yaml", res.File)
	assert.NotEmpty(t, res.PassID)
	assert.False(t, res.FollowUp)
	rec.quiet(t, 5*testDebounce)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 4, s.State().(SequencerState).Coalesced)
}

func TestSequencer_StaleSchedulesOneFollowUp(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var inFlight, maxInFlight atomic.Int32

	s := NewSequencer(SequencerConfig{
		Debounce: testDebounce,
		Pass: func(context.Context, string) error {
			n := inFlight.Add(1)
			if n > maxInFlight.Load() {
				maxInFlight.Store(n)
			}
			defer inFlight.Add(-1)
			started <- struct{}{}
			<-release
			return nil
		},
		OnResult: rec.record,
	})
	defer s.Close(time.Second)

	s.Notify(ctx, "a.yaml")
	<-started
	for i := 0; i < 10; i++ {
		s.Notify(ctx, "a.yaml")
	}
	assert.Equal(t, []string{"a.yaml"}, s.State().(SequencerState).Running)
	close(release)

	first := rec.wait(t)
	assert.False(t, first.FollowUp)
	second := rec.wait(t)
	assert.True(t, second.FollowUp)
	assert.NotEqual(t, first.PassID, second.PassID)
	rec.quiet(t, 5*testDebounce)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestSequencer_FilesRunConcurrently(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	var wg sync.WaitGroup
	wg.Add(2)
	s := NewSequencer(SequencerConfig{
		Debounce: testDebounce,
		Pass: func(context.Context, string) error {
			// Each pass waits for the other to start.
			wg.Done()
			wg.Wait()
			return nil
		},
		OnResult: rec.record,
	})
	defer s.Close(time.Second)

	s.Notify(ctx, "a.yaml")
	s.Notify(ctx, "b.yaml")
	files := []string{rec.wait(t).File, rec.wait(t).File}
	assert.ElementsMatch(t, []string{"a.yaml", "b.yaml"}, files)
}

func TestSequencer_ReportsErrors(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	boom := errors.New("render failed")
	s := NewSequencer(SequencerConfig{
		Debounce: testDebounce,
		Pass:     func(context.Context, string) error { return boom },
		OnResult: rec.record,
	})
	defer s.Close(time.Second)

	s.Notify(ctx, "a.yaml")
	res := rec.wait(t)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, 1, s.State().(SequencerState).Failures)

	// A failed pass is retried only by the next change.
	rec.quiet(t, 5*testDebounce)
	s.Notify(ctx, "a.yaml")
	rec.wait(t)
}

func TestSequencer_RecoversPanics(t *testing.T) {
	rec := newRecorder()
	s := NewSequencer(SequencerConfig{
		Debounce: testDebounce,
		Pass:     func(context.Context, string) error { panic("bad template") },
		OnResult: rec.record,
	})
	defer s.Close(time.Second)

	s.Notify(context.Background(), "a.yaml")
	res := rec.wait(t)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "bad template")
}

func TestSequencer_Close(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s := NewSequencer(SequencerConfig{
		Debounce: testDebounce,
		Pass: func(context.Context, string) error {
			started <- struct{}{}
			<-release
			return nil
		},
		OnResult: rec.record,
	})

	t.Run("Pending Timers Are Dropped", func(t *testing.T) {
		s.Notify(ctx, "a.yaml")
		<-started
		s.Notify(ctx, "b.yaml")

		go func() {
			time.Sleep(testDebounce / 2)
			close(release)
		}()
		require.NoError(t, s.Close(2*time.Second))

		res := rec.wait(t)
		assert.Equal(t, "a.yaml", res.File)
		rec.quiet(t, 5*testDebounce)
	})

	t.Run("Notify After Close Is Ignored", func(t *testing.T) {
		s.Notify(ctx, "c.yaml")
		rec.quiet(t, 5*testDebounce)
		assert.True(t, s.State().(SequencerState).Closed)
	})
}
