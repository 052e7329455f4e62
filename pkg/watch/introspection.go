package watch

import (
	"sort"

	"github.com/aretw0/introspection"
)

// SequencerState exposes pass counters for observability.
type SequencerState struct {
	Debounce  string   `json:"debounce"`
	Files     int      `json:"files"`
	Running   []string `json:"running,omitempty"`
	Passes    int      `json:"passes"`
	Coalesced int      `json:"coalesced"`
	Failures  int      `json:"failures"`
	Closed    bool     `json:"closed"`
}

// State implements introspection.Introspectable.
func (s *Sequencer) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	var running []string
	for file, st := range s.files {
		if st.running {
			running = append(running, file)
		}
	}
	sort.Strings(running)
	return SequencerState{
		Debounce:  s.config.Debounce.String(),
		Files:     len(s.files),
		Running:   running,
		Passes:    s.passes,
		Coalesced: s.coalesced,
		Failures:  s.failures,
		Closed:    s.closed,
	}
}

// ComponentType implements introspection.Component.
func (s *Sequencer) ComponentType() string {
	return "watch-sequencer"
}

var _ introspection.Introspectable = (*Sequencer)(nil)
var _ introspection.Component = (*Sequencer)(nil)
