package fs

import (
	"sort"
	"time"

	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	LockTimeout time.Duration `json:"lock_timeout"`
	DryRun      bool          `json:"dry_run"`
	Writes      int           `json:"writes"`
	LastWrite   *time.Time    `json:"last_write,omitempty"`
	Locked      []string      `json:"locked,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked := make([]string, 0, len(s.held))
	for path := range s.held {
		locked = append(locked, path)
	}
	sort.Strings(locked)

	return StoreState{
		LockTimeout: s.config.LockTimeout,
		DryRun:      s.config.DryRun,
		Writes:      s.writes,
		LastWrite:   s.lastWrite,
		Locked:      locked,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

// RecentState exposes the recent index for observability.
type RecentState struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"`
	DryRun  bool   `json:"dry_run"`
}

// State implements introspection.Introspectable.
func (r *Recent) State() any {
	return RecentState{Path: r.Path, Entries: r.Len(), DryRun: r.dryRun}
}

// ComponentType implements introspection.Component.
func (r *Recent) ComponentType() string {
	return "recent-index"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
var _ introspection.Introspectable = (*Recent)(nil)
var _ introspection.Component = (*Recent)(nil)
