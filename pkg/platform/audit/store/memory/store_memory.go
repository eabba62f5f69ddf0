package memory

import (
	"context"
	"sync"

	audit "soulbound/pkg/platform/audit"
)

// Store keeps audit events in memory. Used by tests and by deployments
// without a Kafka sink configured.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	event.Timestamp = audit.NowOrDefault(event.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of all recorded events.
func (s *Store) Events() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByAction returns recorded events matching the given action.
func (s *Store) ByAction(action string) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

var _ audit.Store = (*Store)(nil)
