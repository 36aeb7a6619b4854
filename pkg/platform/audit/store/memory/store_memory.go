package memory

import (
	"context"
	"sync"

	id "luwei/pkg/domain"
	audit "luwei/pkg/platform/audit"
)

// InMemoryStore keeps events in process, for tests and development.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByAccount returns the events recorded for accountID in emission order.
func (s *InMemoryStore) ListByAccount(_ context.Context, accountID id.AccountID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListAll returns every event in emission order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event(nil), s.events...), nil
}

// Types lists event types in emission order.
func (s *InMemoryStore) Types() []audit.EventType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
