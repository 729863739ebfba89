// Package memory keeps audit events in process, for tests and local runs.
package memory

import (
	"context"
	"sync"

	id "taskboard/pkg/domain"
	audit "taskboard/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.UserID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.UserID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.UserID] = append(s.events[event.UserID], event)
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[userID]...), nil
}

// Actions returns the action names recorded for userID, in emission order.
func (s *InMemoryStore) Actions(userID id.UserID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.events[userID]))
	for _, e := range s.events[userID] {
		out = append(out, e.Action)
	}
	return out
}
