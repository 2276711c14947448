package audit

import (
	"context"
	"slices"
	"sync"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.UserID] = append(s.events[event.UserID], event)
	return nil
}

// ListByUser returns the newest events first.
func (s *InMemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.events[userID])
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListAll returns every event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []Event
	for _, userEvents := range s.events {
		all = append(all, userEvents...)
	}
	slices.SortStableFunc(all, func(a, b Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return all
}
