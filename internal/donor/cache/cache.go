// Package cache holds short-lived donor search pages.
//
// Caching is an optimization only. Every implementation treats an entry past
// its TTL as absent, and a failing backend degrades to a miss.
package cache

import (
	"context"
	"sync"
	"time"

	"donorlink/internal/donor/models"
)

const (
	DefaultTTL      = 60 * time.Second
	DefaultCapacity = 500
)

// Cache stores search pages by SearchQuery.CacheKey.
type Cache interface {
	Get(ctx context.Context, key string) (*models.SearchPage, bool)
	Set(ctx context.Context, key string, page *models.SearchPage)
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (*models.SearchPage, bool) { return nil, false }
func (Noop) Set(context.Context, string, *models.SearchPage)       {}

type entry struct {
	page      *models.SearchPage
	expiresAt time.Time
}

// Memory is a size-bounded TTL cache. On overflow the oldest inserted key is
// evicted. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]entry
	order    []string
	now      func() time.Time
}

type MemoryOption func(*Memory)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(ttl time.Duration, capacity int, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	m := &Memory{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]entry, capacity),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) (*models.SearchPage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		m.remove(key)
		return nil, false
	}
	return e.page, true
}

func (m *Memory) Set(_ context.Context, key string, page *models.SearchPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		m.remove(key)
	}
	for len(m.order) >= m.capacity {
		m.remove(m.order[0])
	}
	m.entries[key] = entry{page: page, expiresAt: m.now().Add(m.ttl)}
	m.order = append(m.order, key)
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) remove(key string) {
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
