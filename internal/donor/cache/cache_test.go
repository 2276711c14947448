package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorlink/internal/donor/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func page(total int) *models.SearchPage {
	return models.NewSearchPage(nil, total, 1, 20)
}

func TestMemoryExpiresAtTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemory(time.Minute, 10, WithClock(clock.Now))
	ctx := context.Background()

	c.Set(ctx, "k", page(3))
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 3, got.TotalCount)

	clock.Advance(59 * time.Second)
	_, ok = c.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok, "entry must not be served at or past its TTL")
	assert.Zero(t, c.Len())
}

func TestMemoryEvictsOldestOnOverflow(t *testing.T) {
	c := NewMemory(time.Hour, 3)
	ctx := context.Background()
	for i := range 4 {
		c.Set(ctx, fmt.Sprintf("k%d", i), page(i))
	}

	_, ok := c.Get(ctx, "k0")
	assert.False(t, ok)
	for _, k := range []string{"k1", "k2", "k3"} {
		_, ok := c.Get(ctx, k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, 3, c.Len())
}

func TestMemoryOverwriteRefreshesPosition(t *testing.T) {
	c := NewMemory(time.Hour, 2)
	ctx := context.Background()
	c.Set(ctx, "a", page(1))
	c.Set(ctx, "b", page(2))
	c.Set(ctx, "a", page(10))
	c.Set(ctx, "c", page(3))

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 10, got.TotalCount)
}

func TestNoopNeverHits(t *testing.T) {
	var c Noop
	c.Set(context.Background(), "k", page(1))
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}
