package inmemory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "k", "v1", 0))
	require.NoError(t, s.Put(ctx, "k", "v2", 0))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", got, "second put overwrites")

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"), "deleting twice is fine")

	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStoreWithClock(clock.Now)

	require.NoError(t, s.Put(ctx, "txn:1:2", "{}", time.Hour))
	require.NoError(t, s.Put(ctx, "forever", "x", 0))

	clock.Advance(59 * time.Minute)
	_, ok, _ := s.Get(ctx, "txn:1:2")
	assert.True(t, ok, "still valid before ttl")

	clock.Advance(time.Minute)
	_, ok, _ = s.Get(ctx, "txn:1:2")
	assert.False(t, ok, "expired at ttl")

	clock.Advance(365 * 24 * time.Hour)
	_, ok, _ = s.Get(ctx, "forever")
	assert.True(t, ok, "zero ttl never expires")
}

func TestStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStoreWithClock(clock.Now)

	require.NoError(t, s.Put(ctx, "a", "1", time.Minute))
	require.NoError(t, s.Put(ctx, "b", "2", time.Hour))
	require.NoError(t, s.Put(ctx, "c", "3", 0))

	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 2, s.Len())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Put(ctx, "shared", "v", time.Minute)
			_, _, _ = s.Get(ctx, "shared")
			_ = s.Delete(ctx, "shared")
		}()
	}
	wg.Wait()
}
