package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*EventCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewEventCache(client, time.Hour), mr
}

func TestEventCacheSeenAfterMark(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	seen, err := cache.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen, "first delivery must be unseen")

	require.NoError(t, cache.MarkProcessed(ctx, "evt_1"))

	seen, err = cache.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen, "committed event must be seen")

	seen, err = cache.Seen(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, seen, "marks must not bleed across event IDs")
}

// Seen never sets anything: an event checked but not marked stays unseen, so
// a delivery that fails before commit is retried on redelivery.
func TestEventCacheSeenDoesNotMark(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	seen, err := cache.Seen(ctx, "evt_fail")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = cache.Seen(ctx, "evt_fail")
	require.NoError(t, err)
	assert.False(t, seen, "checking must not record the event")
}

func TestEventCacheEntryExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.MarkProcessed(ctx, "evt_ttl"))

	mr.FastForward(2 * time.Hour)

	seen, err := cache.Seen(ctx, "evt_ttl")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestEventCacheDisabled(t *testing.T) {
	cache := NewEventCache(nil, time.Hour)
	ctx := context.Background()

	require.NoError(t, cache.MarkProcessed(ctx, "evt_1"))

	seen, err := cache.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}
