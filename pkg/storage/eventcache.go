package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/TrustFinAI/vfin-platform/pkg/config"
)

// EventCache is a best-effort Redis cache of committed webhook event IDs.
// The payment provider delivers events at least once; the cache lets the
// handler short-circuit replays of events that already committed. An event
// is marked only after its transaction commits, so an in-flight or failed
// delivery is never mistaken for a processed one. Correctness never depends
// on the cache: the reconciler's writes are idempotent upserts, and any
// cache error is treated as "not seen".
type EventCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a Redis client from config, or nil when the cache is
// disabled (empty URL).
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// NewEventCache creates an event cache. A nil client yields a disabled cache
// that reports every event as unseen.
func NewEventCache(client *redis.Client, ttl time.Duration) *EventCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EventCache{client: client, ttl: ttl}
}

// Seen reports whether an event ID was already marked as committed. A
// disabled cache reports every event as unseen.
func (c *EventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	if c.client == nil || eventID == "" {
		return false, nil
	}

	n, err := c.client.Exists(ctx, c.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("event cache exists: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records an event ID. Call only after the event's transaction
// has committed.
func (c *EventCache) MarkProcessed(ctx context.Context, eventID string) error {
	if c.client == nil || eventID == "" {
		return nil
	}

	if err := c.client.SetNX(ctx, c.key(eventID), 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("event cache setnx: %w", err)
	}
	return nil
}

func (c *EventCache) key(eventID string) string {
	return "vfin:webhook:event:" + eventID
}
