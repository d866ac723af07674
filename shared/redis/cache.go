package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ViewCache is a generic JSON-backed Redis cache for read model projections.
// Every key is namespaced by prefix; ttl 0 means keys do not expire.
type ViewCache[T any] struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewViewCache creates a ViewCache backed by the provided Redis client.
func NewViewCache[T any](client *goredis.Client, prefix string, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the full Redis key for id.
func (c *ViewCache[T]) Key(id string) string {
	return c.prefix + id
}

// Get retrieves and unmarshals a value from Redis.
// Returns (nil, false) on any miss or deserialisation error.
func (c *ViewCache[T]) Get(ctx context.Context, id string) (*T, bool) {
	data, err := c.client.Get(ctx, c.Key(id)).Result()
	if err != nil {
		return nil, false
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, false
	}
	return &v, true
}

// Set marshals value and stores it under id.
// Errors are logged rather than returned; a cache write miss is non-fatal.
func (c *ViewCache[T]) Set(ctx context.Context, id string, value *T) {
	c.SetWithTTL(ctx, id, value, c.ttl)
}

// SetWithTTL is Set with a per-key expiry overriding the cache default.
func (c *ViewCache[T]) SetWithTTL(ctx context.Context, id string, value *T, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("ViewCache: marshal error for key %s: %v", c.Key(id), err)
		return
	}
	if err := c.client.Set(ctx, c.Key(id), data, ttl).Err(); err != nil {
		log.Printf("ViewCache: write error for key %s: %v", c.Key(id), err)
	}
}

// Delete removes the given ids from Redis.
func (c *ViewCache[T]) Delete(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.Key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("ViewCache: delete error for keys %v: %v", keys, err)
	}
}
