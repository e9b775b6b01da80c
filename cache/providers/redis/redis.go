// Package redis provides a Redis-backed cache.Backend implementation. Values
// are stored as plain Redis strings with native TTL via SET EX, so expiry is
// enforced server-side rather than lazily on access. This implementation
// requires a Redis server (v5.0+) and uses github.com/redis/go-redis/v9 as
// the client library.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/lookatitude/videogen/cache"
	"github.com/redis/go-redis/v9"
)

func init() {
	cache.Register("redis", func(cfg cache.Config) (cache.Backend, error) {
		addr, _ := cfg.Options["addr"].(string)
		if addr == "" {
			addr = "localhost:6379"
		}
		client := redis.NewClient(&redis.Options{Addr: addr})
		return New(Config{Client: client, KeyPrefix: "videogen:cache:", DefaultTTL: cfg.DefaultTTL})
	})
}

// Config holds configuration for the Redis Backend.
type Config struct {
	// Client is the Redis client to use. Required.
	Client *redis.Client
	// KeyPrefix is prepended to every key to namespace this cache within a
	// shared Redis instance. Defaults to "videogen:cache:".
	KeyPrefix string
	// DefaultTTL applies when Set is called with a zero ttl.
	DefaultTTL time.Duration
}

// Backend is a Redis-backed implementation of cache.Backend.
type Backend struct {
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
}

// New creates a new Redis Backend with the given config.
func New(cfg Config) (*Backend, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis: client is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "videogen:cache:"
	}
	return &Backend{client: cfg.Client, keyPrefix: prefix, defaultTTL: cfg.DefaultTTL}, nil
}

func (b *Backend) namespaced(key string) string {
	return b.keyPrefix + key
}

// Get retrieves a value by key. A missing or expired key returns
// (nil, false, nil).
func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, b.namespaced(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get %q: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key with ttl. A zero ttl uses the backend's
// DefaultTTL; if that is also zero, the key never expires.
func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = b.defaultTTL
	}
	if err := b.client.Set(ctx, b.namespaced(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a non-existent key is a no-op.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.namespaced(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete %q: %w", key, err)
	}
	return nil
}

// Clear removes every key under this backend's prefix. It uses SCAN rather
// than KEYS so it does not block a shared Redis instance under load.
func (b *Backend) Clear(ctx context.Context) error {
	iter := b.client.Scan(ctx, 0, b.keyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: clear scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: clear del: %w", err)
	}
	return nil
}

// Verify interface compliance.
var _ cache.Backend = (*Backend)(nil)
