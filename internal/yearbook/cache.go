package yearbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoizes derived entries by input fingerprint.
type Cache interface {
	Get(ctx context.Context, fingerprint string) ([]Entry, bool, error)
	Put(ctx context.Context, fingerprint string, entries []Entry) error
	Invalidate(ctx context.Context) error
}

// RedisCache stores entries as JSON under prefix+fingerprint.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache builds a cache; an empty prefix defaults to "snapbook:yearbook:".
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "snapbook:yearbook:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(fp string) string { return c.prefix + fp }

func (c *RedisCache) indexKey() string { return c.prefix + "keys" }

// Get returns cached entries for fingerprint.
func (c *RedisCache) Get(ctx context.Context, fp string) ([]Entry, bool, error) {
	raw, err := c.client.Get(ctx, c.key(fp)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("yearbook cache get: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("yearbook cache decode: %w", err)
	}
	return entries, true, nil
}

// Put stores entries and records the key so Invalidate can find it.
func (c *RedisCache) Put(ctx context.Context, fp string, entries []Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("yearbook cache encode: %w", err)
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.key(fp), raw, c.ttl)
	pipe.SAdd(ctx, c.indexKey(), c.key(fp))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("yearbook cache put: %w", err)
	}
	return nil
}

// Invalidate drops every cached derivation.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	keys, err := c.client.SMembers(ctx, c.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("yearbook cache index: %w", err)
	}
	keys = append(keys, c.indexKey())
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("yearbook cache invalidate: %w", err)
	}
	return nil
}

// MemoryCache is a process-local Cache for dev and tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]Entry)}
}

// Get returns a copy of the cached entries.
func (c *MemoryCache) Get(_ context.Context, fp string) ([]Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fp]
	if !ok {
		return nil, false, nil
	}
	return append([]Entry(nil), e...), true, nil
}

// Put stores a copy of entries.
func (c *MemoryCache) Put(_ context.Context, fp string, entries []Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fp] = append([]Entry(nil), entries...)
	return nil
}

// Invalidate clears the cache.
func (c *MemoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	return nil
}
