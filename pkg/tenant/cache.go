package tenant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrymomot/clinickit/pkg/cache"
)

// Cache stores resolved tenants by host. Implementations are best effort:
// a failed read is a miss and a failed write is ignored.
type Cache interface {
	Get(ctx context.Context, key string) (*Tenant, bool)
	Set(ctx context.Context, key string, t *Tenant, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

// NewMemoryCache returns a process-local cache holding up to capacity
// tenants. Values are cloned on the way in and out.
func NewMemoryCache(capacity int) Cache {
	return &memoryCache{lru: cache.NewLRU[string, *Tenant](capacity)}
}

type memoryCache struct {
	lru *cache.LRU[string, *Tenant]
}

func (c *memoryCache) Get(_ context.Context, key string) (*Tenant, bool) {
	t, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (c *memoryCache) Set(_ context.Context, key string, t *Tenant, ttl time.Duration) {
	c.lru.Set(key, t.Clone(), ttl)
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		c.lru.Delete(k)
	}
}

// NewKVCache stores tenants as JSON in kv, typically Redis, so that every
// instance shares lookups and invalidations.
func NewKVCache(kv cache.KV) Cache {
	return &kvCache{kv: kv}
}

type kvCache struct {
	kv cache.KV
}

func (c *kvCache) Get(ctx context.Context, key string) (*Tenant, bool) {
	raw, ok, err := c.kv.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var t Tenant
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, false
	}
	return &t, true
}

func (c *kvCache) Set(ctx context.Context, key string, t *Tenant, ttl time.Duration) {
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	_ = c.kv.Set(ctx, key, raw, ttl)
}

func (c *kvCache) Delete(ctx context.Context, keys ...string) {
	_ = c.kv.Delete(ctx, keys...)
}

// NoOpCache never stores anything.
type NoOpCache struct{}

// Get always misses.
func (NoOpCache) Get(context.Context, string) (*Tenant, bool) { return nil, false }

// Set does nothing.
func (NoOpCache) Set(context.Context, string, *Tenant, time.Duration) {}

// Delete does nothing.
func (NoOpCache) Delete(context.Context, ...string) {}
