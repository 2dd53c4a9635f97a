package cache

import (
	"context"
	"time"
)

// KV is a byte-oriented key/value cache shared by tenant lookups, usage
// snapshots and settings. Implementations must be safe for concurrent use.
// A miss is reported as (nil, false, nil).
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryKV is a process-local KV backed by LRU.
type MemoryKV struct {
	lru *LRU[string, []byte]
}

// NewMemoryKV returns an in-memory KV holding at most capacity keys.
func NewMemoryKV(capacity int) *MemoryKV {
	return &MemoryKV{lru: NewLRU[string, []byte](capacity)}
}

// Get returns the value of key if present and not expired.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores value under key for ttl.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.lru.Set(key, v, ttl)
	return nil
}

// Delete removes keys.
func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.lru.Delete(k)
	}
	return nil
}
