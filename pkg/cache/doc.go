// Package cache provides the process-local caching primitives used across
// clinickit: a generic size-bounded LRU with per-entry expiration and a
// byte-oriented KV abstraction.
//
// KV is the seam between components that cache (tenant lookups, usage
// snapshots, tenant settings) and the backing store. MemoryKV keeps values in
// process; the redis package provides a shared implementation for
// multi-instance deployments.
//
// # Usage
//
//	lru := cache.NewLRU[string, int](1024)
//	lru.Set("patients:42", 17, 10*time.Minute)
//	if n, ok := lru.Get("patients:42"); ok {
//		// use n
//	}
//
//	kv := cache.NewMemoryKV(4096)
//	_ = kv.Set(ctx, "tenant_domain:acme.example.com", payload, 5*time.Minute)
//
// Caches here are best effort: a stale or missing entry must never change
// correctness, only cost.
package cache
