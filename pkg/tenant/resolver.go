package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/clinickit/pkg/logger"
)

// DefaultCacheTTL is how long a resolved host stays cached.
const DefaultCacheTTL = 5 * time.Minute

// CacheKeyPrefix namespaces host lookups in shared caches.
const CacheKeyPrefix = "tenant_domain:"

// Resolution outcomes reported to an Observer.
const (
	OutcomeCacheHit  = "cache_hit"
	OutcomeDomain    = "domain"
	OutcomeSubdomain = "subdomain"
	OutcomeNotFound  = "not_found"
	OutcomeInactive  = "inactive"
	OutcomeError     = "error"
)

// Directory is the authoritative tenant store. Both lookups return
// ErrTenantNotFound when nothing matches.
type Directory interface {
	// FindByDomain matches a verified custom domain exactly.
	FindByDomain(ctx context.Context, domain string) (*Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)
}

// Observer receives one outcome per Resolve call.
type Observer func(outcome string, elapsed time.Duration)

// CacheKey returns the cache key for a normalized host.
func CacheKey(host string) string {
	return CacheKeyPrefix + host
}

// Resolver maps request hosts to tenants: cache first, then verified custom
// domains, then the leading subdomain label as a slug.
type Resolver struct {
	dir      Directory
	cache    Cache
	ttl      time.Duration
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache sets the lookup cache. Defaults to NoOpCache.
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithResolverLogger sets the resolver logger.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers a callback for metrics.
func WithObserver(o Observer) ResolverOption {
	return func(r *Resolver) { r.observer = o }
}

// NewResolver creates a resolver backed by dir.
func NewResolver(dir Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		dir:    dir,
		cache:  NoOpCache{},
		ttl:    DefaultCacheTTL,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the tenant serving host. It fails with ErrTenantNotFound
// when no tenant matches and ErrInactiveTenant when the match may not serve
// requests. Any found tenant is cached, so repeated hits on a suspended
// clinic do not reach the directory.
func (r *Resolver) Resolve(ctx context.Context, host string) (*Tenant, error) {
	start := r.now()
	host = NormalizeHost(host)
	if host == "" {
		r.observe(OutcomeNotFound, start)
		return nil, ErrTenantNotFound
	}

	key := CacheKey(host)
	t, ok := r.cache.Get(ctx, key)
	outcome := OutcomeCacheHit
	if !ok {
		var err error
		t, outcome, err = r.lookup(ctx, host)
		if err != nil {
			r.observe(outcome, start)
			return nil, err
		}
		r.cache.Set(ctx, key, t, r.ttl)
	}

	if !t.Routable() {
		r.observe(OutcomeInactive, start)
		return nil, fmt.Errorf("%w: %s (%s)", ErrInactiveTenant, t.Slug, t.Status)
	}

	r.observe(outcome, start)
	return t, nil
}

func (r *Resolver) lookup(ctx context.Context, host string) (*Tenant, string, error) {
	t, err := r.dir.FindByDomain(ctx, host)
	switch {
	case err == nil:
		return t, OutcomeDomain, nil
	case !errors.Is(err, ErrTenantNotFound):
		r.logger.LogAttrs(ctx, slog.LevelError, "custom domain lookup failed", logger.Host(host), logger.Error(err))
		return nil, OutcomeError, errors.Join(ErrLookupFailed, err)
	}

	label, ok := SubdomainLabel(host)
	if !ok {
		return nil, OutcomeNotFound, ErrTenantNotFound
	}

	t, err = r.dir.FindBySlug(ctx, label)
	switch {
	case err == nil:
		return t, OutcomeSubdomain, nil
	case errors.Is(err, ErrTenantNotFound):
		return nil, OutcomeNotFound, ErrTenantNotFound
	default:
		r.logger.LogAttrs(ctx, slog.LevelError, "subdomain lookup failed", logger.Host(host), logger.Error(err))
		return nil, OutcomeError, errors.Join(ErrLookupFailed, err)
	}
}

// Invalidate drops cached lookups for the given hosts.
func (r *Resolver) Invalidate(ctx context.Context, hosts ...string) {
	keys := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = NormalizeHost(h); h != "" {
			keys = append(keys, CacheKey(h))
		}
	}
	if len(keys) > 0 {
		r.cache.Delete(ctx, keys...)
	}
}

func (r *Resolver) observe(outcome string, start time.Time) {
	if r.observer != nil {
		r.observer(outcome, r.now().Sub(start))
	}
}
