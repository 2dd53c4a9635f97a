package limits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/pkg/cache"
	"github.com/dmitrymomot/clinickit/pkg/logger"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

// DefaultUsageTTL is how long counted usage is reused before recounting.
const DefaultUsageTTL = 10 * time.Minute

const usageKeyPrefix = "tenant_usage:"

// CheckObserver receives the outcome of every Check.
type CheckObserver func(res Resource, allowed bool)

// Service enforces per-tenant resource limits against cached usage.
// Usage may be stale by up to the TTL; callers invalidate after writes that
// change a count.
type Service struct {
	counters CounterRegistry
	kv       cache.KV
	ttl      time.Duration
	logger   *slog.Logger
	observer CheckObserver
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithUsageCache sets the store for usage counts. Defaults to a
// process-local cache.
func WithUsageCache(kv cache.KV) ServiceOption {
	return func(s *Service) {
		if kv != nil {
			s.kv = kv
		}
	}
}

// WithUsageTTL sets how long cached usage counts live.
func WithUsageTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCheckObserver reports every limit check, e.g. to metrics.
func WithCheckObserver(o CheckObserver) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// NewService creates a Service over the given counters.
func NewService(counters CounterRegistry, opts ...ServiceOption) *Service {
	if counters == nil {
		counters = NewRegistry()
	}
	s := &Service{
		counters: counters,
		kv:       cache.NewMemoryKV(4096),
		ttl:      DefaultUsageTTL,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LimitOf returns the ceiling t has for res.
func LimitOf(t *tenant.Tenant, res Resource) (int64, error) {
	switch res {
	case ResourceUsers:
		return t.Limits.MaxUsers, nil
	case ResourcePatients:
		return t.Limits.MaxPatients, nil
	case ResourceStorage:
		return t.Limits.MaxStorageGB, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrInvalidResource, res)
}

// Check evaluates whether t may add `additional` units of res. A refusal is
// returned as *ExceededError together with the evaluated Usage.
func (s *Service) Check(ctx context.Context, t *tenant.Tenant, res Resource, additional int64) (Usage, error) {
	if additional < 0 {
		return Usage{}, ErrInvalidAmount
	}
	limit, err := LimitOf(t, res)
	if err != nil {
		return Usage{}, err
	}

	var current int64
	if limit >= 0 {
		if current, err = s.Current(ctx, t.ID, res); err != nil {
			return Usage{}, err
		}
	}

	usage, ok := Evaluate(current, limit, additional)
	if s.observer != nil {
		s.observer(res, ok)
	}
	if !ok {
		return usage, &ExceededError{Resource: res, Usage: usage}
	}
	return usage, nil
}

// Allowed is Check reduced to a boolean. Counting failures deny.
func (s *Service) Allowed(ctx context.Context, t *tenant.Tenant, res Resource, additional int64) bool {
	_, err := s.Check(ctx, t, res, additional)
	return err == nil
}

// Current returns the usage of res for the tenant, from cache when fresh.
func (s *Service) Current(ctx context.Context, tenantID uuid.UUID, res Resource) (int64, error) {
	key := usageKey(tenantID, res)

	if raw, ok, err := s.kv.Get(ctx, key); err == nil && ok {
		if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			return n, nil
		}
	} else if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "usage cache read failed", logger.Resource(string(res)), logger.Error(err))
	}

	counter, ok := s.counters[res]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoCounterRegistered, res)
	}
	n, err := counter(ctx, tenantID)
	if err != nil {
		return 0, errors.Join(ErrFailedToCountResourceUsage, err)
	}

	if err := s.kv.Set(ctx, key, []byte(strconv.FormatInt(n, 10)), s.ttl); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "usage cache write failed", logger.Resource(string(res)), logger.Error(err))
	}
	return n, nil
}

// Report returns usage, limit and percentage for every registered resource.
func (s *Service) Report(ctx context.Context, t *tenant.Tenant) (map[Resource]Report, error) {
	out := make(map[Resource]Report, len(s.counters))
	for _, res := range Resources() {
		if _, ok := s.counters[res]; !ok {
			continue
		}
		limit, err := LimitOf(t, res)
		if err != nil {
			return nil, err
		}
		current, err := s.Current(ctx, t.ID, res)
		if err != nil {
			return nil, err
		}
		out[res] = Report{Current: current, Limit: limit, Percentage: Percentage(current, limit)}
	}
	return out, nil
}

// Invalidate forgets cached usage for the given resources, or all of them.
func (s *Service) Invalidate(ctx context.Context, tenantID uuid.UUID, resources ...Resource) {
	if len(resources) == 0 {
		resources = Resources()
	}
	keys := make([]string, 0, len(resources))
	for _, res := range resources {
		keys = append(keys, usageKey(tenantID, res))
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "usage cache invalidation failed", logger.TenantID(tenantID), logger.Error(err))
	}
}

// CanDowngrade verifies current usage fits into target's limits. The
// returned error joins ErrDowngradeNotPossible with one ExceededError per
// offending resource.
func (s *Service) CanDowngrade(ctx context.Context, t *tenant.Tenant, target Plan) error {
	var errs []error
	for _, res := range Resources() {
		limit := target.Limit(res)
		if limit < 0 {
			continue
		}
		if _, ok := s.counters[res]; !ok {
			continue
		}
		current, err := s.Current(ctx, t.ID, res)
		if err != nil {
			return err
		}
		if usage, ok := Evaluate(current, limit, 0); !ok {
			errs = append(errs, &ExceededError{Resource: res, Usage: usage})
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrDowngradeNotPossible}, errs...)...)
	}
	return nil
}

func usageKey(tenantID uuid.UUID, res Resource) string {
	return usageKeyPrefix + tenantID.String() + ":" + string(res)
}
