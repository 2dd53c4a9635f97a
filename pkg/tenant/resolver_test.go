package tenant_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *outcomeRecorder) observe(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("verified custom domain", func(t *testing.T) {
		t.Parallel()
		acme := createTestTenant("acme", tenant.StatusActive)
		dir := &mockDirectory{}
		dir.On("FindByDomain", mock.Anything, "clinic.example.org").Return(acme, nil).Once()

		rec := &outcomeRecorder{}
		r := tenant.NewResolver(dir, tenant.WithObserver(rec.observe))

		got, err := r.Resolve(ctx, "Clinic.Example.ORG:8443")
		require.NoError(t, err)
		assert.Equal(t, acme.ID, got.ID)
		assert.Equal(t, []string{tenant.OutcomeDomain}, rec.outcomes)
		dir.AssertExpectations(t)
		dir.AssertNotCalled(t, "FindBySlug", mock.Anything, mock.Anything)
	})

	t.Run("subdomain fallback", func(t *testing.T) {
		t.Parallel()
		acme := createTestTenant("acme", tenant.StatusTrial)
		dir := &mockDirectory{}
		dir.On("FindByDomain", mock.Anything, "acme.clinics.example.com").Return(nil, tenant.ErrTenantNotFound).Once()
		dir.On("FindBySlug", mock.Anything, "acme").Return(acme, nil).Once()

		got, err := tenant.NewResolver(dir).Resolve(ctx, "acme.clinics.example.com")
		require.NoError(t, err)
		assert.Equal(t, "acme", got.Slug)
		dir.AssertExpectations(t)
	})

	t.Run("unknown host", func(t *testing.T) {
		t.Parallel()
		dir := &mockDirectory{}
		dir.On("FindByDomain", mock.Anything, "nobody.example.com").Return(nil, tenant.ErrTenantNotFound)
		dir.On("FindBySlug", mock.Anything, "nobody").Return(nil, tenant.ErrTenantNotFound)

		rec := &outcomeRecorder{}
		_, err := tenant.NewResolver(dir, tenant.WithObserver(rec.observe)).Resolve(ctx, "nobody.example.com")
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
		assert.Equal(t, []string{tenant.OutcomeNotFound}, rec.outcomes)
	})

	t.Run("single label host skips subdomain lookup", func(t *testing.T) {
		t.Parallel()
		dir := &mockDirectory{}
		dir.On("FindByDomain", mock.Anything, "localhost").Return(nil, tenant.ErrTenantNotFound)

		_, err := tenant.NewResolver(dir).Resolve(ctx, "localhost:8080")
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
		dir.AssertNotCalled(t, "FindBySlug", mock.Anything, mock.Anything)
	})

	t.Run("empty host", func(t *testing.T) {
		t.Parallel()
		dir := &mockDirectory{}

		_, err := tenant.NewResolver(dir).Resolve(ctx, "   ")
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
		dir.AssertNotCalled(t, "FindByDomain", mock.Anything, mock.Anything)
	})

	t.Run("inactive tenant is cached but rejected", func(t *testing.T) {
		t.Parallel()
		suspended := createTestTenant("sleepy", tenant.StatusSuspended)
		dir := &mockDirectory{}
		dir.On("FindByDomain", mock.Anything, "sleepy.example.com").Return(nil, tenant.ErrTenantNotFound).Once()
		dir.On("FindBySlug", mock.Anything, "sleepy").Return(suspended, nil).Once()

		r := tenant.NewResolver(dir, tenant.WithCache(tenant.NewMemoryCache(16)))

		for range 3 {
			_, err := r.Resolve(ctx, "sleepy.example.com")
			assert.ErrorIs(t, err, tenant.ErrInactiveTenant)
		}
		dir.AssertExpectations(t)
	})

	t.Run("deactivated flag overrides status", func(t *testing.T) {
		t.Parallel()
		off := createTestTenant("off", tenant.StatusActive)
		off.IsActive = false
		dir := &mockDirectory{}
		dir.On("FindByDomain", mock.Anything, "off.example.com").Return(off, nil)

		_, err := tenant.NewResolver(dir).Resolve(ctx, "off.example.com")
		assert.ErrorIs(t, err, tenant.ErrInactiveTenant)
	})

	t.Run("directory failure is not a not-found", func(t *testing.T) {
		t.Parallel()
		dir := &mockDirectory{}
		dir.On("FindByDomain", mock.Anything, "acme.example.com").Return(nil, errors.New("connection refused"))

		_, err := tenant.NewResolver(dir).Resolve(ctx, "acme.example.com")
		assert.ErrorIs(t, err, tenant.ErrLookupFailed)
		assert.NotErrorIs(t, err, tenant.ErrTenantNotFound)
	})
}

func TestResolver_Cache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("second lookup is served from cache", func(t *testing.T) {
		t.Parallel()
		acme := createTestTenant("acme", tenant.StatusActive)
		dir := &mockDirectory{}
		dir.On("FindByDomain", mock.Anything, "clinic.example.org").Return(acme, nil).Once()

		rec := &outcomeRecorder{}
		r := tenant.NewResolver(dir,
			tenant.WithCache(tenant.NewMemoryCache(16)),
			tenant.WithObserver(rec.observe),
		)

		first, err := r.Resolve(ctx, "clinic.example.org")
		require.NoError(t, err)
		second, err := r.Resolve(ctx, "CLINIC.example.org")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, []string{tenant.OutcomeDomain, tenant.OutcomeCacheHit}, rec.outcomes)
		dir.AssertExpectations(t)
	})

	t.Run("not found is never cached", func(t *testing.T) {
		t.Parallel()
		dir := &mockDirectory{}
		dir.On("FindByDomain", mock.Anything, "ghost.example.com").Return(nil, tenant.ErrTenantNotFound).Twice()
		dir.On("FindBySlug", mock.Anything, "ghost").Return(nil, tenant.ErrTenantNotFound).Twice()

		r := tenant.NewResolver(dir, tenant.WithCache(tenant.NewMemoryCache(16)))
		for range 2 {
			_, err := r.Resolve(ctx, "ghost.example.com")
			assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
		}
		dir.AssertExpectations(t)
	})

	t.Run("invalidate forces a directory lookup", func(t *testing.T) {
		t.Parallel()
		acme := createTestTenant("acme", tenant.StatusActive)
		dir := &mockDirectory{}
		dir.On("FindByDomain", mock.Anything, "clinic.example.org").Return(acme, nil).Twice()

		r := tenant.NewResolver(dir, tenant.WithCache(tenant.NewMemoryCache(16)))
		_, err := r.Resolve(ctx, "clinic.example.org")
		require.NoError(t, err)

		r.Invalidate(ctx, "Clinic.Example.org:443")

		_, err = r.Resolve(ctx, "clinic.example.org")
		require.NoError(t, err)
		dir.AssertExpectations(t)
	})

	t.Run("cached copy is isolated from callers", func(t *testing.T) {
		t.Parallel()
		acme := createTestTenant("acme", tenant.StatusActive)
		dir := &mockDirectory{}
		dir.On("FindByDomain", mock.Anything, "clinic.example.org").Return(acme, nil).Once()

		r := tenant.NewResolver(dir, tenant.WithCache(tenant.NewMemoryCache(16)))
		first, err := r.Resolve(ctx, "clinic.example.org")
		require.NoError(t, err)
		first.EnabledModules[0] = "tampered"

		second, err := r.Resolve(ctx, "clinic.example.org")
		require.NoError(t, err)
		assert.Equal(t, tenant.ModulePatients, second.EnabledModules[0])
	})
}
