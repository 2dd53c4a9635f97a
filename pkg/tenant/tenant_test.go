package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

func TestTenant_Routable(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		status tenant.Status
		want   bool
	}{
		{tenant.StatusTrial, true},
		{tenant.StatusActive, true},
		{tenant.StatusSuspended, false},
		{tenant.StatusCancelled, false},
		{tenant.StatusExpired, false},
	} {
		assert.Equal(t, tc.want, createTestTenant("x", tc.status).Routable(), tc.status)
	}

	deleted := createTestTenant("x", tenant.StatusActive)
	now := time.Now()
	deleted.DeletedAt = &now
	assert.False(t, deleted.Routable())

	var nilTenant *tenant.Tenant
	assert.False(t, nilTenant.Routable())
}

func TestTenant_SubscriptionLapsed(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	trial := createTestTenant("t", tenant.StatusTrial)
	trial.TrialEnd = &past
	assert.True(t, trial.SubscriptionLapsed(now))
	trial.TrialEnd = &future
	assert.False(t, trial.SubscriptionLapsed(now))

	active := createTestTenant("a", tenant.StatusActive)
	assert.False(t, active.SubscriptionLapsed(now), "open-ended subscription never lapses")
	active.SubscriptionEnd = &past
	assert.True(t, active.SubscriptionLapsed(now))

	suspended := createTestTenant("s", tenant.StatusSuspended)
	suspended.TrialEnd = &past
	assert.False(t, suspended.SubscriptionLapsed(now))
}

func TestDomain_URL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "https://clinic.example.org", tenant.Domain{Domain: "clinic.example.org", SSLEnabled: true}.URL())
	assert.Equal(t, "http://clinic.example.org", tenant.Domain{Domain: "clinic.example.org"}.URL())
}

func TestHostHelpers(t *testing.T) {
	t.Parallel()

	t.Run("normalize", func(t *testing.T) {
		t.Parallel()
		cases := map[string]string{
			"Acme.Example.COM":      "acme.example.com",
			"acme.example.com:8080": "acme.example.com",
			"acme.example.com.":     "acme.example.com",
			" acme.example.com ":    "acme.example.com",
			"[::1]:8080":            "::1",
			"[::1]":                 "::1",
			"":                      "",
		}
		for in, want := range cases {
			assert.Equal(t, want, tenant.NormalizeHost(in), in)
		}
	})

	t.Run("subdomain label", func(t *testing.T) {
		t.Parallel()
		label, ok := tenant.SubdomainLabel("acme.clinics.example.com")
		assert.True(t, ok)
		assert.Equal(t, "acme", label)

		for _, host := range []string{"localhost", "127.0.0.1", "-bad.example.com", ".example.com", "a_b.example.com"} {
			_, ok := tenant.SubdomainLabel(host)
			assert.False(t, ok, host)
		}
	})

	t.Run("validate domain", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, tenant.ValidateDomain("clinic.example.org"))
		for _, d := range []string{"", "localhost", "Clinic.example.org", "bad_domain.org", "clinic.example.org:80"} {
			assert.ErrorIs(t, tenant.ValidateDomain(d), tenant.ErrInvalidDomain, d)
		}
	})
}

func TestSlugs(t *testing.T) {
	t.Parallel()

	t.Run("validate", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, tenant.ValidateSlug("acme-clinic"))
		require.NoError(t, tenant.ValidateSlug("clinic42"))

		for _, s := range []string{"", "-acme", "acme-", "Acme", "acme_clinic", "acme clinic"} {
			assert.ErrorIs(t, tenant.ValidateSlug(s), tenant.ErrInvalidSlug, s)
		}
		for _, s := range []string{"www", "api", "admin", "status", "docs"} {
			assert.ErrorIs(t, tenant.ValidateSlug(s), tenant.ErrReservedSlug, s)
		}
	})

	t.Run("generate", func(t *testing.T) {
		t.Parallel()
		taken := map[string]bool{"clinica-sao-jose": true}
		exists := func(_ context.Context, s string) (bool, error) { return taken[s], nil }

		s, err := tenant.GenerateSlug(context.Background(), "Clínica São José", exists)
		require.NoError(t, err)
		assert.Equal(t, "clinica-sao-jose-1", s)

		s, err = tenant.GenerateSlug(context.Background(), "Admin", exists)
		require.NoError(t, err)
		assert.Equal(t, "clinic", s)
	})
}
