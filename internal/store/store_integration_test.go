//go:build integration

package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/pkg/audit"
	"github.com/dmitrymomot/clinickit/pkg/logger"
	"github.com/dmitrymomot/clinickit/pkg/notifications"
	"github.com/dmitrymomot/clinickit/pkg/pg"
	"github.com/dmitrymomot/clinickit/pkg/scope"
	"github.com/dmitrymomot/clinickit/pkg/settings"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

func setup(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("PG_CONN_URL")
	if url == "" {
		t.Skip("PG_CONN_URL not set")
	}

	ctx := context.Background()
	cfg := pg.Config{
		ConnectionString: url,
		MaxOpenConns:     4,
		RetryAttempts:    1,
		RetryInterval:    100 * time.Millisecond,
		MigrationsTable:  "schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, store.Migrations, store.MigrationsDir, cfg, logger.Nop()))
	return pool
}

func newTenant(t *testing.T, s *store.Store) *tenant.Tenant {
	t.Helper()
	slug := "it-" + uuid.NewString()[:8]
	tn := &tenant.Tenant{
		Slug: slug, Name: "Clinic " + slug, Email: slug + "@example.com",
		Plan: "basic", Status: tenant.StatusTrial, IsActive: true,
		Limits:         tenant.Limits{MaxUsers: 5, MaxPatients: 50, MaxStorageGB: 1},
		Branding:       tenant.DefaultBranding(),
		EnabledModules: tenant.DefaultModules(),
		Timezone:       "America/Sao_Paulo", Language: "pt-BR",
	}
	require.NoError(t, s.Tenants.Create(context.Background(), tn))
	return tn
}

func TestTenantAndDomains(t *testing.T) {
	s := store.New(setup(t))
	tn := newTenant(t, s)
	ctx := tenant.WithTenant(context.Background(), tn)

	got, err := s.Tenants.FindBySlug(ctx, tn.Slug)
	require.NoError(t, err)
	assert.Equal(t, tn.ID, got.ID)
	assert.ElementsMatch(t, tenant.DefaultModules(), got.EnabledModules)

	first := &tenant.Domain{TenantID: tn.ID, Domain: tn.Slug + ".example.org", IsVerified: true}
	second := &tenant.Domain{TenantID: tn.ID, Domain: "www." + tn.Slug + ".example.org", IsVerified: true}
	require.NoError(t, s.Domains.Add(ctx, first))
	require.NoError(t, s.Domains.Add(ctx, second))
	assert.True(t, first.IsPrimary)
	assert.False(t, second.IsPrimary)

	byDomain, err := s.Tenants.FindByDomain(ctx, second.Domain)
	require.NoError(t, err)
	assert.Equal(t, tn.ID, byDomain.ID)

	require.NoError(t, s.Domains.SetPrimary(ctx, tn.ID, second.ID))
	primary, err := s.Domains.Primary(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, primary.ID)

	// Re-setting the current primary changes nothing.
	require.NoError(t, s.Domains.SetPrimary(ctx, tn.ID, second.ID))
	domains, err := s.Domains.List(ctx, tn.ID)
	require.NoError(t, err)
	require.Len(t, domains, 2)
	primaries := 0
	for _, d := range domains {
		if d.IsPrimary {
			primaries++
			assert.Equal(t, second.ID, d.ID)
		}
		if d.ID == first.ID {
			assert.False(t, d.IsPrimary, "previous primary is demoted")
		}
	}
	assert.Equal(t, 1, primaries)

	err = s.Domains.SetPrimary(ctx, tn.ID, uuid.New())
	require.ErrorIs(t, err, tenant.ErrDomainNotFound)

	_, err = s.Domains.Remove(ctx, tn.ID, second.ID)
	require.ErrorIs(t, err, store.ErrPrimaryDomain)

	_, err = s.Tenants.FindByDomain(ctx, "missing-"+tn.Slug+".example.org")
	require.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestTenantIsolationAndSoftDelete(t *testing.T) {
	s := store.New(setup(t))
	a, b := newTenant(t, s), newTenant(t, s)
	ctxA := tenant.WithTenant(context.Background(), a)
	ctxB := tenant.WithTenant(context.Background(), b)

	p := &domain.Patient{Name: "Ana", BirthDate: time.Date(2018, 3, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.Patients.Create(ctxA, p))
	assert.Equal(t, a.ID, p.TenantID)

	_, err := s.Patients.Get(ctxB, p.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Patients.Count(ctxB, a.ID)
	require.NoError(t, err, "counters run with superuser rights")

	_, err = s.Patients.List(context.Background(), store.PatientFilter{})
	require.ErrorIs(t, err, scope.ErrNoTenant)

	require.NoError(t, s.Patients.SoftDelete(ctxA, p.ID))
	n, err := s.Patients.Count(ctxA, a.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	deleted, err := s.Patients.List(ctxA, store.PatientFilter{Visibility: scope.Deleted})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.False(t, deleted[0].IsActive)

	require.NoError(t, s.Patients.Restore(ctxA, p.ID))
	n, err = s.Patients.Count(ctxA, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUsersSettingsNotifications(t *testing.T) {
	s := store.New(setup(t))
	tn := newTenant(t, s)
	ctx := tenant.WithTenant(context.Background(), tn)

	u := &domain.User{Email: " Admin@Example.com ", Name: "Admin", Role: domain.RoleAdmin, PasswordHash: "x"}
	require.NoError(t, s.Users.Create(ctx, u))
	assert.Equal(t, "admin@example.com", u.Email)

	err := s.Users.Create(ctx, &domain.User{Email: "admin@example.com", Name: "Dup", Role: domain.RoleManager, PasswordHash: "x"})
	require.ErrorIs(t, err, store.ErrDuplicate)

	email, err := s.Users.EmailOf(context.Background(), tn.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, email)

	_, err = s.Settings.GetSetting(ctx, tn.ID, "theme")
	require.ErrorIs(t, err, settings.ErrNotFound)
	require.NoError(t, s.Settings.SetSetting(ctx, tn.ID, "theme", "dark"))
	require.NoError(t, s.Settings.SetSetting(ctx, tn.ID, "theme", "light"))
	all, err := s.Settings.ListSettings(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"theme": "light"}, all)

	now := time.Now().UTC().Truncate(time.Microsecond)
	n := notifications.Notification{
		ID: uuid.New(), TenantID: tn.ID, RecipientID: u.ID, Title: "Welcome",
		Type: notifications.TypeInfo, Channel: notifications.ChannelEmail,
		Data: map[string]any{"k": "v"}, ScheduledFor: &now, CreatedAt: now,
	}
	require.NoError(t, s.Notifications.Create(ctx, n))

	pending, err := s.Notifications.Pending(context.Background(), now.Add(time.Second), 0)
	require.NoError(t, err)
	var found bool
	for _, p := range pending {
		if p.ID == n.ID {
			found = true
			assert.Equal(t, "v", p.Data["k"])
		}
	}
	assert.True(t, found)

	require.NoError(t, s.Notifications.MarkSent(context.Background(), n.ID, now))
	unread, err := s.Notifications.CountUnread(ctx, tn.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	changed, err := s.Notifications.MarkRead(ctx, tn.ID, &u.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	f := notifications.Notification{
		ID: uuid.New(), TenantID: tn.ID, RecipientID: u.ID, Title: "Reminder",
		Type: notifications.TypeInfo, Channel: notifications.ChannelEmail,
		ScheduledFor: &now, CreatedAt: now,
	}
	require.NoError(t, s.Notifications.Create(ctx, f))
	retry := now.Add(time.Hour)
	require.NoError(t, s.Notifications.MarkFailed(context.Background(), f.ID,
		notifications.Failure{Attempts: 1, Error: "smtp timeout", RetryAt: &retry}, now))

	isPending := func(at time.Time) bool {
		pending, err := s.Notifications.Pending(context.Background(), at, 0)
		require.NoError(t, err)
		for _, p := range pending {
			if p.ID == f.ID {
				return true
			}
		}
		return false
	}
	assert.False(t, isPending(now.Add(time.Minute)))
	assert.True(t, isPending(retry))

	require.NoError(t, s.Notifications.MarkFailed(context.Background(), f.ID,
		notifications.Failure{Attempts: 2, Error: "mailbox full"}, now))
	assert.False(t, isPending(retry.Add(time.Hour)))
	got, err := s.Notifications.Get(ctx, tn.ID, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "mailbox full", got.LastError)
	assert.NotNil(t, got.FailedAt)
}

func TestSystemLogs(t *testing.T) {
	s := store.New(setup(t))
	tn := newTenant(t, s)

	entries := []audit.Entry{
		{TenantID: &tn.ID, Level: audit.LevelInfo, Action: "login", IP: "10.0.0.1", CreatedAt: time.Now().UTC()},
		{TenantID: &tn.ID, Level: audit.LevelError, Action: "export", Extra: map[string]any{"n": 1.0}, CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, s.SystemLogs.StoreBatch(context.Background(), entries))

	got, err := s.SystemLogs.Query(context.Background(), audit.Criteria{TenantID: &tn.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)

	errs, err := s.SystemLogs.Query(context.Background(), audit.Criteria{TenantID: &tn.ID, Levels: []audit.Level{audit.LevelError}})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, 1.0, errs[0].Extra["n"])

	logins, err := s.SystemLogs.Query(context.Background(), audit.Criteria{TenantID: &tn.ID, Action: "login"})
	require.NoError(t, err)
	require.Len(t, logins, 1)
	assert.Equal(t, "10.0.0.1", logins[0].IP)
}
