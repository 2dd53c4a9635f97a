package store

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/pkg/scope"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

var tenantColumns = []string{
	"id", "slug", "name", "email", "phone", "plan", "status", "is_active",
	"max_users", "max_patients", "max_storage_gb",
	"logo_url", "primary_color", "secondary_color", "enabled_modules",
	"timezone", "language", "trial_end", "subscription_start", "subscription_end",
	"created_at", "updated_at", "deleted_at",
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

func scanTenant(r rowScanner) (*tenant.Tenant, error) {
	t := &tenant.Tenant{}
	err := r.Scan(
		&t.ID, &t.Slug, &t.Name, &t.Email, &t.Phone, &t.Plan, &t.Status, &t.IsActive,
		&t.Limits.MaxUsers, &t.Limits.MaxPatients, &t.Limits.MaxStorageGB,
		&t.Branding.LogoURL, &t.Branding.PrimaryColor, &t.Branding.SecondaryColor, &t.EnabledModules,
		&t.Timezone, &t.Language, &t.TrialEnd, &t.SubscriptionStart, &t.SubscriptionEnd,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	return t, err
}

// TenantFilter narrows List.
type TenantFilter struct {
	Status     tenant.Status
	Visibility scope.Visibility
	Limit      int
	Offset     int
}

// TenantStore persists tenants and implements tenant.Directory.
type TenantStore struct {
	db    DB
	table scope.Table
}

// NewTenantStore creates a TenantStore.
func NewTenantStore(db DB) *TenantStore {
	return &TenantStore{db: db, table: scope.On("tenants", scope.Global())}
}

// Create inserts t. ID and timestamps are filled in when zero.
func (s *TenantStore) Create(ctx context.Context, t *tenant.Tenant) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	modules := t.EnabledModules
	if modules == nil {
		modules = []string{}
	}
	_, err := exec(ctx, s.db, psql.Insert("tenants").SetMap(map[string]any{
		"id": t.ID, "slug": t.Slug, "name": t.Name, "email": t.Email, "phone": t.Phone,
		"plan": t.Plan, "status": string(t.Status), "is_active": t.IsActive,
		"max_users": t.Limits.MaxUsers, "max_patients": t.Limits.MaxPatients, "max_storage_gb": t.Limits.MaxStorageGB,
		"logo_url": t.Branding.LogoURL, "primary_color": t.Branding.PrimaryColor, "secondary_color": t.Branding.SecondaryColor,
		"enabled_modules": modules, "timezone": t.Timezone, "language": t.Language,
		"trial_end": t.TrialEnd, "subscription_start": t.SubscriptionStart, "subscription_end": t.SubscriptionEnd,
		"created_at": t.CreatedAt, "updated_at": t.UpdatedAt,
	}))
	return err
}

// Get returns a live tenant by id.
func (s *TenantStore) Get(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return s.getBy(ctx, s.table, sq.Eq{"id": id})
}

// GetAny returns a tenant by id including soft-deleted ones.
func (s *TenantStore) GetAny(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return s.getBy(ctx, s.table.With(scope.WithDeleted()), sq.Eq{"id": id})
}

// FindBySlug implements tenant.Directory. Soft-deleted tenants are returned
// so the resolver can report them as inactive.
func (s *TenantStore) FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	t, err := s.getBy(ctx, s.table.With(scope.WithDeleted()), sq.Eq{"slug": strings.ToLower(slug)})
	if errors.Is(err, ErrNotFound) {
		return nil, tenant.ErrTenantNotFound
	}
	return t, err
}

// FindByDomain implements tenant.Directory: exact match on a verified
// domain.
func (s *TenantStore) FindByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	b := psql.Select(prefixed("t", tenantColumns)...).
		From("tenants t").
		Join("tenant_domains d ON d.tenant_id = t.id").
		Where(sq.Eq{"d.domain": strings.ToLower(domain), "d.is_verified": true})
	t, err := queryOne(ctx, s.db, b, scanTenant)
	if errors.Is(err, ErrNotFound) {
		return nil, tenant.ErrTenantNotFound
	}
	return t, err
}

func (s *TenantStore) getBy(ctx context.Context, table scope.Table, where sq.Sqlizer) (*tenant.Tenant, error) {
	b, err := table.Select(ctx, tenantColumns...)
	if err != nil {
		return nil, err
	}
	return queryOne(ctx, s.db, b.Where(where), scanTenant)
}

// SlugExists reports whether any tenant, deleted or not, holds slug.
func (s *TenantStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	b, err := s.table.With(scope.WithDeleted()).Exists(ctx, sq.Eq{"slug": slug})
	if err != nil {
		return false, err
	}
	return queryBool(ctx, s.db, b)
}

// List returns tenants ordered by name.
func (s *TenantStore) List(ctx context.Context, f TenantFilter) ([]*tenant.Tenant, error) {
	b, err := s.table.With(scope.WithVisibility(f.Visibility)).Select(ctx, tenantColumns...)
	if err != nil {
		return nil, err
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	return queryAll(ctx, s.db, paginate(b.OrderBy("name"), f.Limit, f.Offset), scanTenant)
}

// Update writes the mutable fields of t. The slug is immutable.
func (s *TenantStore) Update(ctx context.Context, t *tenant.Tenant) error {
	b, err := s.table.Update(ctx)
	if err != nil {
		return err
	}
	b = b.SetMap(map[string]any{
		"name": t.Name, "email": t.Email, "phone": t.Phone,
		"plan": t.Plan, "status": string(t.Status), "is_active": t.IsActive,
		"max_users": t.Limits.MaxUsers, "max_patients": t.Limits.MaxPatients, "max_storage_gb": t.Limits.MaxStorageGB,
		"logo_url": t.Branding.LogoURL, "primary_color": t.Branding.PrimaryColor, "secondary_color": t.Branding.SecondaryColor,
		"enabled_modules": t.EnabledModules, "timezone": t.Timezone, "language": t.Language,
		"trial_end": t.TrialEnd, "subscription_start": t.SubscriptionStart, "subscription_end": t.SubscriptionEnd,
	}).Where(sq.Eq{"id": t.ID})
	return execOne(ctx, s.db, b)
}

// SetStatus changes only the subscription status.
func (s *TenantStore) SetStatus(ctx context.Context, id uuid.UUID, status tenant.Status) error {
	b, err := s.table.Update(ctx)
	if err != nil {
		return err
	}
	return execOne(ctx, s.db, b.Set("status", string(status)).Where(sq.Eq{"id": id}))
}

// SoftDelete deactivates a tenant.
func (s *TenantStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	b, err := s.table.SoftDelete(ctx)
	if err != nil {
		return err
	}
	return execOne(ctx, s.db, b.Where(sq.Eq{"id": id}))
}

// Restore reactivates a soft-deleted tenant.
func (s *TenantStore) Restore(ctx context.Context, id uuid.UUID) error {
	b, err := s.table.Restore(ctx)
	if err != nil {
		return err
	}
	return execOne(ctx, s.db, b.Where(sq.Eq{"id": id}))
}

// Lapsed returns live tenants whose trial or subscription ended before now
// while still marked trial or active.
func (s *TenantStore) Lapsed(ctx context.Context, now time.Time, limit int) ([]*tenant.Tenant, error) {
	b, err := s.table.Select(ctx, tenantColumns...)
	if err != nil {
		return nil, err
	}
	b = b.Where(sq.Or{
		sq.And{sq.Eq{"status": string(tenant.StatusTrial)}, sq.Lt{"trial_end": now}},
		sq.And{sq.Eq{"status": string(tenant.StatusActive)}, sq.Lt{"subscription_end": now}},
	}).OrderBy("created_at")
	return queryAll(ctx, s.db, paginate(b, limit, 0), scanTenant)
}
