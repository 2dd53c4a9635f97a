package store

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/clinickit/pkg/pg"
	"github.com/dmitrymomot/clinickit/pkg/scope"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

var domainColumns = []string{"id", "tenant_id", "domain", "is_primary", "is_verified", "ssl_enabled", "created_at", "updated_at"}

func scanDomain(r rowScanner) (tenant.Domain, error) {
	var d tenant.Domain
	err := r.Scan(&d.ID, &d.TenantID, &d.Domain, &d.IsPrimary, &d.IsVerified, &d.SSLEnabled, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// DomainStore persists tenant domains. Operations are scoped to the tenant
// in context; superuser contexts may pass scope.ForTenant.
type DomainStore struct {
	db    DB
	table scope.Table
}

// NewDomainStore creates a DomainStore.
func NewDomainStore(db DB) *DomainStore {
	return &DomainStore{db: db, table: scope.On("tenant_domains", scope.NoSoftDelete())}
}

func (s *DomainStore) forTenant(tenantID uuid.UUID) scope.Table {
	return s.table.With(scope.ForTenant(tenantID))
}

// Add registers d for its tenant. The first domain of a tenant becomes
// primary.
func (s *DomainStore) Add(ctx context.Context, d *tenant.Domain) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.Domain = strings.ToLower(d.Domain)
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now

	return pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		count, err := s.forTenant(d.TenantID).Count(ctx)
		if err != nil {
			return err
		}
		n, err := queryInt(ctx, tx, count)
		if err != nil {
			return err
		}
		if n == 0 {
			d.IsPrimary = true
		}

		ins, err := s.table.Insert(ctx, map[string]any{
			"id": d.ID, "tenant_id": d.TenantID, "domain": d.Domain,
			"is_primary": d.IsPrimary, "is_verified": d.IsVerified, "ssl_enabled": d.SSLEnabled,
			"created_at": d.CreatedAt, "updated_at": d.UpdatedAt,
		})
		if err != nil {
			return err
		}
		_, err = exec(ctx, tx, ins)
		return err
	})
}

// List returns the tenant's domains, primary first.
func (s *DomainStore) List(ctx context.Context, tenantID uuid.UUID) ([]tenant.Domain, error) {
	b, err := s.forTenant(tenantID).Select(ctx, domainColumns...)
	if err != nil {
		return nil, err
	}
	return queryAll(ctx, s.db, b.OrderBy("is_primary DESC", "domain"), scanDomain)
}

// Get returns one domain of a tenant.
func (s *DomainStore) Get(ctx context.Context, tenantID, id uuid.UUID) (tenant.Domain, error) {
	b, err := s.forTenant(tenantID).Select(ctx, domainColumns...)
	if err != nil {
		return tenant.Domain{}, err
	}
	return queryOne(ctx, s.db, b.Where(sq.Eq{"id": id}), scanDomain)
}

// Primary returns the tenant's primary domain.
func (s *DomainStore) Primary(ctx context.Context, tenantID uuid.UUID) (tenant.Domain, error) {
	b, err := s.forTenant(tenantID).Select(ctx, domainColumns...)
	if err != nil {
		return tenant.Domain{}, err
	}
	return queryOne(ctx, s.db, b.Where(sq.Eq{"is_primary": true}), scanDomain)
}

// SetPrimary makes id the only primary domain of the tenant. The tenant's
// domain rows are locked for the duration, so concurrent calls serialize
// and exactly one primary remains. Setting the current primary again is a
// no-op.
func (s *DomainStore) SetPrimary(ctx context.Context, tenantID, id uuid.UUID) error {
	t := s.forTenant(tenantID)
	return pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		lock, err := t.Select(ctx, "id", "is_primary")
		if err != nil {
			return err
		}
		rows, err := queryAll(ctx, tx, lock.Suffix("FOR UPDATE"), func(r rowScanner) (tenant.Domain, error) {
			var d tenant.Domain
			return d, r.Scan(&d.ID, &d.IsPrimary)
		})
		if err != nil {
			return err
		}

		found := false
		for _, d := range rows {
			if d.ID == id {
				if d.IsPrimary {
					return nil
				}
				found = true
			}
		}
		if !found {
			return tenant.ErrDomainNotFound
		}

		demote, err := t.Update(ctx)
		if err != nil {
			return err
		}
		if _, err := exec(ctx, tx, demote.Set("is_primary", false).Where(sq.Eq{"is_primary": true})); err != nil {
			return err
		}
		promote, err := t.Update(ctx)
		if err != nil {
			return err
		}
		return execOne(ctx, tx, promote.Set("is_primary", true).Where(sq.Eq{"id": id}))
	})
}

// SetVerified flags a domain as verified or not.
func (s *DomainStore) SetVerified(ctx context.Context, tenantID, id uuid.UUID, verified bool) error {
	b, err := s.forTenant(tenantID).Update(ctx)
	if err != nil {
		return err
	}
	return execOne(ctx, s.db, b.Set("is_verified", verified).Where(sq.Eq{"id": id}))
}

// Remove deletes a non-primary domain and returns it.
func (s *DomainStore) Remove(ctx context.Context, tenantID, id uuid.UUID) (tenant.Domain, error) {
	d, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return d, err
	}
	if d.IsPrimary {
		return d, ErrPrimaryDomain
	}
	b, err := s.forTenant(tenantID).Delete(ctx)
	if err != nil {
		return d, err
	}
	return d, execOne(ctx, s.db, b.Where(sq.Eq{"id": id, "is_primary": false}))
}

// Hosts lists every domain of the tenant, used to invalidate cached
// lookups.
func (s *DomainStore) Hosts(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	b, err := s.forTenant(tenantID).Select(ctx, "domain")
	if err != nil {
		return nil, err
	}
	return queryAll(ctx, s.db, b, func(r rowScanner) (string, error) {
		var h string
		return h, r.Scan(&h)
	})
}
