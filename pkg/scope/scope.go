package scope

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

// Column names shared by every tenant-scoped, soft-deletable table.
const (
	ColTenantID  = "tenant_id"
	ColIsActive  = "is_active"
	ColDeletedAt = "deleted_at"
	ColUpdatedAt = "updated_at"
)

var (
	// ErrNoTenant is returned when a scoped query is built without a tenant
	// in context and without superuser rights.
	ErrNoTenant = errors.New("scope: no tenant in context")

	// ErrCrossTenant is returned when an explicit tenant filter names a
	// tenant other than the one in context.
	ErrCrossTenant = errors.New("scope: cross-tenant access denied")
)

// psql builds PostgreSQL statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Visibility selects rows by soft-delete state.
type Visibility int

const (
	// Live rows: is_active AND deleted_at IS NULL.
	Live Visibility = iota
	// All rows regardless of soft-delete state.
	All
	// Deleted rows only: NOT is_active AND deleted_at IS NOT NULL.
	Deleted
)

type superuserKey struct{}

// AsSuperuser marks ctx as administrative: tenant filters are lifted unless
// ForTenant is given explicitly.
func AsSuperuser(ctx context.Context) context.Context {
	return context.WithValue(ctx, superuserKey{}, true)
}

// IsSuperuser reports whether ctx was marked by AsSuperuser.
func IsSuperuser(ctx context.Context) bool {
	v, _ := ctx.Value(superuserKey{}).(bool)
	return v
}

// Option adjusts a Table.
type Option func(*Table)

// WithDeleted includes soft-deleted rows.
func WithDeleted() Option {
	return func(t *Table) { t.visibility = All }
}

// DeletedOnly restricts results to soft-deleted rows.
func DeletedOnly() Option {
	return func(t *Table) { t.visibility = Deleted }
}

// WithVisibility sets visibility from a runtime value, e.g. a query parameter.
func WithVisibility(v Visibility) Option {
	return func(t *Table) { t.visibility = v }
}

// ForTenant filters by an explicit tenant. Outside superuser context it must
// match the tenant in context.
func ForTenant(id uuid.UUID) Option {
	return func(t *Table) { t.explicitTenant = &id }
}

// Global marks a table without a tenant column.
func Global() Option {
	return func(t *Table) { t.tenantScoped = false }
}

// NoSoftDelete marks a table without is_active/deleted_at columns.
func NoSoftDelete() Option {
	return func(t *Table) { t.softDelete = false }
}

// Table describes how queries against one table are scoped. The zero value
// is not usable; build it with On.
type Table struct {
	name           string
	tenantScoped   bool
	softDelete     bool
	visibility     Visibility
	explicitTenant *uuid.UUID
	now            func() time.Time
}

// On returns the scope for table name. By default it is tenant scoped,
// soft-deletable and shows live rows only.
func On(name string, opts ...Option) Table {
	t := Table{name: name, tenantScoped: true, softDelete: true, now: time.Now}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// With returns a copy of t with more options applied.
func (t Table) With(opts ...Option) Table {
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// Name returns the table name.
func (t Table) Name() string { return t.name }

// tenantFilter resolves the tenant predicate for ctx. A nil predicate means
// no tenant restriction (global table or superuser).
func (t Table) tenantFilter(ctx context.Context) (sq.Sqlizer, error) {
	if !t.tenantScoped {
		return nil, nil
	}

	id, ok := tenant.IDFromContext(ctx)
	super := IsSuperuser(ctx)

	if t.explicitTenant != nil {
		if !super && (!ok || id != *t.explicitTenant) {
			return nil, ErrCrossTenant
		}
		return sq.Eq{ColTenantID: *t.explicitTenant}, nil
	}
	if super {
		return nil, nil
	}
	if !ok {
		return nil, ErrNoTenant
	}
	return sq.Eq{ColTenantID: id}, nil
}

func (t Table) visibilityFilter() sq.Sqlizer {
	if !t.softDelete {
		return nil
	}
	switch t.visibility {
	case All:
		return nil
	case Deleted:
		return sq.And{sq.Eq{ColIsActive: false}, sq.NotEq{ColDeletedAt: nil}}
	default:
		return sq.And{sq.Eq{ColIsActive: true}, sq.Eq{ColDeletedAt: nil}}
	}
}

// Filters returns every predicate the scope imposes, in order.
func (t Table) Filters(ctx context.Context) ([]sq.Sqlizer, error) {
	tf, err := t.tenantFilter(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]sq.Sqlizer, 0, 2)
	if tf != nil {
		out = append(out, tf)
	}
	if vf := t.visibilityFilter(); vf != nil {
		out = append(out, vf)
	}
	return out, nil
}
