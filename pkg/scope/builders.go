package scope

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

// Select starts a scoped SELECT of columns from the table.
func (t Table) Select(ctx context.Context, columns ...string) (sq.SelectBuilder, error) {
	b := psql.Select(columns...).From(t.name)
	filters, err := t.Filters(ctx)
	if err != nil {
		return b, err
	}
	for _, f := range filters {
		b = b.Where(f)
	}
	return b, nil
}

// Count starts a scoped SELECT COUNT(*).
func (t Table) Count(ctx context.Context) (sq.SelectBuilder, error) {
	return t.Select(ctx, "COUNT(*)")
}

// Exists wraps a scoped selection into SELECT EXISTS(...).
func (t Table) Exists(ctx context.Context, where sq.Sqlizer) (sq.SelectBuilder, error) {
	b, err := t.Select(ctx, "1")
	if err != nil {
		return b, err
	}
	if where != nil {
		b = b.Where(where)
	}
	return b.Prefix("SELECT EXISTS (").Suffix(")"), nil
}

// Insert starts an INSERT of values. The tenant column is stamped from the
// context unless values already set it; an explicit tenant obeys the same
// rules as ForTenant.
func (t Table) Insert(ctx context.Context, values map[string]any) (sq.InsertBuilder, error) {
	if t.tenantScoped {
		if v, ok := values[ColTenantID]; ok {
			id, _ := v.(uuid.UUID)
			if _, err := t.With(ForTenant(id)).tenantFilter(ctx); err != nil {
				return sq.InsertBuilder{}, err
			}
		} else {
			id, ok := tenant.IDFromContext(ctx)
			if !ok {
				return sq.InsertBuilder{}, ErrNoTenant
			}
			stamped := make(map[string]any, len(values)+1)
			for k, v := range values {
				stamped[k] = v
			}
			stamped[ColTenantID] = id
			values = stamped
		}
	}
	return psql.Insert(t.name).SetMap(values), nil
}

// Update starts a scoped UPDATE. Only rows visible through the scope can be
// changed.
func (t Table) Update(ctx context.Context) (sq.UpdateBuilder, error) {
	b := psql.Update(t.name)
	filters, err := t.Filters(ctx)
	if err != nil {
		return b, err
	}
	for _, f := range filters {
		b = b.Where(f)
	}
	return b.Set(ColUpdatedAt, sq.Expr("NOW()")), nil
}

// SoftDelete marks live rows as deleted.
func (t Table) SoftDelete(ctx context.Context) (sq.UpdateBuilder, error) {
	b, err := t.With(WithVisibility(Live)).Update(ctx)
	if err != nil {
		return b, err
	}
	return b.Set(ColIsActive, false).Set(ColDeletedAt, t.now()), nil
}

// Restore brings soft-deleted rows back.
func (t Table) Restore(ctx context.Context) (sq.UpdateBuilder, error) {
	b, err := t.With(WithVisibility(Deleted)).Update(ctx)
	if err != nil {
		return b, err
	}
	return b.Set(ColIsActive, true).Set(ColDeletedAt, nil), nil
}

// Delete starts a scoped hard DELETE. Visibility still applies, so callers
// purge soft-deleted rows with DeletedOnly.
func (t Table) Delete(ctx context.Context) (sq.DeleteBuilder, error) {
	b := psql.Delete(t.name)
	filters, err := t.Filters(ctx)
	if err != nil {
		return b, err
	}
	for _, f := range filters {
		b = b.Where(f)
	}
	return b, nil
}
