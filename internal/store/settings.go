package store

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/pkg/scope"
	"github.com/dmitrymomot/clinickit/pkg/settings"
)

// SettingStore keeps per-tenant key/value settings in the configurations
// table. It implements settings.Store.
type SettingStore struct {
	db    DB
	table scope.Table
}

// NewSettingStore creates a SettingStore.
func NewSettingStore(db DB) *SettingStore {
	return &SettingStore{db: db, table: scope.On("configurations", scope.NoSoftDelete())}
}

func (s *SettingStore) forTenant(id uuid.UUID) scope.Table {
	return s.table.With(scope.ForTenant(id))
}

// GetSetting returns a value or settings.ErrNotFound.
func (s *SettingStore) GetSetting(ctx context.Context, tenantID uuid.UUID, key string) (string, error) {
	b, err := s.forTenant(tenantID).Select(ctx, "value")
	if err != nil {
		return "", err
	}
	v, err := queryOne(ctx, s.db, b.Where(sq.Eq{"key": key}), func(r rowScanner) (string, error) {
		var v string
		return v, r.Scan(&v)
	})
	if errors.Is(err, ErrNotFound) {
		return "", settings.ErrNotFound
	}
	return v, err
}

// SetSetting inserts or replaces a value.
func (s *SettingStore) SetSetting(ctx context.Context, tenantID uuid.UUID, key, value string) error {
	b, err := s.table.Insert(ctx, map[string]any{
		scope.ColTenantID: tenantID, "key": key, "value": value,
	})
	if err != nil {
		return err
	}
	_, err = exec(ctx, s.db, b.Suffix("ON CONFLICT (tenant_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()"))
	return err
}

// DeleteSetting removes a key; missing keys are ignored.
func (s *SettingStore) DeleteSetting(ctx context.Context, tenantID uuid.UUID, key string) error {
	b, err := s.forTenant(tenantID).Delete(ctx)
	if err != nil {
		return err
	}
	_, err = exec(ctx, s.db, b.Where(sq.Eq{"key": key}))
	return err
}

// ListSettings returns every setting of a tenant.
func (s *SettingStore) ListSettings(ctx context.Context, tenantID uuid.UUID) (map[string]string, error) {
	b, err := s.forTenant(tenantID).Select(ctx, "key", "value")
	if err != nil {
		return nil, err
	}
	type kv struct{ k, v string }
	rows, err := queryAll(ctx, s.db, b.OrderBy("key"), func(r rowScanner) (kv, error) {
		var p kv
		return p, r.Scan(&p.k, &p.v)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, p := range rows {
		out[p.k] = p.v
	}
	return out, nil
}
