package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/pkg/cache"
	"github.com/dmitrymomot/clinickit/pkg/logger"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

// DefaultTTL is how long a resolved value stays cached.
const DefaultTTL = time.Hour

const keyPrefix = "tenant_setting:"

var (
	ErrNotFound    = errors.New("settings: key not found")
	ErrEmptyKey    = errors.New("settings: empty key")
	ErrInvalidJSON = errors.New("settings: value is not valid JSON")
	ErrStore       = errors.New("settings: store failure")
)

// Store persists settings per tenant. Get returns ErrNotFound for a
// missing key.
type Store interface {
	GetSetting(ctx context.Context, tenantID uuid.UUID, key string) (string, error)
	SetSetting(ctx context.Context, tenantID uuid.UUID, key, value string) error
	DeleteSetting(ctx context.Context, tenantID uuid.UUID, key string) error
	ListSettings(ctx context.Context, tenantID uuid.UUID) (map[string]string, error)
}

// Manager reads and writes the settings of the tenant bound to ctx.
type Manager struct {
	store  Store
	kv     cache.KV
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithCache caches values in kv.
func WithCache(kv cache.KV) Option {
	return func(m *Manager) {
		if kv != nil {
			m.kv = kv
		}
	}
}

// WithTTL sets how long cached values live.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		kv:     cache.NewMemoryKV(4096),
		ttl:    DefaultTTL,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the value for key, or def when the key is not set.
func (m *Manager) Get(ctx context.Context, key, def string) (string, error) {
	v, err := m.lookup(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	return v, err
}

// Lookup returns the value for key or ErrNotFound.
func (m *Manager) Lookup(ctx context.Context, key string) (string, error) {
	return m.lookup(ctx, key)
}

// Set stores value for key and refreshes the cache.
func (m *Manager) Set(ctx context.Context, key, value string) error {
	tenantID, err := scopeOf(ctx, key)
	if err != nil {
		return err
	}
	if err := m.store.SetSetting(ctx, tenantID, key, value); err != nil {
		return errors.Join(ErrStore, err)
	}
	if err := m.kv.Set(ctx, cacheKey(tenantID, key), []byte(value), m.ttl); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "settings cache write failed", slog.String("key", key), logger.Error(err))
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Manager) Delete(ctx context.Context, key string) error {
	tenantID, err := scopeOf(ctx, key)
	if err != nil {
		return err
	}
	if err := m.store.DeleteSetting(ctx, tenantID, key); err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Join(ErrStore, err)
	}
	if err := m.kv.Delete(ctx, cacheKey(tenantID, key)); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "settings cache invalidation failed", slog.String("key", key), logger.Error(err))
	}
	return nil
}

// All returns every setting of the tenant, bypassing the cache.
func (m *Manager) All(ctx context.Context) (map[string]string, error) {
	tenantID, ok := tenant.IDFromContext(ctx)
	if !ok {
		return nil, tenant.ErrNoTenantInContext
	}
	out, err := m.store.ListSettings(ctx, tenantID)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	return out, nil
}

// GetJSON decodes the value of key into dst. It returns ErrNotFound when
// the key is not set, leaving dst untouched.
func (m *Manager) GetJSON(ctx context.Context, key string, dst any) error {
	v, err := m.lookup(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		return errors.Join(ErrInvalidJSON, err)
	}
	return nil
}

// SetJSON stores value encoded as JSON.
func (m *Manager) SetJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Join(ErrInvalidJSON, err)
	}
	return m.Set(ctx, key, string(raw))
}

func (m *Manager) lookup(ctx context.Context, key string) (string, error) {
	tenantID, err := scopeOf(ctx, key)
	if err != nil {
		return "", err
	}
	ck := cacheKey(tenantID, key)

	raw, ok, err := m.kv.Get(ctx, ck)
	if err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "settings cache read failed", slog.String("key", key), logger.Error(err))
	} else if ok {
		return string(raw), nil
	}

	v, err := m.store.GetSetting(ctx, tenantID, key)
	if errors.Is(err, ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Join(ErrStore, err)
	}
	if err := m.kv.Set(ctx, ck, []byte(v), m.ttl); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "settings cache write failed", slog.String("key", key), logger.Error(err))
	}
	return v, nil
}

func scopeOf(ctx context.Context, key string) (uuid.UUID, error) {
	if key == "" {
		return uuid.Nil, ErrEmptyKey
	}
	id, ok := tenant.IDFromContext(ctx)
	if !ok {
		return uuid.Nil, tenant.ErrNoTenantInContext
	}
	return id, nil
}

func cacheKey(tenantID uuid.UUID, key string) string {
	return keyPrefix + tenantID.String() + ":" + key
}
