package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/pkg/audit"
	"github.com/dmitrymomot/clinickit/pkg/limits"
	"github.com/dmitrymomot/clinickit/pkg/scope"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

type mockTenants struct{ mock.Mock }

func (m *mockTenants) Create(ctx context.Context, t *tenant.Tenant) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTenants) GetAny(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	args := m.Called(ctx, id)
	if t := args.Get(0); t != nil {
		return t.(*tenant.Tenant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTenants) SlugExists(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *mockTenants) List(ctx context.Context, f store.TenantFilter) ([]*tenant.Tenant, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]*tenant.Tenant), args.Error(1)
}

func (m *mockTenants) Update(ctx context.Context, t *tenant.Tenant) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTenants) SetStatus(ctx context.Context, id uuid.UUID, status tenant.Status) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockTenants) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTenants) Restore(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTenants) Lapsed(ctx context.Context, now time.Time, limit int) ([]*tenant.Tenant, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]*tenant.Tenant), args.Error(1)
}

type mockDomains struct{ mock.Mock }

func (m *mockDomains) Add(ctx context.Context, d *tenant.Domain) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockDomains) List(ctx context.Context, tenantID uuid.UUID) ([]tenant.Domain, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]tenant.Domain), args.Error(1)
}

func (m *mockDomains) Get(ctx context.Context, tenantID, id uuid.UUID) (tenant.Domain, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Get(0).(tenant.Domain), args.Error(1)
}

func (m *mockDomains) Primary(ctx context.Context, tenantID uuid.UUID) (tenant.Domain, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(tenant.Domain), args.Error(1)
}

func (m *mockDomains) SetPrimary(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *mockDomains) SetVerified(ctx context.Context, tenantID, id uuid.UUID, verified bool) error {
	return m.Called(ctx, tenantID, id, verified).Error(0)
}

func (m *mockDomains) Remove(ctx context.Context, tenantID, id uuid.UUID) (tenant.Domain, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Get(0).(tenant.Domain), args.Error(1)
}

func (m *mockDomains) Hosts(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]string), args.Error(1)
}

type mockHosts struct{ mock.Mock }

func (m *mockHosts) Invalidate(ctx context.Context, hosts ...string) {
	m.Called(ctx, hosts)
}

type mockSettings struct{ mock.Mock }

func (m *mockSettings) SetSetting(ctx context.Context, tenantID uuid.UUID, key, value string) error {
	return m.Called(ctx, tenantID, key, value).Error(0)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Create(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockUsers) Get(ctx context.Context, id uuid.UUID, opts ...scope.Option) (domain.User, error) {
	args := m.Called(ctx, id, len(opts))
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *mockUsers) List(ctx context.Context, v scope.Visibility, limit, offset int) ([]domain.User, error) {
	args := m.Called(ctx, v, limit, offset)
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *mockUsers) Deactivate(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockUsers) Restore(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockPatients struct{ mock.Mock }

func (m *mockPatients) Create(ctx context.Context, p *domain.Patient) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPatients) Get(ctx context.Context, id uuid.UUID, opts ...scope.Option) (domain.Patient, error) {
	args := m.Called(ctx, id, len(opts))
	return args.Get(0).(domain.Patient), args.Error(1)
}

func (m *mockPatients) List(ctx context.Context, f store.PatientFilter) ([]domain.Patient, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.Patient), args.Error(1)
}

func (m *mockPatients) Update(ctx context.Context, p domain.Patient) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPatients) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPatients) Restore(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func newCatalog(t *testing.T) *limits.Catalog {
	t.Helper()
	c, err := limits.NewCatalog(context.Background(), limits.NewMemorySource(limits.DefaultPlans()...))
	require.NoError(t, err)
	return c
}

// fixedCounts returns a limits.Service whose counters report fixed values.
func fixedCounts(users, patients int64) *limits.Service {
	reg := limits.NewRegistry()
	reg.Register(limits.ResourceUsers, func(context.Context, uuid.UUID) (int64, error) { return users, nil })
	reg.Register(limits.ResourcePatients, func(context.Context, uuid.UUID) (int64, error) { return patients, nil })
	return limits.NewService(reg)
}

func clinic(maxUsers, maxPatients int64) *tenant.Tenant {
	return &tenant.Tenant{
		ID:       uuid.New(),
		Slug:     "sunshine",
		Name:     "Sunshine Clinic",
		Plan:     "basic",
		Status:   tenant.StatusTrial,
		IsActive: true,
		Limits:   tenant.Limits{MaxUsers: maxUsers, MaxPatients: maxPatients, MaxStorageGB: 1},
	}
}

type mockCredentials struct{ mock.Mock }

func (m *mockCredentials) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *mockCredentials) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type mockAudit struct{ mock.Mock }

func (m *mockAudit) Info(ctx context.Context, action, description string, opts ...audit.EntryOption) error {
	return m.Called(ctx, action, description).Error(0)
}

func (m *mockAudit) Warning(ctx context.Context, action, description string, opts ...audit.EntryOption) error {
	return m.Called(ctx, action, description).Error(0)
}
