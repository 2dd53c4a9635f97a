package api_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/internal/service"
	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/pkg/scope"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

type fakeResolver map[string]*tenant.Tenant

func (f fakeResolver) Resolve(_ context.Context, host string) (*tenant.Tenant, error) {
	t, ok := f[tenant.NormalizeHost(host)]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	if !t.Routable() {
		return nil, tenant.ErrInactiveTenant
	}
	return t.Clone(), nil
}

type mockTenants struct{ mock.Mock }

func (m *mockTenants) Create(ctx context.Context, in service.CreateTenantInput) (*tenant.Tenant, error) {
	args := m.Called(ctx, in)
	t, _ := args.Get(0).(*tenant.Tenant)
	return t, args.Error(1)
}

func (m *mockTenants) Get(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*tenant.Tenant)
	return t, args.Error(1)
}

func (m *mockTenants) List(ctx context.Context, f store.TenantFilter) ([]*tenant.Tenant, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]*tenant.Tenant), args.Error(1)
}

func (m *mockTenants) Update(ctx context.Context, id uuid.UUID, u service.TenantUpdate) (*tenant.Tenant, error) {
	args := m.Called(ctx, id, u)
	t, _ := args.Get(0).(*tenant.Tenant)
	return t, args.Error(1)
}

func (m *mockTenants) UpgradePlan(ctx context.Context, id uuid.UUID, planID string) (*tenant.Tenant, error) {
	args := m.Called(ctx, id, planID)
	t, _ := args.Get(0).(*tenant.Tenant)
	return t, args.Error(1)
}

func (m *mockTenants) SetStatus(ctx context.Context, id uuid.UUID, status tenant.Status) (*tenant.Tenant, error) {
	args := m.Called(ctx, id, status)
	t, _ := args.Get(0).(*tenant.Tenant)
	return t, args.Error(1)
}

func (m *mockTenants) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTenants) Restore(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*tenant.Tenant)
	return t, args.Error(1)
}

func (m *mockTenants) AddDomain(ctx context.Context, tenantID uuid.UUID, host string, verified bool) (tenant.Domain, error) {
	args := m.Called(ctx, tenantID, host, verified)
	return args.Get(0).(tenant.Domain), args.Error(1)
}

func (m *mockTenants) Domains(ctx context.Context, tenantID uuid.UUID) ([]tenant.Domain, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]tenant.Domain), args.Error(1)
}

func (m *mockTenants) SetPrimaryDomain(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *mockTenants) VerifyDomain(ctx context.Context, tenantID, id uuid.UUID, verified bool) (tenant.Domain, error) {
	args := m.Called(ctx, tenantID, id, verified)
	return args.Get(0).(tenant.Domain), args.Error(1)
}

func (m *mockTenants) RemoveDomain(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *mockTenants) URL(_ context.Context, t *tenant.Tenant, path string) string {
	return "https://" + t.Slug + ".clinickit.local" + path
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Create(ctx context.Context, in service.CreateUserInput) (domain.User, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *mockUsers) Get(ctx context.Context, id uuid.UUID, withDeleted bool) (domain.User, error) {
	args := m.Called(ctx, id, withDeleted)
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

func (m *mockPatients) Create(ctx context.Context, in service.PatientInput) (domain.Patient, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.Patient), args.Error(1)
}

func (m *mockPatients) Get(ctx context.Context, id uuid.UUID, withDeleted bool) (domain.Patient, error) {
	args := m.Called(ctx, id, withDeleted)
	return args.Get(0).(domain.Patient), args.Error(1)
}

func (m *mockPatients) List(ctx context.Context, f store.PatientFilter) ([]domain.Patient, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.Patient), args.Error(1)
}

func (m *mockPatients) Update(ctx context.Context, id uuid.UUID, in service.PatientInput) (domain.Patient, error) {
	args := m.Called(ctx, id, in)
	return args.Get(0).(domain.Patient), args.Error(1)
}

func (m *mockPatients) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPatients) Restore(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockCredentials struct{ mock.Mock }

func (m *mockCredentials) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *mockCredentials) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}
