package tenant_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) FindByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	args := m.Called(ctx, domain)
	if t := args.Get(0); t != nil {
		return t.(*tenant.Tenant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	args := m.Called(ctx, slug)
	if t := args.Get(0); t != nil {
		return t.(*tenant.Tenant), args.Error(1)
	}
	return nil, args.Error(1)
}

func createTestTenant(slug string, status tenant.Status) *tenant.Tenant {
	return &tenant.Tenant{
		ID:             uuid.New(),
		Slug:           slug,
		Name:           "Clinic " + slug,
		Plan:           "basic",
		Status:         status,
		IsActive:       true,
		Limits:         tenant.Limits{MaxUsers: 5, MaxPatients: 100, MaxStorageGB: 1},
		Branding:       tenant.DefaultBranding(),
		EnabledModules: tenant.DefaultModules(),
		CreatedAt:      time.Now(),
	}
}
