package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/pkg/limits"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

// LimitChecker is satisfied by *limits.Service.
type LimitChecker interface {
	Check(ctx context.Context, t *tenant.Tenant, res limits.Resource, additional int64) (limits.Usage, error)
	Invalidate(ctx context.Context, tenantID uuid.UUID, resources ...limits.Resource)
}

func currentTenant(ctx context.Context) (*tenant.Tenant, error) {
	t, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, tenant.ErrNoTenantInContext
	}
	return t, nil
}
