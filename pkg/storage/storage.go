package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUnknownDriver   = errors.New("storage: unknown driver")
	ErrMissingBucket   = errors.New("storage: bucket and region are required")
	ErrFailedToMeasure = errors.New("storage: failed to measure tenant usage")
)

const bytesPerGB = 1 << 30

// Meter reports how many bytes a tenant currently stores.
type Meter interface {
	Usage(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// TenantPrefix is the object key prefix under which a tenant's files live.
func TenantPrefix(tenantID uuid.UUID) string {
	return "tenants/" + tenantID.String() + "/"
}

// GigabytesCounter adapts a Meter to a per-tenant gigabyte count, rounding
// up so that any stored byte occupies quota.
func GigabytesCounter(m Meter) func(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return func(ctx context.Context, tenantID uuid.UUID) (int64, error) {
		n, err := m.Usage(ctx, tenantID)
		if err != nil {
			return 0, err
		}
		return (n + bytesPerGB - 1) / bytesPerGB, nil
	}
}
