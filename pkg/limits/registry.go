package limits

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CounterFunc returns the current usage of one resource for a tenant.
type CounterFunc func(ctx context.Context, tenantID uuid.UUID) (int64, error)

// CounterRegistry maps a Resource to its CounterFunc. Register everything
// at startup; the registry is not safe for concurrent writes.
type CounterRegistry map[Resource]CounterFunc

// NewRegistry returns an empty CounterRegistry.
func NewRegistry() CounterRegistry {
	return make(CounterRegistry)
}

// Register sets the counter for res. It panics on a nil fn.
func (r CounterRegistry) Register(res Resource, fn CounterFunc) {
	if fn == nil {
		panic(fmt.Sprintf("limits: CounterFunc for resource %q cannot be nil", res))
	}
	r[res] = fn
}
