package tenant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type (
	tenantKey  struct{}
	displayKey struct{}
)

// WithTenant binds t to ctx.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, t)
}

// FromContext returns the tenant bound to ctx.
func FromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(tenantKey{}).(*Tenant)
	return t, ok && t != nil
}

// IDFromContext returns the ID of the tenant bound to ctx.
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	t, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return t.ID, true
}

// MustFromContext panics when no tenant is bound. Use it only behind
// Middleware or RequireTenant.
func MustFromContext(ctx context.Context) *Tenant {
	t, ok := FromContext(ctx)
	if !ok {
		panic("tenant: no tenant in context")
	}
	return t
}

// WithDisplay binds presentation metadata to ctx.
func WithDisplay(ctx context.Context, d Display) context.Context {
	return context.WithValue(ctx, displayKey{}, d)
}

// DisplayFromContext returns the display data stored by Middleware.
func DisplayFromContext(ctx context.Context) (Display, bool) {
	d, ok := ctx.Value(displayKey{}).(Display)
	return d, ok
}

// LoggerExtractor adds a "tenant" group with id and slug to log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		t, ok := FromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return slog.Group("tenant",
			slog.String("id", t.ID.String()),
			slog.String("slug", t.Slug),
		), true
	}
}
