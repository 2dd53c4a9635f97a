package jwt

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey struct{ name string }

func (c contextKey) String() string { return c.name }

var claimsContextKey = &contextKey{name: "jwt_claims"}

// WithClaims returns a copy of ctx carrying c.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, c)
}

// ClaimsFromContext returns the claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(Claims)
	return c, ok
}

// UserIDFromContext returns the authenticated user's id. Its signature
// matches audit.Extractors.UserID.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return c.UserID, true
}

// LoggerExtractor adds a "user" group with id and role to log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		c, ok := ClaimsFromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return slog.Group("user",
			slog.String("id", c.UserID.String()),
			slog.String("role", c.Role),
		), true
	}
}
