// Package jwt issues and verifies the HS256 access tokens of tenant users.
//
// A token carries the tenant and user it was issued for. Middleware parses
// the bearer token, optionally verifies the claims against the request
// (MatchTenant rejects tokens presented on another tenant's host) and
// stores them in the request context.
//
//	svc, err := jwt.NewFromString(cfg.Auth.JWTSecret, jwt.WithTTL(12*time.Hour))
//	r.Use(jwt.Middleware(svc, jwt.WithVerifier(jwt.MatchTenant(tenant.IDFromContext))))
//
// Handlers read the caller with ClaimsFromContext or UserIDFromContext.
package jwt
