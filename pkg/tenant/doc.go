// Package tenant resolves the clinic (tenant) a request belongs to and
// carries it through the request context.
//
// Resolution is host based. A Resolver first consults its Cache, then the
// Directory for a verified custom domain with an exact match, and finally
// treats the leading label of a dotted host as the tenant slug:
//
//	clinic.example.org        -> verified custom domain
//	acme.clinics.example.com  -> slug "acme"
//
// Found tenants are cached for five minutes by default. A tenant is only
// served when it is active and in trial or active status; otherwise Resolve
// returns ErrInactiveTenant.
//
// Middleware binds the tenant and its Display metadata to the request
// context, sets X-Tenant-ID and X-Tenant-Slug response headers and marks
// 200 responses with a tenant-scoped Cache-Control value:
//
//	resolver := tenant.NewResolver(store,
//		tenant.WithCache(tenant.NewMemoryCache(10_000)),
//	)
//	r.Use(tenant.Middleware(resolver,
//		tenant.WithSkipPaths("/healthz", "/metrics"),
//		tenant.WithLogger(log),
//	))
//
// Handlers read the tenant with FromContext or MustFromContext. API clients
// get JSON errors (404 not found, 403 inactive); browsers get a plain 404 or
// a redirect to the suspension notice.
package tenant
