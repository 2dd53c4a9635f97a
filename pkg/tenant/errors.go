package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when no tenant matches a host or identifier.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInactiveTenant is returned when a tenant exists but may not serve requests.
	ErrInactiveTenant = errors.New("tenant is inactive")

	// ErrNoTenantInContext is returned when a tenant is required but absent.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrModuleDisabled is returned when a request targets a module the tenant has not enabled.
	ErrModuleDisabled = errors.New("module is not enabled for tenant")

	// ErrDomainNotFound is returned when a custom domain does not exist for the tenant.
	ErrDomainNotFound = errors.New("domain not found")

	// ErrInvalidDomain is returned for hosts that are not valid DNS names.
	ErrInvalidDomain = errors.New("invalid domain name")

	// ErrInvalidSlug is returned for slugs that are not valid DNS labels.
	ErrInvalidSlug = errors.New("invalid tenant slug")

	// ErrReservedSlug is returned for slugs that collide with platform subdomains.
	ErrReservedSlug = errors.New("tenant slug is reserved")

	// ErrLookupFailed wraps storage failures during host resolution.
	ErrLookupFailed = errors.New("tenant lookup failed")
)
