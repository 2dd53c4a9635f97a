// Package store is the PostgreSQL persistence layer. Tenant-owned tables go
// through pkg/scope, so every query carries the tenant predicate of the
// request context and hides soft-deleted rows unless asked otherwise.
// Tenants and domains are platform tables; TenantStore implements
// tenant.Directory for host resolution.
package store
