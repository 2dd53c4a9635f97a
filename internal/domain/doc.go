// Package domain holds the clinic entities that live inside a tenant.
// Tenant-level types are in pkg/tenant.
package domain
