// Package settings stores per-tenant string settings, optionally holding
// JSON documents. The tenant comes from the request context; values are
// cached in a cache.KV for an hour by default and refreshed on write.
package settings
