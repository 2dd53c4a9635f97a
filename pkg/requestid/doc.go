// Package requestid assigns every HTTP request a correlation id, exposed
// through the X-Request-ID header, the request context and structured logs.
package requestid
