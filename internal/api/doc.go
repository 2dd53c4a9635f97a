// Package api exposes the clinic services over HTTP.
//
// Routes under /api are resolved to a tenant by request host and operate
// inside that tenant's scope. Routes under /admin require the admin bearer
// token and run with a superuser context. Every JSON response uses the
// Response envelope:
//
//	{"data": ..., "meta": {...}}
//	{"error": {"code": "limit_exceeded", "message": "..."}, "meta": {...}}
package api
