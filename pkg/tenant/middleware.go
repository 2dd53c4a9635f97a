package tenant

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/clinickit/pkg/logger"
)

// Response headers identifying the resolved tenant.
const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderTenantSlug = "X-Tenant-Slug"
)

// HostResolver is satisfied by *Resolver.
type HostResolver interface {
	Resolve(ctx context.Context, host string) (*Tenant, error)
}

// Middleware resolves the tenant from the request host and binds it, with
// its display metadata, to the request context. Unresolvable requests are
// answered by the configured ErrorHandler and never reach next.
//
// The bound values live only as long as the request context, so nothing
// carries over to the next request served by the same goroutine.
func Middleware(resolver HostResolver, opts ...Option) func(http.Handler) http.Handler {
	cfg := newConfig(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			t, err := resolver.Resolve(r.Context(), r.Host)
			if err != nil {
				cfg.logger.LogAttrs(r.Context(), slog.LevelWarn, "tenant resolution failed",
					logger.Host(r.Host),
					slog.String("path", r.URL.Path),
					logger.Error(err),
				)
				cfg.errorHandler(w, r, err)
				return
			}

			ctx := WithDisplay(WithTenant(r.Context(), t), t.Display())

			h := w.Header()
			h.Set(HeaderTenantID, t.ID.String())
			h.Set(HeaderTenantSlug, t.Slug)

			defer func() {
				if rec := recover(); rec != nil {
					if rec != http.ErrAbortHandler {
						cfg.logger.LogAttrs(ctx, slog.LevelError, "panic while serving tenant request",
							logger.TenantID(t.ID),
							logger.TenantSlug(t.Slug),
							slog.String("path", r.URL.Path),
							slog.Any("panic", rec),
						)
					}
					panic(rec)
				}
			}()

			tw := &cacheControlWriter{ResponseWriter: w, slug: t.Slug, maxAge: cfg.cacheMaxAge}
			next.ServeHTTP(tw, r.WithContext(ctx))
		})
	}
}

// RequireTenant rejects requests without a tenant in context. Use it on
// routes mounted outside Middleware's coverage.
func RequireTenant(opts ...Option) func(http.Handler) http.Handler {
	cfg := newConfig(opts...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				cfg.errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireModule rejects requests for tenants that have not enabled module.
func RequireModule(module string, opts ...Option) func(http.Handler) http.Handler {
	cfg := newConfig(opts...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, ok := FromContext(r.Context())
			if !ok {
				cfg.errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			if !t.HasModule(module) {
				cfg.errorHandler(w, r, ErrModuleDisabled)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// cacheControlWriter marks successful responses as privately cacheable and
// scoped to the tenant, so shared caches never mix clinics.
type cacheControlWriter struct {
	http.ResponseWriter
	slug        string
	maxAge      int
	wroteHeader bool
}

func (w *cacheControlWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if code == http.StatusOK {
			h := w.Header()
			h.Set("Cache-Control", TenantCacheControl(h.Get("Cache-Control"), w.slug, w.maxAge))
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *cacheControlWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *cacheControlWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// TenantCacheControl merges a handler-provided Cache-Control value with the
// tenant directives: "private" unless public caching or no-store was asked
// for, a default max-age, and a trailing "tenant=<slug>".
func TenantCacheControl(existing, slug string, maxAge int) string {
	directives := make([]string, 0, 4)
	hasPrivacy, hasMaxAge := false, false
	for d := range strings.SplitSeq(existing, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		name := strings.ToLower(strings.SplitN(d, "=", 2)[0])
		switch name {
		case "private", "public", "no-store":
			hasPrivacy = true
		case "max-age":
			hasMaxAge = true
		case "tenant":
			continue
		}
		directives = append(directives, d)
	}
	if !hasPrivacy {
		directives = append([]string{"private"}, directives...)
	}
	if !hasMaxAge {
		directives = append(directives, "max-age="+strconv.Itoa(maxAge))
	}
	directives = append(directives, "tenant="+slug)
	return strings.Join(directives, ", ")
}
