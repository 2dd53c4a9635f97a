package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/clinickit/pkg/cache"
	"github.com/dmitrymomot/clinickit/pkg/clientip"
	"github.com/dmitrymomot/clinickit/pkg/logger"
	"github.com/dmitrymomot/clinickit/pkg/scope"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

const (
	limiterCapacity = 10_000
	limiterIdleTTL  = 10 * time.Minute
)

// RateLimiter throttles requests per tenant with a token bucket each.
// Requests without a tenant are keyed by client IP.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	limiters *cache.LRU[string, *rate.Limiter]
}

// NewRateLimiter returns nil when rps is not positive; a nil RateLimiter
// passes every request.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    max(burst, 1),
		limiters: cache.NewLRU[string, *rate.Limiter](limiterCapacity),
	}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	if lim, ok := l.limiters.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.limiters.Set(key, lim, limiterIdleTTL)
	return lim
}

// Middleware rejects requests over the bucket of their tenant with 429.
func (l *RateLimiter) Middleware(errs errorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientKey(r)
			if id, ok := tenant.IDFromContext(r.Context()); ok {
				key = "tenant:" + id.String()
			}
			if !l.limiter(key).Allow() {
				w.Header().Set("Retry-After", "1")
				errs.write(w, r, ErrTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if ip, ok := clientip.FromContext(r.Context()); ok && ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// adminOnly requires "Authorization: Bearer <token>" and lifts the request
// into the superuser scope.
func adminOnly(token string, errs errorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				errs.write(w, r, ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(scope.AsSuperuser(r.Context())))
		})
	}
}

// accessLog writes one record per request. The request id comes from the
// logger's context extractors, as does the tenant when accessLog is mounted
// after tenant.Middleware.
func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				logger.Host(r.Host),
				logger.Duration(time.Since(start)),
			)
		})
	}
}
