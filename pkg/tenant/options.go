package tenant

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/dmitrymomot/clinickit/pkg/logger"
)

// DefaultSuspendedPath is where browser traffic for inactive tenants is sent.
const DefaultSuspendedPath = "/tenant-suspended"

// DefaultCacheMaxAge is the max-age applied to successful tenant responses.
const DefaultCacheMaxAge = 300

// ErrorHandler writes the response for a failed resolution or guard.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Option configures Middleware, RequireTenant and RequireModule.
type Option func(*config)

type config struct {
	skipPaths     []string
	suspendedPath string
	cacheMaxAge   int
	logger        *slog.Logger
	errorHandler  ErrorHandler
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		suspendedPath: DefaultSuspendedPath,
		cacheMaxAge:   DefaultCacheMaxAge,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.errorHandler == nil {
		cfg.errorHandler = DefaultErrorHandler(cfg.suspendedPath)
	}
	return cfg
}

// WithSkipPaths bypasses resolution for requests whose path starts with any
// of the prefixes (health checks, metrics, admin).
func WithSkipPaths(prefixes ...string) Option {
	return func(c *config) { c.skipPaths = append(c.skipPaths, prefixes...) }
}

// WithSuspendedPath sets the suspension notice path used by the default
// error handler. The path itself is never resolved.
func WithSuspendedPath(path string) Option {
	return func(c *config) {
		if path != "" {
			c.suspendedPath = path
		}
	}
}

// WithCacheMaxAge overrides DefaultCacheMaxAge.
func WithCacheMaxAge(seconds int) Option {
	return func(c *config) {
		if seconds >= 0 {
			c.cacheMaxAge = seconds
		}
	}
}

// WithLogger sets the middleware logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithErrorHandler replaces DefaultErrorHandler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) { c.errorHandler = h }
}

func (c *config) skip(path string) bool {
	if path == c.suspendedPath {
		return true
	}
	for _, p := range c.skipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// IsAPIRequest reports whether r expects a machine-readable response: an
// /api/ path, a JSON body or a JSON Accept header.
func IsAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt == "application/json" {
			return true
		}
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DefaultErrorHandler answers API requests with JSON and browsers with plain
// text, redirecting browsers of inactive tenants to suspendedPath.
func DefaultErrorHandler(suspendedPath string) ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		status, body := classify(err)

		if IsAPIRequest(r) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(body)
			return
		}

		if errors.Is(err, ErrInactiveTenant) {
			http.Redirect(w, r, suspendedPath, http.StatusFound)
			return
		}
		http.Error(w, body.Error, status)
	}
}

func classify(err error) (int, errorBody) {
	switch {
	case errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrNoTenantInContext):
		return http.StatusNotFound, errorBody{
			Error:   "Tenant not found",
			Message: "No clinic is configured for this address.",
		}
	case errors.Is(err, ErrInactiveTenant):
		return http.StatusForbidden, errorBody{
			Error:   "Tenant inactive",
			Message: "This clinic account is suspended or its subscription has ended.",
		}
	case errors.Is(err, ErrModuleDisabled):
		return http.StatusForbidden, errorBody{
			Error:   "Module disabled",
			Message: "This feature is not enabled for the clinic.",
		}
	default:
		return http.StatusInternalServerError, errorBody{
			Error:   "Tenant resolution failed",
			Message: "Please try again later.",
		}
	}
}
