package jwt

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// TokenExtractorFunc pulls a raw token out of a request.
type TokenExtractorFunc func(r *http.Request) (string, error)

// SkipFunc reports whether a request bypasses authentication.
type SkipFunc func(r *http.Request) bool

// VerifyFunc checks parsed claims against the request.
type VerifyFunc func(r *http.Request, c Claims) error

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type middlewareConfig struct {
	extractor TokenExtractorFunc
	skip      SkipFunc
	verifiers []VerifyFunc
	onError   ErrorHandler
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithExtractor replaces BearerTokenExtractor.
func WithExtractor(fn TokenExtractorFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.extractor = fn
		}
	}
}

// WithSkip lets matching requests through unauthenticated.
func WithSkip(fn SkipFunc) MiddlewareOption {
	return func(c *middlewareConfig) { c.skip = fn }
}

// WithVerifier adds a claims check run after the signature is verified.
func WithVerifier(fn VerifyFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.verifiers = append(c.verifiers, fn)
		}
	}
}

// WithErrorHandler replaces the plain-text 401 response.
func WithErrorHandler(fn ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.onError = fn
		}
	}
}

// Middleware authenticates requests with tokens issued by svc and stores
// the claims in the request context.
func Middleware(svc *Service, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{
		extractor: BearerTokenExtractor,
		onError: func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skip != nil && cfg.skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			token, err := cfg.extractor(r)
			if err != nil {
				cfg.onError(w, r, err)
				return
			}
			claims, err := svc.Parse(token)
			if err != nil {
				cfg.onError(w, r, err)
				return
			}
			for _, verify := range cfg.verifiers {
				if err := verify(r, claims); err != nil {
					cfg.onError(w, r, err)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// MatchTenant rejects tokens whose tenant differs from the one bound to the
// request context, e.g. by tenant.Middleware.
func MatchTenant(current func(ctx context.Context) (uuid.UUID, bool)) VerifyFunc {
	return func(r *http.Request, c Claims) error {
		id, ok := current(r.Context())
		if !ok || id != c.TenantID {
			return ErrTenantMismatch
		}
		return nil
	}
}

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

// CookieTokenExtractor reads the token from the named cookie.
func CookieTokenExtractor(name string) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return "", ErrMissingToken
		}
		return c.Value, nil
	}
}
