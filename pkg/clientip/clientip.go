package clientip

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// DefaultHeaders are consulted in order when proxy headers are trusted.
var DefaultHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// Extractor reads the client address of a request.
type Extractor struct {
	headers []string
}

// New returns an Extractor trusting the given proxy headers, in order.
// With no headers only RemoteAddr is used; deploy that way when the
// service is reachable without a proxy in front.
func New(trustedHeaders ...string) *Extractor {
	return &Extractor{headers: trustedHeaders}
}

// IP returns the normalized client IP or "" when none is valid. For
// X-Forwarded-For the first valid entry wins.
func (e *Extractor) IP(r *http.Request) string {
	for _, h := range e.headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		for part := range strings.SplitSeq(v, ",") {
			if ip := parseIP(part); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// Middleware binds the client IP and User-Agent to the request context.
func (e *Extractor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithIP(r.Context(), e.IP(r))
		ctx = WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

type (
	ipKey        struct{}
	userAgentKey struct{}
)

// WithIP returns a copy of ctx carrying the client address.
func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// FromContext returns the client address stored by Middleware.
func FromContext(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(ipKey{}).(string)
	return ip, ok && ip != ""
}

// WithUserAgent returns a copy of ctx carrying the User-Agent.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

// UserAgentFromContext returns the User-Agent stored by Middleware.
func UserAgentFromContext(ctx context.Context) (string, bool) {
	ua, ok := ctx.Value(userAgentKey{}).(string)
	return ua, ok && ua != ""
}
