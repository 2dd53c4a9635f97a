package clientip_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/clinickit/pkg/clientip"
)

func TestExtractor_IP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		trusted []string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote addr without port", nil, nil, "192.0.2.1", "192.0.2.1"},
		{"ipv6 remote", nil, nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"untrusted header ignored", nil, map[string]string{"X-Forwarded-For": "198.51.100.9"}, "192.0.2.1:1", "192.0.2.1"},
		{"first valid forwarded entry", clientip.DefaultHeaders, map[string]string{"X-Forwarded-For": "garbage, 198.51.100.9, 10.0.0.1"}, "10.0.0.2:1", "198.51.100.9"},
		{"header priority", clientip.DefaultHeaders, map[string]string{"CF-Connecting-IP": "203.0.113.5", "X-Real-IP": "198.51.100.1"}, "10.0.0.2:1", "203.0.113.5"},
		{"invalid headers fall back", clientip.DefaultHeaders, map[string]string{"X-Real-IP": "not-an-ip"}, "10.0.0.2:1", "10.0.0.2"},
		{"nothing valid", nil, nil, "nonsense", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.New(tt.trusted...).IP(r))
		})
	}
}

func TestExtractor_Middleware(t *testing.T) {
	t.Parallel()

	var ip, ua string
	h := clientip.New().Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _ = clientip.FromContext(r.Context())
		ua, _ = clientip.UserAgentFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.44:1234"
	r.Header.Set("User-Agent", "clinic-app/1.0")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "192.0.2.44", ip)
	assert.Equal(t, "clinic-app/1.0", ua)

	_, ok := clientip.FromContext(context.Background())
	assert.False(t, ok)
}
