package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/clinickit/internal/api"
	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/internal/service"
	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/pkg/audit"
	"github.com/dmitrymomot/clinickit/pkg/httpserver"
	"github.com/dmitrymomot/clinickit/pkg/jwt"
	"github.com/dmitrymomot/clinickit/pkg/limits"
	"github.com/dmitrymomot/clinickit/pkg/logger"
	"github.com/dmitrymomot/clinickit/pkg/notifications"
	"github.com/dmitrymomot/clinickit/pkg/scope"
	"github.com/dmitrymomot/clinickit/pkg/settings"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

const (
	adminToken = "0123456789abcdef0123456789abcdef"
	jwtSecret  = "fedcba9876543210fedcba9876543210"
	clinicHost = "clinica.clinickit.local"
)

type harness struct {
	handler  http.Handler
	clinic   *tenant.Tenant
	resolver fakeResolver
	tokens   *jwt.Service
	userID   uuid.UUID
	creds    *mockCredentials
	tenants  *mockTenants
	users    *mockUsers
	patients *mockPatients
	logs     *audit.MemoryStorage
}

func newClinic(slug string, status tenant.Status, modules ...string) *tenant.Tenant {
	if modules == nil {
		modules = tenant.DefaultModules()
	}
	return &tenant.Tenant{
		ID:             uuid.New(),
		Slug:           slug,
		Name:           "Clínica " + slug,
		Plan:           "basic",
		Status:         status,
		IsActive:       true,
		Limits:         tenant.Limits{MaxUsers: 5, MaxPatients: 100, MaxStorageGB: 1},
		EnabledModules: modules,
	}
}

func fixed(n int64) limits.CounterFunc {
	return func(context.Context, uuid.UUID) (int64, error) { return n, nil }
}

func newHarness(t *testing.T, configure ...func(*api.Deps)) *harness {
	t.Helper()

	clinic := newClinic("clinica", tenant.StatusActive)
	resolver := fakeResolver{
		clinicHost:               clinic,
		"parada.clinickit.local": newClinic("parada", tenant.StatusSuspended),
		"agenda.clinickit.local": newClinic("agenda", tenant.StatusTrial, tenant.ModuleScheduling),
	}

	reg := limits.NewRegistry()
	reg.Register(limits.ResourceUsers, fixed(5))
	reg.Register(limits.ResourcePatients, fixed(10))
	reg.Register(limits.ResourceStorage, fixed(0))

	catalog, err := limits.NewCatalog(context.Background(), limits.NewMemorySource(limits.DefaultPlans()...))
	require.NoError(t, err)

	tokens, err := jwt.NewFromString(jwtSecret)
	require.NoError(t, err)

	h := &harness{
		clinic:   clinic,
		resolver: resolver,
		tokens:   tokens,
		userID:   uuid.New(),
		creds:    &mockCredentials{},
		tenants:  &mockTenants{},
		users:    &mockUsers{},
		patients: &mockPatients{},
		logs:     audit.NewMemoryStorage(),
	}
	deps := api.Deps{
		Resolver:      resolver,
		Auth:          service.NewAuthService(h.creds, tokens, service.WithAuthBcryptCost(bcrypt.MinCost)),
		Tokens:        tokens,
		Tenants:       h.tenants,
		Users:         h.users,
		Patients:      h.patients,
		Usage:         limits.NewService(reg),
		Plans:         catalog,
		Settings:      settings.NewManager(settings.NewMemoryStore()),
		Notifications: notifications.NewManager(notifications.NewMemoryStorage(), notifications.NoOpDeliverer{}),
		Logs:          audit.NewReader(h.logs),
		AdminToken:    adminToken,
	}
	for _, fn := range configure {
		fn(&deps)
	}
	h.handler = api.NewRouter(deps)
	return h
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Meta  map[string]any   `json:"meta"`
	Error *api.ErrorDetail `json:"error"`
}

func (h *harness) do(t *testing.T, method, host, path string, body any, header ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "http://"+host+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

// api calls a tenant route as an admin of the tenant serving host.
func (h *harness) api(t *testing.T, method, host, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return h.as(t, domain.RoleAdmin, method, host, path, body)
}

func (h *harness) as(t *testing.T, role domain.Role, method, host, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	tenantID := uuid.New()
	if tn, ok := h.resolver[tenant.NormalizeHost(host)]; ok {
		tenantID = tn.ID
	}
	token, _, err := h.tokens.Issue(tenantID, h.userID, string(role))
	require.NoError(t, err)
	return h.do(t, method, host, path, body, "Authorization", "Bearer "+token)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(d *api.Deps) {
		d.Checks = []httpserver.Check{{Name: "postgres", Fn: func(context.Context) error { return errors.New("down") }}}
	})

	rec, _ := h.do(t, http.MethodGet, "anything.example.com", "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "anything.example.com", "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTenantResolution(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	t.Run("unknown host", func(t *testing.T) {
		rec, env := h.api(t, http.MethodGet, "nowhere.clinickit.local", "/api/tenant", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "tenant_not_found", env.Error.Code)
	})

	t.Run("suspended tenant", func(t *testing.T) {
		rec, env := h.api(t, http.MethodGet, "parada.clinickit.local", "/api/tenant", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "tenant_inactive", env.Error.Code)
	})

	t.Run("current tenant", func(t *testing.T) {
		rec, env := h.api(t, http.MethodGet, "Clinica.ClinicKit.local:8443", "/api/tenant", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, h.clinic.ID.String(), rec.Header().Get(tenant.HeaderTenantID))
		assert.Equal(t, "clinica", rec.Header().Get(tenant.HeaderTenantSlug))

		var got struct {
			Slug string `json:"slug"`
			URL  string `json:"url"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, "clinica", got.Slug)
		assert.Equal(t, "https://clinica.clinickit.local", got.URL)
	})

	t.Run("disabled module", func(t *testing.T) {
		rec, env := h.api(t, http.MethodGet, "agenda.clinickit.local", "/api/patients", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "module_disabled", env.Error.Code)
	})

	t.Run("suspended page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://parada.clinickit.local/tenant-suspended", nil)
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "suspended")
	})
}

func TestUsageAndLimits(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec, env := h.api(t, http.MethodGet, clinicHost, "/api/tenant/usage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report map[string]limits.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, limits.Report{Current: 5, Limit: 5, Percentage: 100}, report["users"])
	assert.Equal(t, int64(10), report["patients"].Current)
	assert.Equal(t, "basic", env.Meta["plan"])

	t.Run("refused check is not an error", func(t *testing.T) {
		rec, env := h.api(t, http.MethodGet, clinicHost, "/api/tenant/limits/users?amount=1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got struct {
			Allowed   bool  `json:"allowed"`
			Current   int64 `json:"current"`
			Available int64 `json:"available"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.False(t, got.Allowed)
		assert.Equal(t, int64(5), got.Current)
		assert.Equal(t, int64(0), got.Available)
	})

	t.Run("allowed check", func(t *testing.T) {
		rec, env := h.api(t, http.MethodGet, clinicHost, "/api/tenant/limits/patients?amount=90", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got struct {
			Allowed   bool  `json:"allowed"`
			Available int64 `json:"available"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.True(t, got.Allowed)
		assert.Equal(t, int64(0), got.Available)
	})

	t.Run("bad input", func(t *testing.T) {
		rec, _ := h.api(t, http.MethodGet, clinicHost, "/api/tenant/limits/users?amount=many", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec, env := h.api(t, http.MethodGet, clinicHost, "/api/tenant/limits/rooms", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Code)
	})

	t.Run("current plan", func(t *testing.T) {
		rec, env := h.api(t, http.MethodGet, clinicHost, "/api/tenant/plan", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Data), `"basic"`)
	})
}

func TestPatientLimitExceeded(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	in := service.PatientInput{Name: "Ana", BirthDate: time.Date(2018, 3, 1, 0, 0, 0, 0, time.UTC)}
	h.patients.On("Create", mock.Anything, in).Return(domain.Patient{}, &limits.ExceededError{
		Resource: limits.ResourcePatients,
		Usage:    limits.Usage{Current: 100, Limit: 100, Requested: 1, Available: 0},
	}).Once()

	rec, env := h.api(t, http.MethodPost, clinicHost, "/api/patients", in)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "limit_exceeded", env.Error.Code)
	assert.Equal(t, "patients", env.Meta["resource"])
	usage, ok := env.Meta["usage"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 100, usage["limit"], 0)
	h.patients.AssertExpectations(t)
}

func TestPatientRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	id := uuid.New()
	h.patients.On("List", mock.Anything, store.PatientFilter{
		Visibility: scope.All, Status: domain.PatientActive, Search: "ana", Limit: 10, Offset: 0,
	}).Return([]domain.Patient{{ID: id, Name: "Ana"}}, nil).Once()
	h.patients.On("Get", mock.Anything, id, false).Return(domain.Patient{}, store.ErrNotFound).Once()
	h.patients.On("Delete", mock.Anything, id).Return(nil).Once()

	rec, env := h.api(t, http.MethodGet, clinicHost, "/api/patients?deleted=include&status=active&q=ana&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), id.String())

	rec, env = h.api(t, http.MethodGet, clinicHost, "/api/patients/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)

	rec, _ = h.api(t, http.MethodDelete, clinicHost, "/api/patients/"+id.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = h.api(t, http.MethodGet, clinicHost, "/api/patients/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.api(t, http.MethodGet, clinicHost, "/api/patients?deleted=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.patients.AssertExpectations(t)
}

func TestUserRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	in := service.CreateUserInput{Email: "ana@clinica.com", Name: "Ana", Role: domain.RoleTherapist, Password: "supersecret"}
	h.users.On("Create", mock.Anything, in).Return(domain.User{ID: uuid.New(), Email: in.Email, PasswordHash: "hash"}, nil).Once()
	h.users.On("List", mock.Anything, scope.Live, 50, 0).Return([]domain.User{}, nil).Once()

	rec, env := h.api(t, http.MethodPost, clinicHost, "/api/users", in)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, string(env.Data), "hash")

	rec, _ = h.api(t, http.MethodGet, clinicHost, "/api/users", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = h.api(t, http.MethodPost, clinicHost, "/api/users", map[string]any{"email": "x@y.com", "admin": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
	assert.Equal(t, "bad_request", env.Error.Code)

	rec, env = h.as(t, domain.RoleTherapist, http.MethodPost, clinicHost, "/api/users", in)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Error.Code)

	rec, _ = h.do(t, http.MethodGet, clinicHost, "/api/users", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	h.users.AssertExpectations(t)
}

func TestSettingsRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec, env := h.api(t, http.MethodGet, clinicHost, "/api/tenant/settings/working_hours_start", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)

	rec, _ = h.api(t, http.MethodPut, clinicHost, "/api/tenant/settings/working_hours_start", map[string]string{"value": "07:30"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = h.api(t, http.MethodGet, clinicHost, "/api/tenant/settings/working_hours_start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"working_hours_start","value":"07:30"}`, string(env.Data))

	rec, env = h.api(t, http.MethodGet, "agenda.clinickit.local", "/api/tenant/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, string(env.Data), "settings never leak across tenants")

	rec, _ = h.api(t, http.MethodDelete, clinicHost, "/api/tenant/settings/working_hours_start", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNotificationRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	recipient := uuid.New()

	rec, _ := h.api(t, http.MethodPost, clinicHost, "/api/notifications", map[string]any{
		"recipient_id": recipient, "title": "Sessão amanhã", "message": "Lembrete",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = h.api(t, http.MethodPost, clinicHost, "/api/notifications", map[string]any{"title": "no recipient"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, env := h.api(t, http.MethodGet, clinicHost, "/api/notifications/unread-count?recipient_id="+recipient.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unread":1}`, string(env.Data))

	rec, env = h.api(t, http.MethodPost, clinicHost, "/api/notifications/read", map[string]any{"recipient_id": uuid.New()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":0}`, string(env.Data), "other recipients are untouched")

	rec, env = h.api(t, http.MethodPost, clinicHost, "/api/notifications/read", map[string]any{"recipient_id": recipient})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":1}`, string(env.Data))
}

func TestTenantLogs(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	other := uuid.New()
	ctx := context.Background()
	require.NoError(t, h.logs.Store(ctx, audit.Entry{ID: uuid.New(), TenantID: &h.clinic.ID, Level: audit.LevelInfo, Action: "patient.created", CreatedAt: time.Now()}))
	require.NoError(t, h.logs.Store(ctx, audit.Entry{ID: uuid.New(), TenantID: &other, Level: audit.LevelInfo, Action: "patient.created", CreatedAt: time.Now()}))

	rec, env := h.api(t, http.MethodGet, clinicHost, "/api/logs?level=info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []audit.Entry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, h.clinic.ID, *entries[0].TenantID)

	rec, _ = h.api(t, http.MethodGet, clinicHost, "/api/logs?level=loud", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	auth := []string{"Authorization", "Bearer " + adminToken}

	t.Run("requires token", func(t *testing.T) {
		rec, env := h.do(t, http.MethodGet, "admin.clinickit.local", "/admin/tenants", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", env.Error.Code)

		rec, _ = h.do(t, http.MethodGet, "admin.clinickit.local", "/admin/tenants", nil, "Authorization", "Bearer wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("runs as superuser", func(t *testing.T) {
		superuser := mock.MatchedBy(func(ctx context.Context) bool { return scope.IsSuperuser(ctx) })
		h.tenants.On("List", superuser, store.TenantFilter{Visibility: scope.Live, Limit: 50}).
			Return([]*tenant.Tenant{h.clinic}, nil).Once()

		rec, env := h.do(t, http.MethodGet, "admin.clinickit.local", "/admin/tenants", nil, auth...)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Data), h.clinic.ID.String())
	})

	t.Run("create tenant", func(t *testing.T) {
		in := service.CreateTenantInput{Name: "Clínica Nova"}
		h.tenants.On("Create", mock.Anything, in).Return(newClinic("clinica-nova", tenant.StatusTrial), nil).Once()

		rec, env := h.do(t, http.MethodPost, "admin.clinickit.local", "/admin/tenants", in, auth...)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, string(env.Data), `"url":"https://clinica-nova.clinickit.local"`)
	})

	t.Run("downgrade refused", func(t *testing.T) {
		id := uuid.New()
		h.tenants.On("UpgradePlan", mock.Anything, id, "basic").
			Return(nil, errors.Join(limits.ErrDowngradeNotPossible, errors.New("users: 12 > 5"))).Once()

		rec, env := h.do(t, http.MethodPut, "admin.clinickit.local", "/admin/tenants/"+id.String()+"/plan",
			map[string]string{"plan": "basic"}, auth...)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "downgrade_not_possible", env.Error.Code)
	})

	t.Run("remove primary domain", func(t *testing.T) {
		tenantID, domainID := uuid.New(), uuid.New()
		h.tenants.On("RemoveDomain", mock.Anything, tenantID, domainID).Return(service.ErrPrimaryDomain).Once()

		rec, env := h.do(t, http.MethodDelete, "admin.clinickit.local",
			"/admin/tenants/"+tenantID.String()+"/domains/"+domainID.String(), nil, auth...)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "conflict", env.Error.Code)
	})

	t.Run("plans", func(t *testing.T) {
		rec, env := h.do(t, http.MethodGet, "admin.clinickit.local", "/admin/plans", nil, auth...)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Data), "enterprise")
	})
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(d *api.Deps) { d.AdminToken = "" })

	rec, _ := h.do(t, http.MethodGet, "admin.clinickit.local", "/admin/tenants", nil, "Authorization", "Bearer ")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(d *api.Deps) { d.RateLimiter = api.NewRateLimiter(0.001, 2) })

	for range 2 {
		rec, _ := h.api(t, http.MethodGet, clinicHost, "/api/tenant", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, env := h.api(t, http.MethodGet, clinicHost, "/api/tenant", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too_many_requests", env.Error.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec, _ = h.api(t, http.MethodGet, "agenda.clinickit.local", "/api/tenant", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "buckets are per tenant")
}

func TestAuth(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	ana := domain.User{ID: h.userID, TenantID: h.clinic.ID, Email: "ana@clinica.com", Name: "Ana", Role: domain.RoleManager, PasswordHash: string(hash), IsActive: true}
	inClinic := mock.MatchedBy(func(ctx context.Context) bool {
		id, ok := tenant.IDFromContext(ctx)
		return ok && id == h.clinic.ID
	})
	h.creds.On("GetByEmail", inClinic, "ana@clinica.com").Return(ana, nil)
	h.creds.On("GetByEmail", mock.Anything, "ghost@clinica.com").Return(domain.User{}, store.ErrNotFound)
	h.creds.On("TouchLogin", inClinic, ana.ID, mock.Anything).Return(nil)
	h.users.On("Get", mock.Anything, ana.ID, false).Return(ana, nil)

	t.Run("login and me", func(t *testing.T) {
		rec, env := h.do(t, http.MethodPost, clinicHost, "/api/auth/login",
			service.LoginInput{Email: "ana@clinica.com", Password: "correct-horse"})
		require.Equal(t, http.StatusOK, rec.Code)
		var sess struct {
			Token     string `json:"token"`
			TokenType string `json:"token_type"`
			User      struct {
				ID uuid.UUID `json:"id"`
			} `json:"user"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &sess))
		assert.Equal(t, "Bearer", sess.TokenType)
		assert.Equal(t, ana.ID, sess.User.ID)
		assert.NotContains(t, string(env.Data), "password")

		claims, err := h.tokens.Parse(sess.Token)
		require.NoError(t, err)
		assert.Equal(t, h.clinic.ID, claims.TenantID)
		assert.Equal(t, "manager", claims.Role)

		rec, env = h.do(t, http.MethodGet, clinicHost, "/api/auth/me", nil, "Authorization", "Bearer "+sess.Token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Data), "ana@clinica.com")
	})

	t.Run("wrong password", func(t *testing.T) {
		rec, env := h.do(t, http.MethodPost, clinicHost, "/api/auth/login",
			service.LoginInput{Email: "ana@clinica.com", Password: "battery-staple"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", env.Error.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		rec, env := h.do(t, http.MethodPost, clinicHost, "/api/auth/login",
			service.LoginInput{Email: "ghost@clinica.com", Password: "correct-horse"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", env.Error.Code)
	})

	t.Run("suspended tenant cannot log in", func(t *testing.T) {
		rec, env := h.do(t, http.MethodPost, "parada.clinickit.local", "/api/auth/login",
			service.LoginInput{Email: "ana@clinica.com", Password: "correct-horse"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "tenant_inactive", env.Error.Code)
	})

	t.Run("tenant routes require a token", func(t *testing.T) {
		for _, path := range []string{"/api/tenant", "/api/users", "/api/patients", "/api/notifications", "/api/auth/me"} {
			rec, env := h.do(t, http.MethodGet, clinicHost, path, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
			require.NotNil(t, env.Error, path)
			assert.Equal(t, "unauthorized", env.Error.Code, path)
		}
	})

	t.Run("token of another clinic", func(t *testing.T) {
		agenda := h.resolver["agenda.clinickit.local"]
		token, _, err := h.tokens.Issue(agenda.ID, h.userID, string(domain.RoleAdmin))
		require.NoError(t, err)

		rec, env := h.do(t, http.MethodGet, clinicHost, "/api/tenant", nil, "Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", env.Error.Code)
	})

	t.Run("token signed with another key", func(t *testing.T) {
		other, err := jwt.NewFromString(adminToken)
		require.NoError(t, err)
		token, _, err := other.Issue(h.clinic.ID, h.userID, string(domain.RoleAdmin))
		require.NoError(t, err)

		rec, _ := h.do(t, http.MethodGet, clinicHost, "/api/tenant", nil, "Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		old, err := jwt.NewFromString(jwtSecret, jwt.WithTTL(time.Minute),
			jwt.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
		require.NoError(t, err)
		token, _, err := old.Issue(h.clinic.ID, h.userID, string(domain.RoleAdmin))
		require.NoError(t, err)

		rec, _ := h.do(t, http.MethodGet, clinicHost, "/api/tenant", nil, "Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("staff role required for tenant changes", func(t *testing.T) {
		rec, env := h.as(t, domain.RoleReceptionist, http.MethodPut, clinicHost, "/api/tenant/settings/theme", map[string]string{"value": "dark"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "forbidden", env.Error.Code)

		rec, _ = h.as(t, domain.RoleReceptionist, http.MethodGet, clinicHost, "/api/tenant/settings", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAccessLogCarriesTenant(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithFormat(logger.FormatJSON),
		logger.WithContextExtractors(tenant.LoggerExtractor()),
	)
	h := newHarness(t, func(d *api.Deps) { d.Logger = log })

	rec, _ := h.api(t, http.MethodGet, clinicHost, "/api/tenant", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	found := false
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var record struct {
			Msg    string `json:"msg"`
			Path   string `json:"path"`
			Tenant struct {
				Slug string `json:"slug"`
			} `json:"tenant"`
		}
		require.NoError(t, json.Unmarshal(line, &record))
		if record.Msg == "http request" && record.Path == "/api/tenant" {
			found = true
			assert.Equal(t, "clinica", record.Tenant.Slug)
		}
	}
	assert.True(t, found, "access log record written")
}
