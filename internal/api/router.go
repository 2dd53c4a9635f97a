package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/internal/metrics"
	"github.com/dmitrymomot/clinickit/internal/service"
	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/pkg/audit"
	"github.com/dmitrymomot/clinickit/pkg/clientip"
	"github.com/dmitrymomot/clinickit/pkg/httpserver"
	"github.com/dmitrymomot/clinickit/pkg/jwt"
	"github.com/dmitrymomot/clinickit/pkg/limits"
	"github.com/dmitrymomot/clinickit/pkg/logger"
	"github.com/dmitrymomot/clinickit/pkg/notifications"
	"github.com/dmitrymomot/clinickit/pkg/requestid"
	"github.com/dmitrymomot/clinickit/pkg/scope"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

// Tenants is implemented by *service.TenantService.
type Tenants interface {
	Create(ctx context.Context, in service.CreateTenantInput) (*tenant.Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	List(ctx context.Context, f store.TenantFilter) ([]*tenant.Tenant, error)
	Update(ctx context.Context, id uuid.UUID, u service.TenantUpdate) (*tenant.Tenant, error)
	UpgradePlan(ctx context.Context, id uuid.UUID, planID string) (*tenant.Tenant, error)
	SetStatus(ctx context.Context, id uuid.UUID, status tenant.Status) (*tenant.Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	AddDomain(ctx context.Context, tenantID uuid.UUID, host string, verified bool) (tenant.Domain, error)
	Domains(ctx context.Context, tenantID uuid.UUID) ([]tenant.Domain, error)
	SetPrimaryDomain(ctx context.Context, tenantID, id uuid.UUID) error
	VerifyDomain(ctx context.Context, tenantID, id uuid.UUID, verified bool) (tenant.Domain, error)
	RemoveDomain(ctx context.Context, tenantID, id uuid.UUID) error
	URL(ctx context.Context, t *tenant.Tenant, path string) string
}

// Users is implemented by *service.UserService.
type Users interface {
	Create(ctx context.Context, in service.CreateUserInput) (domain.User, error)
	Get(ctx context.Context, id uuid.UUID, withDeleted bool) (domain.User, error)
	List(ctx context.Context, v scope.Visibility, limit, offset int) ([]domain.User, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
}

// Patients is implemented by *service.PatientService.
type Patients interface {
	Create(ctx context.Context, in service.PatientInput) (domain.Patient, error)
	Get(ctx context.Context, id uuid.UUID, withDeleted bool) (domain.Patient, error)
	List(ctx context.Context, f store.PatientFilter) ([]domain.Patient, error)
	Update(ctx context.Context, id uuid.UUID, in service.PatientInput) (domain.Patient, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
}

// Usage is implemented by *limits.Service.
type Usage interface {
	Check(ctx context.Context, t *tenant.Tenant, res limits.Resource, additional int64) (limits.Usage, error)
	Report(ctx context.Context, t *tenant.Tenant) (map[limits.Resource]limits.Report, error)
}

// Plans is implemented by *limits.Catalog.
type Plans interface {
	Get(id string) (limits.Plan, error)
	List() []limits.Plan
}

// Settings is implemented by *settings.Manager.
type Settings interface {
	Lookup(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]string, error)
}

// Notifications is implemented by *notifications.Manager.
type Notifications interface {
	Send(ctx context.Context, n notifications.Notification) (notifications.Notification, error)
	Get(ctx context.Context, id uuid.UUID) (notifications.Notification, error)
	List(ctx context.Context, f notifications.Filter) ([]notifications.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, recipient *uuid.UUID, ids ...uuid.UUID) (int64, error)
}

// Auth is implemented by *service.AuthService.
type Auth interface {
	Login(ctx context.Context, in service.LoginInput) (service.Session, error)
}

// Logs is implemented by *audit.Reader.
type Logs interface {
	Find(ctx context.Context, c audit.Criteria) ([]audit.Entry, error)
}

// Deps are the collaborators of the router. Metrics, Gatherer and
// RateLimiter are optional. Tokens verifies the bearer tokens required on
// every /api route except /api/auth/login.
type Deps struct {
	Resolver      tenant.HostResolver
	Auth          Auth
	Tokens        *jwt.Service
	Tenants       Tenants
	Users         Users
	Patients      Patients
	Usage         Usage
	Plans         Plans
	Settings      Settings
	Notifications Notifications
	Logs          Logs

	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	RateLimiter *RateLimiter
	ClientIP    *clientip.Extractor
	Checks      []httpserver.Check

	AdminToken       string
	SuspendedPath    string
	CacheMaxAge      int
	ReadinessTimeout time.Duration
}

type handlers struct {
	Deps
	errs errorWriter
}

// NewRouter wires every route.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.SuspendedPath == "" {
		d.SuspendedPath = tenant.DefaultSuspendedPath
	}
	if d.CacheMaxAge == 0 {
		d.CacheMaxAge = tenant.DefaultCacheMaxAge
	}
	if d.ReadinessTimeout == 0 {
		d.ReadinessTimeout = 3 * time.Second
	}
	if d.ClientIP == nil {
		d.ClientIP = clientip.New()
	}
	h := &handlers{Deps: d, errs: errorWriter{log: d.Logger}}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(d.ClientIP.Middleware)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) { h.errs.write(w, r, ErrNotFound) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: &ErrorDetail{Code: "method_not_allowed"}})
	})

	r.Group(func(r chi.Router) {
		r.Use(accessLog(d.Logger))
		r.Get("/healthz", httpserver.LivenessHandler())
		r.Get("/readyz", httpserver.ReadinessHandler(d.Logger, d.ReadinessTimeout, d.Checks...))
		if d.Gatherer != nil {
			r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
		}
		r.Get(d.SuspendedPath, h.suspended)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(tenant.Middleware(d.Resolver,
			tenant.WithSuspendedPath(d.SuspendedPath),
			tenant.WithCacheMaxAge(d.CacheMaxAge),
			tenant.WithLogger(d.Logger),
			tenant.WithErrorHandler(h.errs.write),
		))
		r.Use(accessLog(d.Logger))
		r.Use(d.RateLimiter.Middleware(h.errs))

		r.Post("/auth/login", h.login)
		r.Group(func(r chi.Router) {
			r.Use(jwt.Middleware(d.Tokens,
				jwt.WithVerifier(jwt.MatchTenant(tenant.IDFromContext)),
				jwt.WithErrorHandler(h.authError),
			))
			r.Get("/auth/me", h.me)
			h.tenantRoutes(r)
		})
	})

	if d.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(accessLog(d.Logger))
			r.Use(adminOnly(d.AdminToken, h.errs))
			h.adminRoutes(r)
		})
	}

	return r
}

func (h *handlers) tenantRoutes(r chi.Router) {
	staff := requireRole(h.errs, domain.RoleAdmin, domain.RoleManager)

	r.Route("/tenant", func(r chi.Router) {
		r.Get("/", h.currentTenant)
		r.With(staff).Patch("/", h.updateCurrentTenant)
		r.Get("/usage", h.usage)
		r.Get("/limits/{resource}", h.checkLimit)
		r.Get("/plan", h.currentPlan)
		r.With(staff).Put("/plan", h.changePlan)

		r.Get("/domains", h.listDomains)
		r.With(staff).Post("/domains", h.addDomain)
		r.With(staff).Put("/domains/{id}/primary", h.setPrimaryDomain)
		r.With(staff).Delete("/domains/{id}", h.removeDomain)

		r.Get("/settings", h.listSettings)
		r.Get("/settings/{key}", h.getSetting)
		r.With(staff).Put("/settings/{key}", h.putSetting)
		r.With(staff).Delete("/settings/{key}", h.deleteSetting)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.With(staff).Post("/", h.createUser)
		r.Get("/{id}", h.getUser)
		r.With(staff).Delete("/{id}", h.deactivateUser)
		r.With(staff).Post("/{id}/restore", h.restoreUser)
	})

	r.Route("/patients", func(r chi.Router) {
		r.Use(tenant.RequireModule(tenant.ModulePatients, tenant.WithErrorHandler(h.errs.write)))
		r.Get("/", h.listPatients)
		r.Post("/", h.createPatient)
		r.Get("/{id}", h.getPatient)
		r.Put("/{id}", h.updatePatient)
		r.Delete("/{id}", h.deletePatient)
		r.Post("/{id}/restore", h.restorePatient)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.listNotifications)
		r.Post("/", h.sendNotification)
		r.Get("/unread-count", h.unreadCount)
		r.Post("/read", h.markRead)
		r.Get("/{id}", h.getNotification)
	})

	r.With(staff).Get("/logs", h.tenantLogs)
}

func (h *handlers) adminRoutes(r chi.Router) {
	r.Get("/plans", h.listPlans)
	r.Get("/logs", h.adminLogs)

	r.Route("/tenants", func(r chi.Router) {
		r.Get("/", h.adminListTenants)
		r.Post("/", h.adminCreateTenant)
		r.Route("/{tenantID}", func(r chi.Router) {
			r.Get("/", h.withTenantID(h.adminGetTenant))
			r.Patch("/", h.withTenantID(h.adminUpdateTenant))
			r.Delete("/", h.withTenantID(h.adminDeleteTenant))
			r.Post("/restore", h.withTenantID(h.adminRestoreTenant))
			r.Put("/status", h.withTenantID(h.adminSetStatus))
			r.Put("/plan", h.withTenantID(h.upgrade))
			r.Get("/domains", h.withTenantID(h.domains))
			r.Post("/domains", h.withTenantID(h.adminAddDomain))
			r.Put("/domains/{id}/primary", h.withTenantID(h.primary))
			r.Put("/domains/{id}/verified", h.withTenantID(h.adminVerifyDomain))
			r.Delete("/domains/{id}", h.withTenantID(h.remove))
		})
	})
}

// authError answers rejected tokens with 401 and records why.
func (h *handlers) authError(w http.ResponseWriter, r *http.Request, err error) {
	h.Logger.LogAttrs(r.Context(), slog.LevelInfo, "request not authenticated",
		slog.String("path", r.URL.Path), logger.Error(err))
	h.errs.write(w, r, err)
}

func (h *handlers) suspended(w http.ResponseWriter, r *http.Request) {
	if tenant.IsAPIRequest(r) {
		writeJSON(w, http.StatusForbidden, Response{Error: &ErrorDetail{
			Code:    "tenant_inactive",
			Message: "This clinic account is suspended or its subscription has ended.",
		}})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte("This clinic account is suspended or its subscription has ended.\n"))
}
