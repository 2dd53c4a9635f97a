package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/pkg/audit"
	"github.com/dmitrymomot/clinickit/pkg/limits"
	"github.com/dmitrymomot/clinickit/pkg/logger"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

// DefaultTrialDays applies when the chosen plan defines no trial of its own.
const DefaultTrialDays = 30

// DefaultPlan is assigned when Create is called without a plan.
const DefaultPlan = "basic"

// expireBatch bounds one ExpireSubscriptions round trip.
const expireBatch = 100

// defaultSettings are written for every new clinic.
var defaultSettings = map[string]string{
	"working_days":          "[0,1,2,3,4]",
	"working_hours_start":   "08:00",
	"working_hours_end":     "18:00",
	"appointment_duration":  "50",
	"advance_booking_days":  "30",
	"cancellation_hours":    "24",
	"email_notifications":   "true",
	"reminder_hours_before": "24",
}

// TenantRepository is implemented by *store.TenantStore.
type TenantRepository interface {
	Create(ctx context.Context, t *tenant.Tenant) error
	GetAny(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, f store.TenantFilter) ([]*tenant.Tenant, error)
	Update(ctx context.Context, t *tenant.Tenant) error
	SetStatus(ctx context.Context, id uuid.UUID, status tenant.Status) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
	Lapsed(ctx context.Context, now time.Time, limit int) ([]*tenant.Tenant, error)
}

// DomainRepository is implemented by *store.DomainStore.
type DomainRepository interface {
	Add(ctx context.Context, d *tenant.Domain) error
	List(ctx context.Context, tenantID uuid.UUID) ([]tenant.Domain, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (tenant.Domain, error)
	Primary(ctx context.Context, tenantID uuid.UUID) (tenant.Domain, error)
	SetPrimary(ctx context.Context, tenantID, id uuid.UUID) error
	SetVerified(ctx context.Context, tenantID, id uuid.UUID, verified bool) error
	Remove(ctx context.Context, tenantID, id uuid.UUID) (tenant.Domain, error)
	Hosts(ctx context.Context, tenantID uuid.UUID) ([]string, error)
}

// HostCache forgets cached host lookups; *tenant.Resolver implements it.
type HostCache interface {
	Invalidate(ctx context.Context, hosts ...string)
}

// PlanCatalog is implemented by *limits.Catalog.
type PlanCatalog interface {
	Get(id string) (limits.Plan, error)
}

// DowngradeChecker is satisfied by *limits.Service.
type DowngradeChecker interface {
	CanDowngrade(ctx context.Context, t *tenant.Tenant, target limits.Plan) error
}

// SettingsWriter seeds the settings of new tenants.
type SettingsWriter interface {
	SetSetting(ctx context.Context, tenantID uuid.UUID, key, value string) error
}

// TenantDeps groups the collaborators of TenantService.
type TenantDeps struct {
	Tenants  TenantRepository
	Domains  DomainRepository
	Hosts    HostCache
	Plans    PlanCatalog
	Limits   DowngradeChecker
	Settings SettingsWriter
	Audit    AuditLog
	Logger   *slog.Logger
}

// TenantService manages the clinic lifecycle.
type TenantService struct {
	deps       TenantDeps
	baseDomain string
	useSSL     bool
	now        func() time.Time
}

// TenantOption configures a TenantService.
type TenantOption func(*TenantService)

// WithBaseDomain sets the platform domain tenant subdomains live under.
func WithBaseDomain(domain string, ssl bool) TenantOption {
	return func(s *TenantService) {
		s.baseDomain = tenant.NormalizeHost(domain)
		s.useSSL = ssl
	}
}

// WithTenantClock overrides time.Now; used by tests.
func WithTenantClock(now func() time.Time) TenantOption {
	return func(s *TenantService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTenantService creates a TenantService.
func NewTenantService(deps TenantDeps, opts ...TenantOption) *TenantService {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Audit == nil {
		deps.Audit = nopAudit{}
	}
	s := &TenantService{deps: deps, baseDomain: "localhost", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTenantInput describes a new clinic. Slug and Plan are optional.
type CreateTenantInput struct {
	Name   string `json:"name"`
	Slug   string `json:"slug,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Plan   string `json:"plan,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// Create registers a clinic in trial with the default modules, branding and
// settings, and the limits of its plan.
func (s *TenantService) Create(ctx context.Context, in CreateTenantInput) (*tenant.Tenant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	slug, err := s.slugFor(ctx, name, in.Slug)
	if err != nil {
		return nil, err
	}

	plan, err := s.deps.Plans.Get(cmp.Or(in.Plan, DefaultPlan))
	if err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}

	now := s.now().UTC()
	trialEnd := now.AddDate(0, 0, DefaultTrialDays)
	if plan.TrialDays > 0 {
		trialEnd = plan.TrialEndsAt(now)
	}

	t := &tenant.Tenant{
		ID:             uuid.New(),
		Slug:           slug,
		Name:           name,
		Email:          cmp.Or(strings.ToLower(strings.TrimSpace(in.Email)), "admin@"+slug+".com"),
		Phone:          in.Phone,
		Status:         tenant.StatusTrial,
		IsActive:       true,
		Branding:       tenant.DefaultBranding(),
		EnabledModules: tenant.DefaultModules(),
		Timezone:       "America/Sao_Paulo",
		Language:       "pt-BR",
		TrialEnd:       &trialEnd,
		CreatedAt:      now,
	}
	plan.Apply(t)

	if err := s.deps.Tenants.Create(ctx, t); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}

	tctx := tenant.WithTenant(ctx, t)
	for k, v := range defaultSettings {
		if err := s.deps.Settings.SetSetting(tctx, t.ID, k, v); err != nil {
			s.deps.Logger.LogAttrs(ctx, slog.LevelWarn, "default setting not written",
				logger.TenantID(t.ID), slog.String("key", k), logger.Error(err))
		}
	}

	if in.Domain != "" {
		if _, err := s.AddDomain(tctx, t.ID, in.Domain, false); err != nil {
			return t, err
		}
	}

	s.deps.Logger.LogAttrs(ctx, slog.LevelInfo, "tenant created",
		logger.TenantID(t.ID), logger.TenantSlug(t.Slug), slog.String("plan", t.Plan))
	_ = s.deps.Audit.Info(tctx, "tenant.created", "clinic "+t.Name+" created", audit.WithTenant(t.ID))
	return t, nil
}

func (s *TenantService) slugFor(ctx context.Context, name, requested string) (string, error) {
	if requested == "" {
		slug, err := tenant.GenerateSlug(ctx, name, s.deps.Tenants.SlugExists)
		if err != nil {
			return "", errors.Join(ErrInvalidInput, err)
		}
		return slug, nil
	}

	slug := strings.ToLower(strings.TrimSpace(requested))
	if err := tenant.ValidateSlug(slug); err != nil {
		return "", errors.Join(ErrInvalidInput, err)
	}
	taken, err := s.deps.Tenants.SlugExists(ctx, slug)
	if err != nil {
		return "", err
	}
	if taken {
		return "", ErrSlugTaken
	}
	return slug, nil
}

// Get returns a tenant, soft-deleted ones included.
func (s *TenantService) Get(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	t, err := s.deps.Tenants.GetAny(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, tenant.ErrTenantNotFound
	}
	return t, err
}

// List returns tenants matching f.
func (s *TenantService) List(ctx context.Context, f store.TenantFilter) ([]*tenant.Tenant, error) {
	return s.deps.Tenants.List(ctx, f)
}

// TenantUpdate carries editable tenant fields; nil fields stay unchanged.
type TenantUpdate struct {
	Name           *string          `json:"name,omitempty"`
	Email          *string          `json:"email,omitempty"`
	Phone          *string          `json:"phone,omitempty"`
	Branding       *tenant.Branding `json:"branding,omitempty"`
	EnabledModules []string         `json:"enabled_modules,omitempty"`
	Timezone       *string          `json:"timezone,omitempty"`
	Language       *string          `json:"language,omitempty"`
}

// Update applies u to the tenant. The slug never changes.
func (s *TenantService) Update(ctx context.Context, id uuid.UUID, u TenantUpdate) (*tenant.Tenant, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		t.Name = strings.TrimSpace(*u.Name)
	}
	if u.Email != nil {
		t.Email = strings.ToLower(strings.TrimSpace(*u.Email))
	}
	if u.Phone != nil {
		t.Phone = *u.Phone
	}
	if u.Branding != nil {
		t.Branding = *u.Branding
	}
	if u.EnabledModules != nil {
		t.EnabledModules = u.EnabledModules
	}
	if u.Timezone != nil {
		if _, err := time.LoadLocation(*u.Timezone); err != nil {
			return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, *u.Timezone)
		}
		t.Timezone = *u.Timezone
	}
	if u.Language != nil {
		t.Language = *u.Language
	}

	if err := s.deps.Tenants.Update(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, t)
	return t, nil
}

// UpgradePlan moves the tenant to planID and applies its limits. Moving to
// a smaller plan fails while current usage does not fit.
func (s *TenantService) UpgradePlan(ctx context.Context, id uuid.UUID, planID string) (*tenant.Tenant, error) {
	target, err := s.deps.Plans.Get(planID)
	if err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	downgrade := true
	if current, err := s.deps.Plans.Get(t.Plan); err == nil {
		downgrade = limits.ComparePlans(current, target).IsDowngrade()
	}
	if downgrade {
		if err := s.deps.Limits.CanDowngrade(ctx, t, target); err != nil {
			return nil, err
		}
	}

	previous := t.Plan
	target.Apply(t)
	if err := s.deps.Tenants.Update(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, t)

	s.deps.Logger.LogAttrs(ctx, slog.LevelInfo, "tenant plan changed",
		logger.TenantID(t.ID), slog.String("from", previous), slog.String("to", t.Plan))
	_ = s.deps.Audit.Info(ctx, "tenant.plan_changed", previous+" -> "+t.Plan,
		audit.WithTenant(t.ID), audit.WithExtra("from", previous), audit.WithExtra("to", t.Plan))
	return t, nil
}

// SetStatus changes the subscription status of a tenant.
func (s *TenantService) SetStatus(ctx context.Context, id uuid.UUID, status tenant.Status) (*tenant.Tenant, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Tenants.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	t.Status = status
	s.invalidate(ctx, t)
	_ = s.deps.Audit.Info(ctx, "tenant.status_changed", string(status), audit.WithTenant(id))
	return t, nil
}

// Delete soft-deletes a tenant; it stops resolving immediately.
func (s *TenantService) Delete(ctx context.Context, id uuid.UUID) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deps.Tenants.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, t)
	_ = s.deps.Audit.Warning(ctx, "tenant.deleted", "clinic "+t.Name+" deleted", audit.WithTenant(id))
	return nil
}

// Restore brings back a soft-deleted tenant.
func (s *TenantService) Restore(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	if err := s.deps.Tenants.Restore(ctx, id); err != nil {
		return nil, err
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, t)
	return t, nil
}

// ExpireSubscriptions marks every trial or subscription that ended before
// now as expired and returns how many tenants changed.
func (s *TenantService) ExpireSubscriptions(ctx context.Context) (int, error) {
	now := s.now()
	expired := 0
	for {
		lapsed, err := s.deps.Tenants.Lapsed(ctx, now, expireBatch)
		if err != nil {
			return expired, err
		}
		for _, t := range lapsed {
			if err := s.deps.Tenants.SetStatus(ctx, t.ID, tenant.StatusExpired); err != nil {
				return expired, err
			}
			t.Status = tenant.StatusExpired
			s.invalidate(ctx, t)
			expired++
			s.deps.Logger.LogAttrs(ctx, slog.LevelInfo, "tenant subscription expired",
				logger.TenantID(t.ID), logger.TenantSlug(t.Slug))
			_ = s.deps.Audit.Warning(ctx, "tenant.expired", "subscription expired", audit.WithTenant(t.ID))
		}
		if len(lapsed) < expireBatch {
			return expired, nil
		}
	}
}

// AddDomain registers host for the tenant. Domains stay unroutable until
// verified.
func (s *TenantService) AddDomain(ctx context.Context, tenantID uuid.UUID, host string, verified bool) (tenant.Domain, error) {
	host = tenant.NormalizeHost(host)
	if err := tenant.ValidateDomain(host); err != nil {
		return tenant.Domain{}, errors.Join(ErrInvalidInput, err)
	}
	d := tenant.Domain{TenantID: tenantID, Domain: host, IsVerified: verified, SSLEnabled: s.useSSL}
	if err := s.deps.Domains.Add(ctx, &d); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return tenant.Domain{}, ErrDomainTaken
		}
		return tenant.Domain{}, err
	}
	s.deps.Hosts.Invalidate(ctx, host)
	_ = s.deps.Audit.Info(ctx, "domain.added", host, audit.WithTenant(tenantID))
	return d, nil
}

// Domains lists the custom domains of a tenant.
func (s *TenantService) Domains(ctx context.Context, tenantID uuid.UUID) ([]tenant.Domain, error) {
	return s.deps.Domains.List(ctx, tenantID)
}

// SetPrimaryDomain makes id the tenant's only primary domain. Idempotent.
func (s *TenantService) SetPrimaryDomain(ctx context.Context, tenantID, id uuid.UUID) error {
	err := s.deps.Domains.SetPrimary(ctx, tenantID, id)
	if errors.Is(err, store.ErrNotFound) {
		return tenant.ErrDomainNotFound
	}
	return err
}

// VerifyDomain flags a domain verified, making it routable.
func (s *TenantService) VerifyDomain(ctx context.Context, tenantID, id uuid.UUID, verified bool) (tenant.Domain, error) {
	d, err := s.deps.Domains.Get(ctx, tenantID, id)
	if errors.Is(err, store.ErrNotFound) {
		return d, tenant.ErrDomainNotFound
	}
	if err != nil {
		return d, err
	}
	if err := s.deps.Domains.SetVerified(ctx, tenantID, id, verified); err != nil {
		return d, err
	}
	d.IsVerified = verified
	s.deps.Hosts.Invalidate(ctx, d.Domain)
	return d, nil
}

// RemoveDomain deletes a non-primary domain and evicts it from the
// resolver cache.
func (s *TenantService) RemoveDomain(ctx context.Context, tenantID, id uuid.UUID) error {
	d, err := s.deps.Domains.Remove(ctx, tenantID, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return tenant.ErrDomainNotFound
	case errors.Is(err, store.ErrPrimaryDomain):
		return ErrPrimaryDomain
	case err != nil:
		return err
	}
	s.deps.Hosts.Invalidate(ctx, d.Domain)
	_ = s.deps.Audit.Info(ctx, "domain.removed", d.Domain, audit.WithTenant(tenantID))
	return nil
}

// URL returns the tenant's public base URL followed by path: the primary
// domain when there is one, the platform subdomain otherwise.
func (s *TenantService) URL(ctx context.Context, t *tenant.Tenant, path string) string {
	if d, err := s.deps.Domains.Primary(ctx, t.ID); err == nil {
		return d.URL() + path
	}
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return scheme + "://" + s.subdomain(t) + path
}

func (s *TenantService) subdomain(t *tenant.Tenant) string {
	return t.Slug + "." + s.baseDomain
}

// invalidate drops every cached lookup that may return t.
func (s *TenantService) invalidate(ctx context.Context, t *tenant.Tenant) {
	hosts, err := s.deps.Domains.Hosts(ctx, t.ID)
	if err != nil {
		s.deps.Logger.LogAttrs(ctx, slog.LevelWarn, "tenant hosts not listed for invalidation",
			logger.TenantID(t.ID), logger.Error(err))
	}
	s.deps.Hosts.Invalidate(ctx, append(hosts, s.subdomain(t))...)
}
