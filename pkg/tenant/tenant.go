package tenant

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the subscription state of a tenant.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusSuspended, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Routable reports whether requests may be served for a tenant in status s.
func (s Status) Routable() bool {
	return s == StatusTrial || s == StatusActive
}

// Module names a product area a tenant can switch on.
const (
	ModulePatients       = "patients"
	ModuleScheduling     = "scheduling"
	ModuleMedicalRecords = "medical_records"
	ModuleFamilyPortal   = "family_portal"
	ModuleFinancial      = "basic_financial"
	ModuleCommunication  = "communication"
)

// DefaultModules is the module set enabled for new tenants.
func DefaultModules() []string {
	return []string{
		ModulePatients,
		ModuleScheduling,
		ModuleMedicalRecords,
		ModuleFamilyPortal,
		ModuleFinancial,
		ModuleCommunication,
	}
}

// Limits are the per-tenant resource ceilings. A negative value means
// unlimited.
type Limits struct {
	MaxUsers     int64 `json:"max_users"`
	MaxPatients  int64 `json:"max_patients"`
	MaxStorageGB int64 `json:"max_storage_gb"`
}

// Branding is the visual identity applied to tenant-facing pages.
type Branding struct {
	LogoURL        string `json:"logo_url,omitempty"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
}

// DefaultBranding matches the stock clinic theme.
func DefaultBranding() Branding {
	return Branding{PrimaryColor: "#007bff", SecondaryColor: "#6c757d"}
}

// Tenant is a clinic organisation: the isolation boundary for all data.
type Tenant struct {
	ID                uuid.UUID  `json:"id"`
	Slug              string     `json:"slug"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone,omitempty"`
	Plan              string     `json:"plan"`
	Status            Status     `json:"status"`
	IsActive          bool       `json:"is_active"`
	Limits            Limits     `json:"limits"`
	Branding          Branding   `json:"branding"`
	EnabledModules    []string   `json:"enabled_modules"`
	Timezone          string     `json:"timezone"`
	Language          string     `json:"language"`
	TrialEnd          *time.Time `json:"trial_end,omitempty"`
	SubscriptionStart *time.Time `json:"subscription_start,omitempty"`
	SubscriptionEnd   *time.Time `json:"subscription_end,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
}

// Routable reports whether the tenant may serve requests.
func (t *Tenant) Routable() bool {
	return t != nil && t.IsActive && t.DeletedAt == nil && t.Status.Routable()
}

// HasModule reports whether module is enabled for the tenant.
func (t *Tenant) HasModule(module string) bool {
	return t != nil && slices.Contains(t.EnabledModules, module)
}

// SubscriptionLapsed reports whether a trial or paid period ended before now.
func (t *Tenant) SubscriptionLapsed(now time.Time) bool {
	switch t.Status {
	case StatusTrial:
		return t.TrialEnd != nil && t.TrialEnd.Before(now)
	case StatusActive:
		return t.SubscriptionEnd != nil && t.SubscriptionEnd.Before(now)
	}
	return false
}

// Display returns the presentation metadata attached to requests.
func (t *Tenant) Display() Display {
	return Display{
		Name:           t.Name,
		Slug:           t.Slug,
		LogoURL:        t.Branding.LogoURL,
		PrimaryColor:   t.Branding.PrimaryColor,
		SecondaryColor: t.Branding.SecondaryColor,
		Modules:        slices.Clone(t.EnabledModules),
	}
}

// Clone returns a deep copy, so cached tenants can be handed out safely.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	c.EnabledModules = slices.Clone(t.EnabledModules)
	c.TrialEnd = cloneTime(t.TrialEnd)
	c.SubscriptionStart = cloneTime(t.SubscriptionStart)
	c.SubscriptionEnd = cloneTime(t.SubscriptionEnd)
	c.DeletedAt = cloneTime(t.DeletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Display is the tenant metadata templates and clients render with.
type Display struct {
	Name           string   `json:"name"`
	Slug           string   `json:"slug"`
	LogoURL        string   `json:"logo_url,omitempty"`
	PrimaryColor   string   `json:"primary_color"`
	SecondaryColor string   `json:"secondary_color"`
	Modules        []string `json:"modules"`
}

// Domain is a hostname routed to a tenant.
type Domain struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Domain     string    `json:"domain"`
	IsPrimary  bool      `json:"is_primary"`
	IsVerified bool      `json:"is_verified"`
	SSLEnabled bool      `json:"ssl_enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// URL returns the base URL for the domain.
func (d Domain) URL() string {
	if d.SSLEnabled {
		return "https://" + d.Domain
	}
	return "http://" + d.Domain
}
