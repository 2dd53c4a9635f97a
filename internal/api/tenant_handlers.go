package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/clinickit/internal/service"
	"github.com/dmitrymomot/clinickit/pkg/limits"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

type tenantView struct {
	*tenant.Tenant
	URL     string         `json:"url"`
	Display tenant.Display `json:"display"`
}

func (h *handlers) view(r *http.Request, t *tenant.Tenant) tenantView {
	return tenantView{Tenant: t, URL: h.Tenants.URL(r.Context(), t, ""), Display: t.Display()}
}

func (h *handlers) currentTenant(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant.FromContext(r.Context())
	if !ok {
		h.errs.write(w, r, tenant.ErrNoTenantInContext)
		return
	}
	writeData(w, h.view(r, t))
}

func (h *handlers) updateCurrentTenant(w http.ResponseWriter, r *http.Request) {
	id, _ := tenant.IDFromContext(r.Context())
	var in service.TenantUpdate
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	t, err := h.Tenants.Update(r.Context(), id, in)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, h.view(r, t))
}

func (h *handlers) usage(w http.ResponseWriter, r *http.Request) {
	t, _ := tenant.FromContext(r.Context())
	report, err := h.Usage.Report(r.Context(), t)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeDataMeta(w, report, map[string]any{"plan": t.Plan})
}

type limitCheck struct {
	Resource limits.Resource `json:"resource"`
	Allowed  bool            `json:"allowed"`
	limits.Usage
}

// checkLimit reports whether ?amount= more units of the resource fit the
// plan. A refusal is a normal answer here, not an error.
func (h *handlers) checkLimit(w http.ResponseWriter, r *http.Request) {
	t, _ := tenant.FromContext(r.Context())
	res := limits.Resource(chi.URLParam(r, "resource"))

	amount := int64(1)
	if v := r.URL.Query().Get("amount"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.errs.write(w, r, fmt.Errorf("%w: invalid amount", ErrBadRequest))
			return
		}
		amount = n
	}

	u, err := h.Usage.Check(r.Context(), t, res, amount)
	var exceeded *limits.ExceededError
	switch {
	case err == nil:
		writeData(w, limitCheck{Resource: res, Allowed: true, Usage: u})
	case errors.As(err, &exceeded):
		writeData(w, limitCheck{Resource: res, Allowed: false, Usage: exceeded.Usage})
	default:
		h.errs.write(w, r, err)
	}
}

func (h *handlers) currentPlan(w http.ResponseWriter, r *http.Request) {
	t, _ := tenant.FromContext(r.Context())
	p, err := h.Plans.Get(t.Plan)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, p)
}

type planRequest struct {
	Plan string `json:"plan"`
}

func (h *handlers) changePlan(w http.ResponseWriter, r *http.Request) {
	id, _ := tenant.IDFromContext(r.Context())
	h.upgrade(w, r, id)
}

type domainRequest struct {
	Domain   string `json:"domain"`
	Verified bool   `json:"verified,omitempty"`
}

func (h *handlers) listDomains(w http.ResponseWriter, r *http.Request) {
	id, _ := tenant.IDFromContext(r.Context())
	h.domains(w, r, id)
}

// addDomain registers an unverified domain. Verification is an admin step.
func (h *handlers) addDomain(w http.ResponseWriter, r *http.Request) {
	id, _ := tenant.IDFromContext(r.Context())
	var in domainRequest
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	d, err := h.Tenants.AddDomain(r.Context(), id, in.Domain, false)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	created(w, d)
}

func (h *handlers) setPrimaryDomain(w http.ResponseWriter, r *http.Request) {
	id, _ := tenant.IDFromContext(r.Context())
	h.primary(w, r, id)
}

func (h *handlers) removeDomain(w http.ResponseWriter, r *http.Request) {
	id, _ := tenant.IDFromContext(r.Context())
	h.remove(w, r, id)
}

func (h *handlers) listSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.Settings.All(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, all)
}

type settingValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *handlers) getSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, err := h.Settings.Lookup(r.Context(), key)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, settingValue{Key: key, Value: v})
}

func (h *handlers) putSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var in struct {
		Value string `json:"value"`
	}
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.Settings.Set(r.Context(), key, in.Value); err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, settingValue{Key: key, Value: in.Value})
}

func (h *handlers) deleteSetting(w http.ResponseWriter, r *http.Request) {
	if err := h.Settings.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		h.errs.write(w, r, err)
		return
	}
	noContent(w)
}
