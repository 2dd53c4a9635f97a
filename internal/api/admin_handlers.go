package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/internal/service"
	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/pkg/audit"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

func (h *handlers) listPlans(w http.ResponseWriter, _ *http.Request) {
	writeData(w, h.Plans.List())
}

func (h *handlers) adminListTenants(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	v, err := visibility(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	status := tenant.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		h.errs.write(w, r, service.ErrInvalidStatus)
		return
	}
	list, err := h.Tenants.List(r.Context(), store.TenantFilter{Status: status, Visibility: v, Limit: limit, Offset: offset})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeDataMeta(w, list, map[string]any{"limit": limit, "offset": offset})
}

func (h *handlers) adminCreateTenant(w http.ResponseWriter, r *http.Request) {
	var in service.CreateTenantInput
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	t, err := h.Tenants.Create(r.Context(), in)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	created(w, h.view(r, t))
}

// withTenantID parses {tenantID} and hands it to fn.
func (h *handlers) withTenantID(fn func(w http.ResponseWriter, r *http.Request, id uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "tenantID")
		if err != nil {
			h.errs.write(w, r, err)
			return
		}
		fn(w, r, id)
	}
}

func (h *handlers) adminGetTenant(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	t, err := h.Tenants.Get(r.Context(), id)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, h.view(r, t))
}

func (h *handlers) adminUpdateTenant(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
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

func (h *handlers) adminDeleteTenant(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.Tenants.Delete(r.Context(), id); err != nil {
		h.errs.write(w, r, err)
		return
	}
	noContent(w)
}

func (h *handlers) adminRestoreTenant(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	t, err := h.Tenants.Restore(r.Context(), id)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, h.view(r, t))
}

func (h *handlers) adminSetStatus(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var in struct {
		Status tenant.Status `json:"status"`
	}
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	t, err := h.Tenants.SetStatus(r.Context(), id, in.Status)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, h.view(r, t))
}

func (h *handlers) adminAddDomain(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var in domainRequest
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	d, err := h.Tenants.AddDomain(r.Context(), id, in.Domain, in.Verified)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	created(w, d)
}

func (h *handlers) adminVerifyDomain(w http.ResponseWriter, r *http.Request, tenantID uuid.UUID) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var in struct {
		Verified bool `json:"verified"`
	}
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	d, err := h.Tenants.VerifyDomain(r.Context(), tenantID, id, in.Verified)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, d)
}

// adminLogs queries the system log across tenants; ?tenant_id narrows it.
func (h *handlers) adminLogs(w http.ResponseWriter, r *http.Request) {
	c, err := logCriteria(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if v := r.URL.Query().Get("tenant_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			h.errs.write(w, r, ErrBadRequest)
			return
		}
		c.TenantID = &id
	}
	h.findLogs(w, r, c)
}

// Helpers shared by the tenant and admin routes.

func (h *handlers) upgrade(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var in planRequest
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	t, err := h.Tenants.UpgradePlan(r.Context(), id, in.Plan)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, h.view(r, t))
}

func (h *handlers) domains(w http.ResponseWriter, r *http.Request, tenantID uuid.UUID) {
	list, err := h.Tenants.Domains(r.Context(), tenantID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, list)
}

func (h *handlers) primary(w http.ResponseWriter, r *http.Request, tenantID uuid.UUID) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.Tenants.SetPrimaryDomain(r.Context(), tenantID, id); err != nil {
		h.errs.write(w, r, err)
		return
	}
	noContent(w)
}

func (h *handlers) remove(w http.ResponseWriter, r *http.Request, tenantID uuid.UUID) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.Tenants.RemoveDomain(r.Context(), tenantID, id); err != nil {
		h.errs.write(w, r, err)
		return
	}
	noContent(w)
}

func (h *handlers) findLogs(w http.ResponseWriter, r *http.Request, c audit.Criteria) {
	entries, err := h.Logs.Find(r.Context(), c)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeDataMeta(w, entries, map[string]any{"limit": c.Limit, "offset": c.Offset})
}
