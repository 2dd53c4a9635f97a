package api

import (
	"net/http"

	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/internal/service"
	"github.com/dmitrymomot/clinickit/internal/store"
)

// listPatients accepts ?status=, ?q= (name search) and ?deleted=.
func (h *handlers) listPatients(w http.ResponseWriter, r *http.Request) {
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
	q := r.URL.Query()
	status := domain.PatientStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		h.errs.write(w, r, service.ErrInvalidInput)
		return
	}
	list, err := h.Patients.List(r.Context(), store.PatientFilter{
		Visibility: v,
		Status:     status,
		Search:     q.Get("q"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeDataMeta(w, list, map[string]any{"limit": limit, "offset": offset})
}

func (h *handlers) createPatient(w http.ResponseWriter, r *http.Request) {
	var in service.PatientInput
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	p, err := h.Patients.Create(r.Context(), in)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	created(w, p)
}

func (h *handlers) getPatient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	p, err := h.Patients.Get(r.Context(), id, r.URL.Query().Get("deleted") == "include")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, p)
}

func (h *handlers) updatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var in service.PatientInput
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	p, err := h.Patients.Update(r.Context(), id, in)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, p)
}

func (h *handlers) deletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.Patients.Delete(r.Context(), id); err != nil {
		h.errs.write(w, r, err)
		return
	}
	noContent(w)
}

func (h *handlers) restorePatient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.Patients.Restore(r.Context(), id); err != nil {
		h.errs.write(w, r, err)
		return
	}
	noContent(w)
}
