package api

import (
	"net/http"

	"github.com/dmitrymomot/clinickit/internal/service"
)

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
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
	users, err := h.Users.List(r.Context(), v, limit, offset)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeDataMeta(w, users, map[string]any{"limit": limit, "offset": offset})
}

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var in service.CreateUserInput
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	u, err := h.Users.Create(r.Context(), in)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	created(w, u)
}

func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	u, err := h.Users.Get(r.Context(), id, r.URL.Query().Get("deleted") == "include")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, u)
}

func (h *handlers) deactivateUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.Users.Deactivate(r.Context(), id); err != nil {
		h.errs.write(w, r, err)
		return
	}
	noContent(w)
}

func (h *handlers) restoreUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.Users.Restore(r.Context(), id); err != nil {
		h.errs.write(w, r, err)
		return
	}
	noContent(w)
}
