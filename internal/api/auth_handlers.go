package api

import (
	"net/http"
	"slices"

	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/internal/service"
	"github.com/dmitrymomot/clinickit/pkg/jwt"
)

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	sess, err := h.Auth.Login(r.Context(), in)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, sess)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	id, ok := jwt.UserIDFromContext(r.Context())
	if !ok {
		h.errs.write(w, r, ErrUnauthorized)
		return
	}
	u, err := h.Users.Get(r.Context(), id, false)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, u)
}

// requireRole lets through callers whose token carries one of roles.
func requireRole(errs errorWriter, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := jwt.ClaimsFromContext(r.Context())
			if !ok {
				errs.write(w, r, ErrUnauthorized)
				return
			}
			if !slices.Contains(roles, domain.Role(c.Role)) {
				errs.write(w, r, service.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
