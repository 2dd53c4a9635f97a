package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/clinickit/internal/service"
	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/pkg/jwt"
	"github.com/dmitrymomot/clinickit/pkg/limits"
	"github.com/dmitrymomot/clinickit/pkg/logger"
	"github.com/dmitrymomot/clinickit/pkg/notifications"
	"github.com/dmitrymomot/clinickit/pkg/scope"
	"github.com/dmitrymomot/clinickit/pkg/settings"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

// Response is the JSON envelope of every API response.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail is the error member of Response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// HTTPError is an error with a fixed status and machine-readable code.
type HTTPError struct {
	Status int
	Code   string
}

// Error returns the machine-readable code.
func (e HTTPError) Error() string { return e.Code }

var (
	ErrBadRequest      = HTTPError{Status: http.StatusBadRequest, Code: "bad_request"}
	ErrUnauthorized    = HTTPError{Status: http.StatusUnauthorized, Code: "unauthorized"}
	ErrNotFound        = HTTPError{Status: http.StatusNotFound, Code: "not_found"}
	ErrTooManyRequests = HTTPError{Status: http.StatusTooManyRequests, Code: "too_many_requests"}
	ErrBodyTooLarge    = HTTPError{Status: http.StatusRequestEntityTooLarge, Code: "request_entity_too_large"}
)

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Data: data})
}

func writeDataMeta(w http.ResponseWriter, data any, meta map[string]any) {
	writeJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, Response{Data: data})
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// errorWriter maps domain errors to responses. Unknown errors are logged
// and answered with a generic 500.
type errorWriter struct {
	log *slog.Logger
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	status, detail, meta := classify(err)
	if status >= http.StatusInternalServerError {
		e.log.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), logger.Error(err))
	}
	writeJSON(w, status, Response{Error: detail, Meta: meta})
}

func classify(err error) (int, *ErrorDetail, map[string]any) {
	var (
		httpErr  HTTPError
		exceeded *limits.ExceededError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Status, &ErrorDetail{Code: httpErr.Code, Message: err.Error()}, nil

	case errors.As(err, &exceeded):
		return http.StatusConflict, &ErrorDetail{
				Code:    "limit_exceeded",
				Message: "The plan limit for " + string(exceeded.Resource) + " has been reached.",
			}, map[string]any{
				"resource": exceeded.Resource,
				"usage":    exceeded.Usage,
			}

	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, &ErrorDetail{Code: "invalid_credentials", Message: "Email or password is incorrect."}, nil

	case errors.Is(err, jwt.ErrMissingToken),
		errors.Is(err, jwt.ErrInvalidToken),
		errors.Is(err, jwt.ErrInvalidClaims),
		errors.Is(err, jwt.ErrExpiredToken),
		errors.Is(err, jwt.ErrTenantMismatch):
		return http.StatusUnauthorized, &ErrorDetail{Code: "unauthorized", Message: "A valid access token for this clinic is required."}, nil

	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, &ErrorDetail{Code: "forbidden", Message: "Your role does not allow this action."}, nil

	case errors.Is(err, limits.ErrDowngradeNotPossible):
		return http.StatusConflict, &ErrorDetail{Code: "downgrade_not_possible", Message: err.Error()}, nil

	case errors.Is(err, tenant.ErrTenantNotFound),
		errors.Is(err, tenant.ErrNoTenantInContext),
		errors.Is(err, scope.ErrNoTenant):
		return http.StatusNotFound, &ErrorDetail{Code: "tenant_not_found", Message: "No clinic is configured for this address."}, nil

	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, tenant.ErrDomainNotFound),
		errors.Is(err, settings.ErrNotFound),
		errors.Is(err, notifications.ErrNotificationNotFound),
		errors.Is(err, limits.ErrPlanNotFound):
		return http.StatusNotFound, &ErrorDetail{Code: "not_found", Message: "Resource not found."}, nil

	case errors.Is(err, tenant.ErrInactiveTenant):
		return http.StatusForbidden, &ErrorDetail{Code: "tenant_inactive", Message: "This clinic account is suspended or its subscription has ended."}, nil

	case errors.Is(err, tenant.ErrModuleDisabled):
		return http.StatusForbidden, &ErrorDetail{Code: "module_disabled", Message: "This feature is not enabled for the clinic."}, nil

	case errors.Is(err, scope.ErrCrossTenant):
		return http.StatusForbidden, &ErrorDetail{Code: "forbidden", Message: "Access to another clinic's data is not allowed."}, nil

	case errors.Is(err, service.ErrSlugTaken),
		errors.Is(err, service.ErrDomainTaken),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrPrimaryDomain):
		return http.StatusConflict, &ErrorDetail{Code: "conflict", Message: err.Error()}, nil

	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrPasswordPolicy),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, tenant.ErrInvalidDomain),
		errors.Is(err, tenant.ErrInvalidSlug),
		errors.Is(err, tenant.ErrReservedSlug),
		errors.Is(err, limits.ErrInvalidResource),
		errors.Is(err, limits.ErrInvalidAmount),
		errors.Is(err, settings.ErrEmptyKey),
		errors.Is(err, settings.ErrInvalidJSON),
		errors.Is(err, notifications.ErrInvalidNotification):
		return http.StatusUnprocessableEntity, &ErrorDetail{Code: "validation_error", Message: err.Error()}, nil

	default:
		return http.StatusInternalServerError, &ErrorDetail{Code: "internal_error", Message: "Internal server error."}, nil
	}
}
