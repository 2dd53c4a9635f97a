package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/clinickit/pkg/logger"
)

// Check is a named readiness check.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

// LivenessHandler always answers 200 {"status":"alive"}.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "alive"})
	}
}

// ReadinessHandler runs every check with timeout. It answers 200 when all
// pass and 503 otherwise, listing each check's outcome.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		status, code := "ready", http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Component(c.Name), logger.Error(err))
				results[c.Name] = "failed"
				status, code = "not_ready", http.StatusServiceUnavailable
				continue
			}
			results[c.Name] = "ok"
		}
		writeJSON(w, code, map[string]any{"status": status, "checks": results})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
