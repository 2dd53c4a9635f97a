package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/pkg/scope"
)

const (
	maxBodyBytes = 1 << 20
	defaultLimit = 50
	maxLimit     = 200
)

// decode reads a single JSON object from the body into dst. Unknown fields
// are rejected.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return ErrBodyTooLarge
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		default:
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON object", ErrBadRequest)
	}
	return nil
}

func idParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
	}
	return id, nil
}

// page parses limit and offset query parameters.
func page(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	limit, offset = defaultLimit, 0
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("%w: invalid limit", ErrBadRequest)
		}
		limit = min(limit, maxLimit)
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("%w: invalid offset", ErrBadRequest)
		}
	}
	return limit, offset, nil
}

// visibility parses ?deleted=include|only.
func visibility(r *http.Request) (scope.Visibility, error) {
	switch r.URL.Query().Get("deleted") {
	case "":
		return scope.Live, nil
	case "include":
		return scope.All, nil
	case "only":
		return scope.Deleted, nil
	}
	return scope.Live, fmt.Errorf("%w: deleted must be include or only", ErrBadRequest)
}

func boolQuery(r *http.Request, name string) (*bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
	}
	return &b, nil
}
