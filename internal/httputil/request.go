package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

// DecodeJSON decodes the request body into v, rejecting unknown fields. On failure it writes
// 413 or 400 and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// UUIDParam parses a chi URL parameter as a UUID. On failure it writes 400 and returns false.
func UUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// IntQuery reads an integer query parameter, returning def when it is absent. A malformed
// value writes 400 and returns false.
func IntQuery(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		Error(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

// PageQuery reads limit and offset query parameters.
func PageQuery(w http.ResponseWriter, r *http.Request) (domain.Page, bool) {
	limit, ok := IntQuery(w, r, "limit", 0)
	if !ok {
		return domain.Page{}, false
	}
	offset, ok := IntQuery(w, r, "offset", 0)
	if !ok {
		return domain.Page{}, false
	}
	return domain.Page{Limit: limit, Offset: offset}.Normalize(), true
}
