package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid", err: domain.ErrSelfRelationship, status: http.StatusBadRequest, code: "invalid_argument"},
		{name: "not found", err: domain.ErrPersonNotFound, status: http.StatusNotFound, code: "not_found"},
		{name: "forbidden", err: domain.ErrAccessDenied, status: http.StatusForbidden, code: "forbidden"},
		{name: "conflict", err: domain.ErrInvitePending, status: http.StatusConflict, code: "conflict"},
		{name: "gone", err: domain.ErrInviteExpired, status: http.StatusGone, code: "gone"},
		{name: "wrapped", err: errors.Join(errors.New("ctx"), domain.ErrUserNotFound), status: http.StatusNotFound, code: "not_found"},
		{name: "internal", err: errors.New("pq: connection reset"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			assert.Equal(t, tt.status, DomainError(rec, tt.err))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body.Error)
				assert.NotContains(t, rec.Body.String(), "pq:")
			}
		})
	}
}

func TestDomainError_Details(t *testing.T) {
	rec := httptest.NewRecorder()
	DomainError(rec, domain.Forbidden([]domain.Role{domain.RoleOwner}, domain.RoleViewer))

	body := decodeError(t, rec)
	assert.Equal(t, []any{"owner"}, body.Details["required_roles"])
	assert.Equal(t, "viewer", body.Details["actual_role"])
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("ok", func(t *testing.T) {
		var p payload
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
		assert.True(t, DecodeJSON(rec, req, &p))
		assert.Equal(t, "a", p.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		var p payload
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nam":"a"}`))
		assert.False(t, DecodeJSON(rec, req, &p))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		var p payload
		rec := httptest.NewRecorder()
		body := `{"name":"` + strings.Repeat("a", 200) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
		req.Body = http.MaxBytesReader(rec, req.Body, 50)
		assert.False(t, DecodeJSON(rec, req, &p))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestUUIDParam(t *testing.T) {
	id := uuid.New()
	var got uuid.UUID
	var ok bool

	r := chi.NewRouter()
	r.Get("/persons/{personID}", func(w http.ResponseWriter, r *http.Request) {
		got, ok = UUIDParam(w, r, "personID")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/persons/"+id.String(), nil))
	assert.True(t, ok)
	assert.Equal(t, id, got)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/persons/nope", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPageQuery(t *testing.T) {
	rec := httptest.NewRecorder()
	page, ok := PageQuery(rec, httptest.NewRequest(http.MethodGet, "/?limit=10000&offset=20", nil))
	require.True(t, ok)
	assert.Equal(t, domain.Page{Limit: domain.MaxPageSize, Offset: 20}, page)

	page, ok = PageQuery(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ok)
	assert.Equal(t, domain.DefaultPageSize, page.Limit)

	rec = httptest.NewRecorder()
	_, ok = PageQuery(rec, httptest.NewRequest(http.MethodGet, "/?limit=abc", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
