// Package featuretest builds in-memory engines and requests for handler tests.
package featuretest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/internal/http/middleware"
	"github.com/tendant/simple-genealogy/pkg/domain"
	"github.com/tendant/simple-genealogy/pkg/genealogy"
	"github.com/tendant/simple-genealogy/pkg/repository"
	"go.uber.org/zap"
)

// Env is an engine over a memory store.
type Env struct {
	Engine *genealogy.Engine
	Store  *repository.MemoryStore
	Users  *repository.MemoryUsers
	Logger *zap.Logger
}

// New creates an engine with no-op collaborators.
func New(t testing.TB) *Env {
	t.Helper()
	store := repository.NewMemoryStore()
	users := repository.NewMemoryUsers()
	logger := zap.NewNop()
	engine := genealogy.New(genealogy.DefaultConfig(), genealogy.Deps{
		Store:  store,
		Users:  users,
		Logger: logger,
	})
	return &Env{Engine: engine, Store: store, Users: users, Logger: logger}
}

// User registers a platform user and returns its id.
func (e *Env) User(name string) uuid.UUID {
	id := uuid.New()
	e.Users.Add(&domain.User{
		ID:        id,
		Email:     name + "@example.com",
		Name:      &name,
		CreatedAt: time.Now(),
	})
	return id
}

// Router mounts routes under /v1/trees/{treeID} the way the server does.
func Router(register func(chi.Router)) chi.Router {
	r := chi.NewRouter()
	r.Route("/v1/trees/{treeID}", register)
	return r
}

// Request builds a JSON request. A nil user id leaves the request unauthenticated.
func Request(t testing.TB, method, target string, body any, userID uuid.UUID) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	return req
}

// Serve runs req through h.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals the recorded body into T.
func Decode[T any](t testing.TB, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}
