package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-genealogy/internal/config"
	"github.com/tendant/simple-genealogy/internal/http/features/featuretest"
	"github.com/tendant/simple-genealogy/pkg/auth"
)

var testSecret = []byte("router-test-secret")

func newTestRouter(t *testing.T, mutate func(*RouterConfig)) (http.Handler, *featuretest.Env) {
	t.Helper()
	env := featuretest.New(t)
	cfg := RouterConfig{
		Logger:   env.Logger,
		Engine:   env.Engine,
		Verifier: auth.NewTokenVerifier(testSecret, ""),
		RateLimit: config.RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 100,
			RedeemPerMinute:   2,
			LookupPerMinute:   100,
		},
		SecurityHeaders: config.SecurityHeadersConfig{Enabled: true, ContentTypeOptions: "nosniff"},
		Validation:      config.ValidationConfig{MaxRequestBodySize: 1 << 20},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRouter(cfg), env
}

func bearer(t *testing.T, env *featuretest.Env, name string) (string, string) {
	t.Helper()
	id := env.User(name)
	token, err := auth.IssueAccessToken(testSecret, "", id, name+"@example.com", time.Hour)
	require.NoError(t, err)
	return id.String(), "Bearer " + token
}

func do(h http.Handler, method, target, authz string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := do(h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	down, _ := newTestRouter(t, func(c *RouterConfig) {
		c.Ready = func(*http.Request) error { return errors.New("db down") }
	})
	rec = do(down, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := do(h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_RequiresAuth(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	for _, target := range []string{"/v1/trees/mine", "/v1/trees/00000000-0000-0000-0000-000000000001/persons"} {
		rec := do(h, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
	rec := do(h, http.MethodPost, "/v1/invites/abc/redeem", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Lookup is public.
	rec = do(h, http.MethodGet, "/v1/invites/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_PersonalTreeFlow(t *testing.T) {
	h, env := newTestRouter(t, nil)
	userID, authz := bearer(t, env, "owner")

	rec := do(h, http.MethodGet, "/v1/trees/mine", authz, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), userID)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	rec = do(h, http.MethodPost, "/v1/trees/"+userID+"/persons", authz, map[string]any{"first_name": "Ada"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(h, http.MethodGet, "/v1/trees/"+userID, authz, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"first_name":"Ada"`)

	rec = do(h, http.MethodGet, "/v1/trees/"+userID+"/stats", authz, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"persons":1`)
}

func TestRouter_RedeemRateLimit(t *testing.T) {
	h, env := newTestRouter(t, nil)
	_, authz := bearer(t, env, "invitee")

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(h, http.MethodPost, "/v1/invites/nope/redeem", authz, nil).Code
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)
}

func TestRouter_BodyLimit(t *testing.T) {
	h, env := newTestRouter(t, func(c *RouterConfig) {
		c.Validation.MaxRequestBodySize = 64
	})
	userID, authz := bearer(t, env, "owner")

	rec := do(h, http.MethodPost, "/v1/trees/"+userID+"/persons", authz,
		map[string]any{"first_name": strings.Repeat("a", 100)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouter_CORS(t *testing.T) {
	h, _ := newTestRouter(t, func(c *RouterConfig) {
		c.CORSOrigins = []string{"https://family.example"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/v1/trees/mine", nil)
	req.Header.Set("Origin", "https://family.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://family.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
