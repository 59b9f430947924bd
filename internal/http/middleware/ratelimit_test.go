package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/internal/config"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Requests: 2,
		Window:   time.Minute,
		Logger:   zap.NewNop(),
	})(okHandler())

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i, status := range want {
		req := httptest.NewRequest(http.MethodGet, "/v1/invites/abc", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != status {
			t.Errorf("request %d: got status %d, want %d", i+1, w.Code, status)
		}
	}

	// A different client has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/v1/invites/abc", nil)
	req.RemoteAddr = "192.168.1.2:12345"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other client: got status %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRateLimit_ByUser(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Requests: 1,
		Window:   time.Minute,
		ByUser:   true,
	})(okHandler())

	alice, bob := uuid.New(), uuid.New()
	serve := func(user uuid.UUID) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/invites/abc/redeem", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req = req.WithContext(WithUserID(req.Context(), user))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if got := serve(alice); got != http.StatusOK {
		t.Errorf("alice first: got %d, want %d", got, http.StatusOK)
	}
	if got := serve(alice); got != http.StatusTooManyRequests {
		t.Errorf("alice second: got %d, want %d", got, http.StatusTooManyRequests)
	}
	if got := serve(bob); got != http.StatusOK {
		t.Errorf("bob behind the same IP: got %d, want %d", got, http.StatusOK)
	}
}

func TestNoRateLimit(t *testing.T) {
	handler := NoRateLimit()(okHandler())

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Request %d: got status %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestCreateRateLimiters_Disabled(t *testing.T) {
	limiters := CreateRateLimiters(config.RateLimitConfig{Enabled: false, RedeemPerMinute: 1}, zap.NewNop())

	handler := limiters[LimitRedeem](okHandler())
	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Request %d: got status %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestCreateRateLimiters_Enabled(t *testing.T) {
	limiters := CreateRateLimiters(config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 100,
		RedeemPerMinute:   1,
		LookupPerMinute:   5,
	}, zap.NewNop())

	for _, key := range []string{LimitAPI, LimitRedeem, LimitLookup} {
		if limiters[key] == nil {
			t.Errorf("%s limiter should not be nil", key)
		}
	}

	handler := limiters[LimitRedeem](okHandler())
	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/redeem", nil)
		req.RemoteAddr = "172.16.0.9:80"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes[i] = w.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("redeem codes = %v, want [200 429]", codes)
	}
}
