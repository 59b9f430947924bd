package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/simple-genealogy/internal/config"
	"github.com/tendant/simple-genealogy/internal/httputil"
	"go.uber.org/zap"
)

// Rate limiter keys returned by CreateRateLimiters.
const (
	LimitAPI    = "api"
	LimitRedeem = "redeem"
	LimitLookup = "lookup"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// ByUser keys the limit on the authenticated user instead of the client IP.
	ByUser bool
	Logger *zap.Logger
}

// keyByUser falls back to the client IP for unauthenticated requests.
func keyByUser(r *http.Request) (string, error) {
	if userID, ok := GetUserID(r.Context()); ok {
		return "user:" + userID.String(), nil
	}
	return httprate.KeyByIP(r)
}

// RateLimit creates a rate limiter middleware with logging.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	key := httprate.KeyByIP
	if cfg.ByUser {
		key = keyByUser
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("rate limit exceeded",
				zap.String("ip", r.RemoteAddr),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
				zap.String("user_agent", r.UserAgent()),
			)
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters creates the rate limiting middleware for each endpoint class. Redeem
// and lookup are tighter because they accept invite tokens.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *zap.Logger) map[string]func(http.Handler) http.Handler {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return map[string]func(http.Handler) http.Handler{
			LimitAPI:    noOp,
			LimitRedeem: noOp,
			LimitLookup: noOp,
		}
	}

	return map[string]func(http.Handler) http.Handler{
		LimitAPI: RateLimit(RateLimitConfig{
			Requests: cfg.RequestsPerMinute,
			Window:   time.Minute,
			ByUser:   true,
			Logger:   logger,
		}),
		LimitRedeem: RateLimit(RateLimitConfig{
			Requests: cfg.RedeemPerMinute,
			Window:   time.Minute,
			ByUser:   true,
			Logger:   logger,
		}),
		LimitLookup: RateLimit(RateLimitConfig{
			Requests: cfg.LookupPerMinute,
			Window:   time.Minute,
			Logger:   logger,
		}),
	}
}
