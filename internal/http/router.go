package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/tendant/simple-genealogy/internal/config"
	"github.com/tendant/simple-genealogy/internal/http/features/invites"
	"github.com/tendant/simple-genealogy/internal/http/features/members"
	"github.com/tendant/simple-genealogy/internal/http/features/persons"
	"github.com/tendant/simple-genealogy/internal/http/features/relationships"
	"github.com/tendant/simple-genealogy/internal/http/features/trees"
	"github.com/tendant/simple-genealogy/internal/http/middleware"
	"github.com/tendant/simple-genealogy/internal/httputil"
	"github.com/tendant/simple-genealogy/pkg/genealogy"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *zap.Logger
	Engine          *genealogy.Engine
	Verifier        middleware.TokenVerifier
	RateLimit       config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	CORSOrigins     []string
	// Ready reports whether backing services are reachable. Nil means always ready.
	Ready func(r *http.Request) error
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler)
	}

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(req); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				httputil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	limiters := middleware.CreateRateLimiters(cfg.RateLimit, logger)
	auth := middleware.Auth(cfg.Verifier)

	treesHandler := trees.NewHandler(logger, cfg.Engine.Access, cfg.Engine.Trees)
	personsHandler := persons.NewHandler(logger, cfg.Engine.Persons)
	relationshipsHandler := relationships.NewHandler(logger, cfg.Engine.Relationships)
	membersHandler := members.NewHandler(logger, cfg.Engine.Access)
	invitesHandler := invites.NewHandler(logger, cfg.Engine.Invites)

	r.Route("/v1", func(r chi.Router) {
		// Public: anyone holding the token may see who invited them.
		r.With(limiters[middleware.LimitLookup]).Get("/invites/{token}", invitesHandler.Lookup)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.With(limiters[middleware.LimitRedeem]).Post("/invites/{token}/redeem", invitesHandler.Redeem)

			r.Group(func(r chi.Router) {
				r.Use(limiters[middleware.LimitAPI])
				r.Get("/trees/mine", treesHandler.Mine)
				r.Route("/trees/{treeID}", func(r chi.Router) {
					treesHandler.RegisterRoutes(r)
					personsHandler.RegisterRoutes(r)
					relationshipsHandler.RegisterRoutes(r)
					membersHandler.RegisterRoutes(r)
					invitesHandler.RegisterRoutes(r)
				})
			})
		})
	})

	return r
}
