// Package familytree embeds the genealogy service in another Go program.
//
// Setup:
//
//  1. Point it at the Postgres database shared with the identity service
//  2. Create the instance and mount its router
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	trees, err := familytree.New(familytree.Config{
//	    DB:        db,
//	    JWTSecret: "the-identity-service-signing-key",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if the schema is missing and Migrate is false
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/", trees.Router())
//	http.ListenAndServe(":8080", r)
package familytree

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/internal/config"
	httpserver "github.com/tendant/simple-genealogy/internal/http"
	"github.com/tendant/simple-genealogy/internal/http/middleware"
	"github.com/tendant/simple-genealogy/pkg/auth"
	"github.com/tendant/simple-genealogy/pkg/genealogy"
	"github.com/tendant/simple-genealogy/pkg/repository"
	"go.uber.org/zap"
)

// Config holds the configuration for an embedded genealogy service.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret verifies access tokens issued by the identity service (required).
	JWTSecret string

	// JWTIssuer, when set, must match the token issuer.
	JWTIssuer string

	// Migrate creates the genealogy tables on startup instead of requiring them.
	Migrate bool

	// Engine tunes invite lifetimes, traversal depth and paging. Zero fields use genealogy.DefaultConfig().
	Engine genealogy.Config

	// Notifier, Auditor and Mailer are optional collaborators.
	Notifier genealogy.Notifier
	Auditor  genealogy.Auditor
	Mailer   genealogy.InviteMailer

	// Logger is the structured logger (default: zap.NewNop()).
	Logger *zap.Logger
}

// FamilyTree is an embedded genealogy service.
type FamilyTree struct {
	config   Config
	db       *sql.DB
	engine   *genealogy.Engine
	verifier *auth.TokenVerifier
}

// New creates a new instance. It returns an error if the schema is missing and
// Migrate is false.
func New(cfg Config) (*FamilyTree, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if cfg.Migrate {
		if err := repository.Migrate(context.Background(), cfg.DB); err != nil {
			return nil, fmt.Errorf("familytree: %w", err)
		}
	} else if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	engine := genealogy.New(cfg.Engine, genealogy.Deps{
		Store:    repository.NewPostgresStore(cfg.DB),
		Users:    repository.NewUsersRepository(cfg.DB),
		Notifier: cfg.Notifier,
		Auditor:  cfg.Auditor,
		Mailer:   cfg.Mailer,
		Logger:   cfg.Logger,
	})

	return &FamilyTree{
		config:   cfg,
		db:       cfg.DB,
		engine:   engine,
		verifier: auth.NewTokenVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer),
	}, nil
}

// Engine returns the services for direct use.
func (f *FamilyTree) Engine() *genealogy.Engine {
	return f.engine
}

// Router returns the full HTTP API with rate limiting disabled; put your own limits in
// front of it.
func (f *FamilyTree) Router() http.Handler {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Logger:     f.config.Logger,
		Engine:     f.engine,
		Verifier:   f.verifier,
		Validation: config.ValidationConfig{MaxRequestBodySize: 1 << 20},
		Ready: func(r *http.Request) error {
			return f.db.PingContext(r.Context())
		},
	})
}

// AuthMiddleware returns middleware that validates identity service access tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(trees.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (f *FamilyTree) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(f.verifier)
}

// GetUserID extracts the user ID from a request.
// Use after AuthMiddleware.
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	return middleware.GetUserID(r.Context())
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("familytree: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("familytree: JWTSecret is required")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"users", "persons", "relationships", "tree_memberships", "invite_links"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("familytree: missing table '%s' - run migrations first", table)
		}
		if err != nil {
			return fmt.Errorf("familytree: failed to check schema: %w", err)
		}
	}

	return nil
}
