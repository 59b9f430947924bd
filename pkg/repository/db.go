package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

// Config holds database connection settings.
type Config struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN returns the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// NewDB opens and pings a Postgres connection pool.
func NewDB(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx runs fn inside a transaction, committing on success and rolling back on error or panic.
func Tx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Postgres error codes this package reacts to.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

func pqCode(err error) (code string, constraint string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

func isUniqueViolation(err error, constraint string) bool {
	code, c := pqCode(err)
	return code == pqUniqueViolation && (constraint == "" || c == constraint)
}

func expectOneRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// mapWriteError converts constraint violations that escape service-level validation into domain errors.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	code, constraint := pqCode(err)
	switch code {
	case pqUniqueViolation:
		switch constraint {
		case "persons_linked_user_id_key":
			return domain.ErrUserAlreadyLinked
		case "relationships_edge_key":
			return domain.ErrRelationshipExists
		case "invite_links_pending_person_key":
			return domain.ErrInvitePending
		case "tree_memberships_pkey":
			return domain.ErrMembershipExists
		}
		return fmt.Errorf("%w: %s", domain.ErrConflict, constraint)
	case pqForeignKeyViolation:
		if constraint == "relationships_person1_fk" || constraint == "relationships_person2_fk" {
			return domain.ErrCrossTreeRelationship
		}
		return fmt.Errorf("%w: %s", domain.ErrNotFound, constraint)
	case pqCheckViolation:
		if constraint == "relationships_distinct_persons" {
			return domain.ErrSelfRelationship
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, constraint)
	}
	return err
}
