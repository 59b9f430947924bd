package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

const inviteColumns = `id, tree_id, person_id, token_hash, email, message, status,
		invited_by, created_at, expires_at, accepted_by, accepted_at`

// InvitesRepository handles invite link persistence.
type InvitesRepository struct {
	q Querier
}

// NewInvitesRepository creates a new invites repository.
func NewInvitesRepository(q Querier) *InvitesRepository {
	return &InvitesRepository{q: q}
}

func scanInvite(row rowScanner) (*domain.InviteLink, error) {
	inv := &domain.InviteLink{}
	err := row.Scan(
		&inv.ID, &inv.TreeID, &inv.PersonID, &inv.TokenHash, &inv.Email, &inv.Message, &inv.Status,
		&inv.InvitedBy, &inv.CreatedAt, &inv.ExpiresAt, &inv.AcceptedBy, &inv.AcceptedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *InvitesRepository) getOne(ctx context.Context, query string, arg any) (*domain.InviteLink, error) {
	inv, err := scanInvite(r.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInviteNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Create inserts an invite. A second pending invite for the same person violates
// invite_links_pending_person_key.
func (r *InvitesRepository) Create(ctx context.Context, inv *domain.InviteLink) error {
	query := `
		INSERT INTO invite_links (` + inviteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.q.ExecContext(ctx, query,
		inv.ID, inv.TreeID, inv.PersonID, inv.TokenHash, inv.Email, inv.Message, inv.Status,
		inv.InvitedBy, inv.CreatedAt, inv.ExpiresAt, inv.AcceptedBy, inv.AcceptedAt,
	)
	return mapWriteError(err)
}

// GetByID retrieves an invite by ID.
func (r *InvitesRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.InviteLink, error) {
	return r.getOne(ctx, `SELECT `+inviteColumns+` FROM invite_links WHERE id = $1`, id)
}

// GetByTokenHash retrieves an invite by the hash of its token.
func (r *InvitesRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.InviteLink, error) {
	return r.getOne(ctx, `SELECT `+inviteColumns+` FROM invite_links WHERE token_hash = $1`, tokenHash)
}

// GetPendingForPerson retrieves the pending invite of a person, expired or not.
func (r *InvitesRepository) GetPendingForPerson(ctx context.Context, personID uuid.UUID) (*domain.InviteLink, error) {
	query := `SELECT ` + inviteColumns + ` FROM invite_links WHERE person_id = $1 AND status = 'pending'`
	return r.getOne(ctx, query, personID)
}

// ListByTree retrieves every invite issued for a tree, newest first.
func (r *InvitesRepository) ListByTree(ctx context.Context, treeID uuid.UUID) ([]*domain.InviteLink, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM invite_links
		WHERE tree_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.q.QueryContext(ctx, query, treeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []*domain.InviteLink
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// MarkExpired flips a pending invite to expired.
func (r *InvitesRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE invite_links
		SET status = 'expired'
		WHERE id = $1 AND status = 'pending'
	`
	_, err := r.q.ExecContext(ctx, query, id)
	return err
}

// MarkAccepted flips a pending invite to accepted. Losing a race against another
// redemption or expiry surfaces as a conflict.
func (r *InvitesRepository) MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	query := `
		UPDATE invite_links
		SET status = 'accepted', accepted_by = $2, accepted_at = $3
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.q.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrInviteNotPending)
}

// ExpireForPerson expires every pending invite of a person.
func (r *InvitesRepository) ExpireForPerson(ctx context.Context, personID uuid.UUID) (int64, error) {
	query := `
		UPDATE invite_links
		SET status = 'expired'
		WHERE person_id = $1 AND status = 'pending'
	`
	result, err := r.q.ExecContext(ctx, query, personID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
