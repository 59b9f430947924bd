package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

// MembershipsRepository handles tree membership persistence.
type MembershipsRepository struct {
	q Querier
}

// NewMembershipsRepository creates a new memberships repository.
func NewMembershipsRepository(q Querier) *MembershipsRepository {
	return &MembershipsRepository{q: q}
}

// CreateIfAbsent inserts a membership, leaving an existing row for the same (tree, user) untouched.
// Concurrent callers converge on a single row; the returned membership is always the stored one.
func (r *MembershipsRepository) CreateIfAbsent(ctx context.Context, m *domain.Membership) (*domain.Membership, bool, error) {
	query := `
		INSERT INTO tree_memberships (tree_id, user_id, role, granted_by, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tree_id, user_id) DO NOTHING
	`
	result, err := r.q.ExecContext(ctx, query, m.TreeID, m.UserID, m.Role, m.GrantedBy, m.JoinedAt)
	if err != nil {
		return nil, false, mapWriteError(err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	stored, err := r.Get(ctx, m.TreeID, m.UserID)
	if err != nil {
		return nil, false, err
	}
	return stored, inserted == 1, nil
}

// Get retrieves the membership of a user in a tree.
func (r *MembershipsRepository) Get(ctx context.Context, treeID, userID uuid.UUID) (*domain.Membership, error) {
	query := `
		SELECT tree_id, user_id, role, granted_by, joined_at
		FROM tree_memberships
		WHERE tree_id = $1 AND user_id = $2
	`

	var m domain.Membership
	err := r.q.QueryRowContext(ctx, query, treeID, userID).Scan(
		&m.TreeID,
		&m.UserID,
		&m.Role,
		&m.GrantedBy,
		&m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}

	return &m, nil
}

// ListByTree retrieves all members of a tree.
func (r *MembershipsRepository) ListByTree(ctx context.Context, treeID uuid.UUID) ([]*domain.Membership, error) {
	query := `
		SELECT tree_id, user_id, role, granted_by, joined_at
		FROM tree_memberships
		WHERE tree_id = $1
		ORDER BY joined_at ASC
	`
	return r.list(ctx, query, treeID)
}

// ListByUser retrieves all memberships held by a user.
func (r *MembershipsRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Membership, error) {
	query := `
		SELECT tree_id, user_id, role, granted_by, joined_at
		FROM tree_memberships
		WHERE user_id = $1
		ORDER BY joined_at ASC
	`
	return r.list(ctx, query, userID)
}

func (r *MembershipsRepository) list(ctx context.Context, query string, arg uuid.UUID) ([]*domain.Membership, error) {
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []*domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.TreeID, &m.UserID, &m.Role, &m.GrantedBy, &m.JoinedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, &m)
	}

	return memberships, rows.Err()
}

// UpdateRole changes the role of an existing membership.
func (r *MembershipsRepository) UpdateRole(ctx context.Context, treeID, userID uuid.UUID, role domain.Role) error {
	query := `
		UPDATE tree_memberships
		SET role = $3
		WHERE tree_id = $1 AND user_id = $2
	`
	result, err := r.q.ExecContext(ctx, query, treeID, userID, role)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrMembershipNotFound)
}

// Delete removes a membership.
func (r *MembershipsRepository) Delete(ctx context.Context, treeID, userID uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM tree_memberships WHERE tree_id = $1 AND user_id = $2`, treeID, userID)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrMembershipNotFound)
}
