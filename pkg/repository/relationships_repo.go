package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

const relationshipColumns = `id, tree_id, person1_id, person2_id, relationship_type, notes, created_by, created_at`

// RelationshipsRepository handles relationship persistence.
type RelationshipsRepository struct {
	q Querier
}

// NewRelationshipsRepository creates a new relationships repository.
func NewRelationshipsRepository(q Querier) *RelationshipsRepository {
	return &RelationshipsRepository{q: q}
}

func scanRelationship(row rowScanner) (*domain.Relationship, error) {
	rel := &domain.Relationship{}
	err := row.Scan(
		&rel.ID, &rel.TreeID, &rel.Person1ID, &rel.Person2ID, &rel.Type, &rel.Notes, &rel.CreatedBy, &rel.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func (r *RelationshipsRepository) queryRelationships(ctx context.Context, query string, args ...any) ([]*domain.Relationship, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []*domain.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// Create inserts a relationship. The composite foreign keys reject endpoints from another tree.
func (r *RelationshipsRepository) Create(ctx context.Context, rel *domain.Relationship) error {
	query := `
		INSERT INTO relationships (` + relationshipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q.ExecContext(ctx, query,
		rel.ID, rel.TreeID, rel.Person1ID, rel.Person2ID, rel.Type, rel.Notes, rel.CreatedBy, rel.CreatedAt,
	)
	return mapWriteError(err)
}

// GetByID retrieves a relationship by ID.
func (r *RelationshipsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Relationship, error) {
	query := `SELECT ` + relationshipColumns + ` FROM relationships WHERE id = $1`
	rel, err := scanRelationship(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRelationshipNotFound
	}
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// ListByTree retrieves one page of a tree's relationships in creation order.
func (r *RelationshipsRepository) ListByTree(ctx context.Context, treeID uuid.UUID, page domain.Page) ([]*domain.Relationship, error) {
	page = page.Normalize()
	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE tree_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`
	return r.queryRelationships(ctx, query, treeID, page.Limit, page.Offset)
}

// ListByPerson retrieves every relationship where the person is either endpoint.
func (r *RelationshipsRepository) ListByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE person1_id = $1 OR person2_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return r.queryRelationships(ctx, query, personID)
}

// ListBetween retrieves every relationship joining a and b, in either direction.
func (r *RelationshipsRepository) ListBetween(ctx context.Context, a, b uuid.UUID) ([]*domain.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE (person1_id = $1 AND person2_id = $2) OR (person1_id = $2 AND person2_id = $1)
	`
	return r.queryRelationships(ctx, query, a, b)
}

// CountByTree counts a tree's relationships.
func (r *RelationshipsRepository) CountByTree(ctx context.Context, treeID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships WHERE tree_id = $1`, treeID).Scan(&n)
	return n, err
}

// Delete deletes a relationship.
func (r *RelationshipsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM relationships WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrRelationshipNotFound)
}

// DeleteByPerson deletes every relationship incident to a person and returns how many were removed.
func (r *RelationshipsRepository) DeleteByPerson(ctx context.Context, personID uuid.UUID) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM relationships WHERE person1_id = $1 OR person2_id = $1`, personID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
