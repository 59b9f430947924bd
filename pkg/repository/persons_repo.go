package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

const personColumns = `id, tree_id, first_name, last_name, maiden_name, gender,
		birth_date, birth_place, death_date, death_place, biography, occupation, photo_url, notes,
		source, linked_user_id, is_alive, pending_invite_id, pending_invite_email,
		created_by, created_at, updated_at`

// PersonsRepository handles person persistence.
type PersonsRepository struct {
	q Querier
}

// NewPersonsRepository creates a new persons repository.
func NewPersonsRepository(q Querier) *PersonsRepository {
	return &PersonsRepository{q: q}
}

func scanPerson(row rowScanner) (*domain.Person, error) {
	p := &domain.Person{}
	err := row.Scan(
		&p.ID, &p.TreeID, &p.FirstName, &p.LastName, &p.MaidenName, &p.Gender,
		&p.BirthDate, &p.BirthPlace, &p.DeathDate, &p.DeathPlace, &p.Biography, &p.Occupation, &p.PhotoURL, &p.Notes,
		&p.Source, &p.LinkedUserID, &p.IsAlive, &p.PendingInviteID, &p.PendingInviteEmail,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PersonsRepository) queryPersons(ctx context.Context, query string, args ...any) ([]*domain.Person, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var persons []*domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

// Create inserts a person.
func (r *PersonsRepository) Create(ctx context.Context, p *domain.Person) error {
	query := `
		INSERT INTO persons (` + personColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err := r.q.ExecContext(ctx, query,
		p.ID, p.TreeID, p.FirstName, p.LastName, p.MaidenName, p.Gender,
		p.BirthDate, p.BirthPlace, p.DeathDate, p.DeathPlace, p.Biography, p.Occupation, p.PhotoURL, p.Notes,
		p.Source, p.LinkedUserID, p.IsAlive, p.PendingInviteID, p.PendingInviteEmail,
		p.CreatedBy, p.CreatedAt, p.UpdatedAt,
	)
	return mapWriteError(err)
}

// GetByID retrieves a person by ID.
func (r *PersonsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = $1`
	p, err := scanPerson(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPersonNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByIDForUpdate retrieves a person and locks its row for the rest of the transaction.
func (r *PersonsRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = $1 FOR UPDATE`
	p, err := scanPerson(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPersonNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByLinkedUser retrieves the person linked to a platform user.
func (r *PersonsRepository) GetByLinkedUser(ctx context.Context, userID uuid.UUID) (*domain.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE linked_user_id = $1`
	p, err := scanPerson(r.q.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPersonNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListByTree retrieves one page of a tree's persons ordered by name.
func (r *PersonsRepository) ListByTree(ctx context.Context, treeID uuid.UUID, page domain.Page) ([]*domain.Person, error) {
	page = page.Normalize()
	query := `
		SELECT ` + personColumns + `
		FROM persons
		WHERE tree_id = $1
		ORDER BY last_name ASC, first_name ASC, id ASC
		LIMIT $2 OFFSET $3
	`
	return r.queryPersons(ctx, query, treeID, page.Limit, page.Offset)
}

// ListAllByTree retrieves every person of a tree.
func (r *PersonsRepository) ListAllByTree(ctx context.Context, treeID uuid.UUID) ([]*domain.Person, error) {
	query := `
		SELECT ` + personColumns + `
		FROM persons
		WHERE tree_id = $1
		ORDER BY last_name ASC, first_name ASC, id ASC
	`
	return r.queryPersons(ctx, query, treeID)
}

// CountByTree counts a tree's persons.
func (r *PersonsRepository) CountByTree(ctx context.Context, treeID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons WHERE tree_id = $1`, treeID).Scan(&n)
	return n, err
}

// Update writes every mutable column of a person.
func (r *PersonsRepository) Update(ctx context.Context, p *domain.Person) error {
	query := `
		UPDATE persons
		SET first_name = $2, last_name = $3, maiden_name = $4, gender = $5,
		    birth_date = $6, birth_place = $7, death_date = $8, death_place = $9,
		    biography = $10, occupation = $11, photo_url = $12, notes = $13,
		    source = $14, linked_user_id = $15, is_alive = $16, updated_at = $17
		WHERE id = $1
	`
	result, err := r.q.ExecContext(ctx, query,
		p.ID, p.FirstName, p.LastName, p.MaidenName, p.Gender,
		p.BirthDate, p.BirthPlace, p.DeathDate, p.DeathPlace,
		p.Biography, p.Occupation, p.PhotoURL, p.Notes,
		p.Source, p.LinkedUserID, p.IsAlive, p.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOneRow(result, domain.ErrPersonNotFound)
}

// Delete permanently deletes a person. Incident relationships are removed by the caller first;
// the foreign keys cascade as a backstop.
func (r *PersonsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrPersonNotFound)
}

// LinkUser links an unlinked person to a platform user and clears any pending invite marker.
func (r *PersonsRepository) LinkUser(ctx context.Context, personID, userID uuid.UUID, at time.Time) error {
	query := `
		UPDATE persons
		SET linked_user_id = $2, source = $3, is_alive = TRUE,
		    pending_invite_id = NULL, pending_invite_email = NULL, updated_at = $4
		WHERE id = $1 AND linked_user_id IS NULL
	`
	result, err := r.q.ExecContext(ctx, query, personID, userID, domain.SourcePlatformUser, at)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOneRow(result, domain.ErrPersonAlreadyLinked)
}

// SetPendingInvite stamps the denormalized pending invite marker on a person.
func (r *PersonsRepository) SetPendingInvite(ctx context.Context, personID, inviteID uuid.UUID, email *string) error {
	query := `
		UPDATE persons
		SET pending_invite_id = $2, pending_invite_email = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.q.ExecContext(ctx, query, personID, inviteID, email)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrPersonNotFound)
}

// ClearPendingInvite removes the pending invite marker from a person.
func (r *PersonsRepository) ClearPendingInvite(ctx context.Context, personID uuid.UUID) error {
	query := `
		UPDATE persons
		SET pending_invite_id = NULL, pending_invite_email = NULL, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.q.ExecContext(ctx, query, personID)
	return err
}
