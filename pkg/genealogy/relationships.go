package genealogy

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
	"github.com/tendant/simple-genealogy/pkg/repository"
)

// RelationshipInput describes a new edge. A parent edge means Person1 is a parent of
// Person2; a child edge means Person1 is a child of Person2.
type RelationshipInput struct {
	Person1ID uuid.UUID               `json:"person1_id"`
	Person2ID uuid.UUID               `json:"person2_id"`
	Type      domain.RelationshipType `json:"relationship_type" validate:"required,oneof=parent child spouse sibling"`
	Notes     *string                 `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// RelationshipService manages the edges of a tree.
type RelationshipService struct {
	*env
	gate *AccessGate
}

// Create adds an edge between two persons of the tree.
func (s *RelationshipService) Create(ctx context.Context, actorID, treeID uuid.UUID, in RelationshipInput) (*domain.Relationship, error) {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, WriteRoles...); err != nil {
		return nil, err
	}
	if err := requireIDs(in.Person1ID, in.Person2ID); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Person1ID == in.Person2ID {
		return nil, domain.ErrSelfRelationship
	}

	rel := &domain.Relationship{
		ID:        uuid.New(),
		TreeID:    treeID,
		Person1ID: in.Person1ID,
		Person2ID: in.Person2ID,
		Type:      in.Type,
		Notes:     in.Notes,
		CreatedBy: actorID,
		CreatedAt: s.now(),
	}
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		p1, p2, err := lockPair(ctx, tx, in.Person1ID, in.Person2ID)
		if err != nil {
			return err
		}
		if err := checkEdge(ctx, tx.Relationships(), treeID, p1, p2, rel, nil); err != nil {
			return err
		}
		return tx.Relationships().Create(ctx, rel)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, AuditEvent{
		Action:       AuditCreate,
		ActorID:      actorID,
		TreeID:       treeID,
		ResourceType: ResourceRelationship,
		ResourceID:   rel.ID.String(),
		Changes: map[string]FieldChange{
			"person1_id":        {New: rel.Person1ID},
			"person2_id":        {New: rel.Person2ID},
			"relationship_type": {New: rel.Type},
		},
	})
	return rel, nil
}

// checkEdge is the single gate every new edge passes through, whether created directly
// or inline with a person. pending holds edges accepted earlier in the same request.
func checkEdge(ctx context.Context, rels repository.RelationshipStore, treeID uuid.UUID, p1, p2 *domain.Person, rel *domain.Relationship, pending []*domain.Relationship) error {
	if !rel.Type.Valid() {
		return domain.ErrInvalidRelationshipType
	}
	if p1.ID == p2.ID {
		return domain.ErrSelfRelationship
	}
	if p1.TreeID != treeID || p2.TreeID != treeID {
		return domain.ErrCrossTreeRelationship
	}

	existing, err := rels.ListBetween(ctx, p1.ID, p2.ID)
	if err != nil {
		return err
	}
	existing = append(existing, pending...)
	for _, e := range existing {
		if !e.Involves(p1.ID) || !e.Involves(p2.ID) {
			continue
		}
		if e.SameEdge(rel) {
			return domain.ErrRelationshipExists
		}
		if e.InverseOf(rel) {
			return domain.ErrInverseRelationship
		}
	}
	return nil
}

// List returns one page of the tree's edges.
func (s *RelationshipService) List(ctx context.Context, actorID, treeID uuid.UUID, page domain.Page) ([]*domain.Relationship, error) {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, ReadRoles...); err != nil {
		return nil, err
	}
	return s.store.Relationships().ListByTree(ctx, treeID, page)
}

// ListForPerson returns every edge touching a person of the tree.
func (s *RelationshipService) ListForPerson(ctx context.Context, actorID, treeID, personID uuid.UUID) ([]*domain.Relationship, error) {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, ReadRoles...); err != nil {
		return nil, err
	}
	if _, err := personInTree(ctx, s.store, treeID, personID); err != nil {
		return nil, err
	}
	return s.store.Relationships().ListByPerson(ctx, personID)
}

// Delete removes one edge of the tree.
func (s *RelationshipService) Delete(ctx context.Context, actorID, treeID, relID uuid.UUID) error {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, WriteRoles...); err != nil {
		return err
	}
	if err := requireIDs(relID); err != nil {
		return err
	}
	rel, err := s.store.Relationships().GetByID(ctx, relID)
	if err != nil {
		return err
	}
	if rel.TreeID != treeID {
		return domain.ErrRelationshipNotFound
	}
	if err := s.store.Relationships().Delete(ctx, relID); err != nil {
		return err
	}

	s.audit(ctx, AuditEvent{
		Action:       AuditDelete,
		ActorID:      actorID,
		TreeID:       treeID,
		ResourceType: ResourceRelationship,
		ResourceID:   relID.String(),
		Changes: map[string]FieldChange{
			"person1_id":        {Old: rel.Person1ID},
			"person2_id":        {Old: rel.Person2ID},
			"relationship_type": {Old: rel.Type},
		},
	})
	return nil
}

// lockPair locks both endpoints of a new edge in id order.
func lockPair(ctx context.Context, tx repository.Store, id1, id2 uuid.UUID) (*domain.Person, *domain.Person, error) {
	first, second := id1, id2
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}
	locked := make(map[uuid.UUID]*domain.Person, 2)
	for _, id := range []uuid.UUID{first, second} {
		p, err := tx.Persons().GetByIDForUpdate(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		locked[id] = p
	}
	return locked[id1], locked[id2], nil
}

// personInTree loads a person and hides persons of other trees behind NotFound.
func personInTree(ctx context.Context, store repository.Store, treeID, personID uuid.UUID) (*domain.Person, error) {
	return loadInTree(ctx, store.Persons().GetByID, treeID, personID)
}

// lockPersonInTree is personInTree holding the row lock until the transaction ends.
func lockPersonInTree(ctx context.Context, tx repository.Store, treeID, personID uuid.UUID) (*domain.Person, error) {
	return loadInTree(ctx, tx.Persons().GetByIDForUpdate, treeID, personID)
}

func loadInTree(ctx context.Context, get func(context.Context, uuid.UUID) (*domain.Person, error), treeID, personID uuid.UUID) (*domain.Person, error) {
	if err := requireIDs(personID); err != nil {
		return nil, err
	}
	p, err := get(ctx, personID)
	if err != nil {
		return nil, err
	}
	if p.TreeID != treeID {
		return nil, domain.ErrPersonNotFound
	}
	return p, nil
}
