package genealogy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
	"github.com/tendant/simple-genealogy/pkg/repository"
)

// InlineRelationship relates a person being created to an existing person of the same
// tree. The new person is Person1 of the edge: Type parent makes the new person a parent
// of RelatedPersonID.
type InlineRelationship struct {
	RelatedPersonID uuid.UUID               `json:"related_person_id"`
	Type            domain.RelationshipType `json:"relationship_type" validate:"required,oneof=parent child spouse sibling"`
	Notes           *string                 `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// PersonInput is the payload for creating a person.
type PersonInput struct {
	FirstName     string               `json:"first_name" validate:"required,max=100"`
	LastName      string               `json:"last_name" validate:"max=100"`
	MaidenName    *string              `json:"maiden_name,omitempty" validate:"omitempty,max=100"`
	Gender        string               `json:"gender,omitempty" validate:"omitempty,oneof=male female other unknown"`
	BirthDate     *time.Time           `json:"birth_date,omitempty"`
	BirthPlace    *string              `json:"birth_place,omitempty" validate:"omitempty,max=255"`
	DeathDate     *time.Time           `json:"death_date,omitempty"`
	DeathPlace    *string              `json:"death_place,omitempty" validate:"omitempty,max=255"`
	Biography     *string              `json:"biography,omitempty" validate:"omitempty,max=10000"`
	Occupation    *string              `json:"occupation,omitempty" validate:"omitempty,max=255"`
	PhotoURL      *string              `json:"photo_url,omitempty" validate:"omitempty,url,max=2048"`
	Notes         *string              `json:"notes,omitempty" validate:"omitempty,max=10000"`
	Source        domain.PersonSource  `json:"source,omitempty" validate:"omitempty,oneof=manual imported platform_user"`
	IsAlive       *bool                `json:"is_alive,omitempty"`
	LinkedUserID  *uuid.UUID           `json:"linked_user_id,omitempty"`
	Relationships []InlineRelationship `json:"relationships,omitempty" validate:"max=50,dive"`
}

// PersonPatch is a partial update. Nil fields are left unchanged.
type PersonPatch struct {
	FirstName      *string    `json:"first_name,omitempty" validate:"omitempty,min=1,max=100"`
	LastName       *string    `json:"last_name,omitempty" validate:"omitempty,max=100"`
	MaidenName     *string    `json:"maiden_name,omitempty" validate:"omitempty,max=100"`
	Gender         *string    `json:"gender,omitempty" validate:"omitempty,oneof=male female other unknown"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	BirthPlace     *string    `json:"birth_place,omitempty" validate:"omitempty,max=255"`
	DeathDate      *time.Time `json:"death_date,omitempty"`
	ClearDeathDate bool       `json:"clear_death_date,omitempty"`
	DeathPlace     *string    `json:"death_place,omitempty" validate:"omitempty,max=255"`
	Biography      *string    `json:"biography,omitempty" validate:"omitempty,max=10000"`
	Occupation     *string    `json:"occupation,omitempty" validate:"omitempty,max=255"`
	PhotoURL       *string    `json:"photo_url,omitempty" validate:"omitempty,url,max=2048"`
	Notes          *string    `json:"notes,omitempty" validate:"omitempty,max=10000"`
	IsAlive        *bool      `json:"is_alive,omitempty"`
	LinkedUserID   *uuid.UUID `json:"linked_user_id,omitempty"`
}

// PersonPage is one page of a tree's persons.
type PersonPage struct {
	Persons []*domain.Person
	Total   int
	Page    domain.Page
}

// PersonService manages the persons of a tree.
type PersonService struct {
	*env
	gate *AccessGate
}

func checkDates(birth, death *time.Time) error {
	if birth != nil && death != nil && death.Before(*birth) {
		return domain.NewError(domain.KindInvalidArgument, "death date is before birth date")
	}
	return nil
}

// checkLinkable verifies a user can be linked to personID: the account exists and is not
// linked to any other person.
func (s *PersonService) checkLinkable(ctx context.Context, persons repository.PersonStore, userID, personID uuid.UUID) error {
	if err := requireIDs(userID); err != nil {
		return err
	}
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrUserNotFound
	}
	linked, err := persons.GetByLinkedUser(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrPersonNotFound):
		return nil
	case err != nil:
		return err
	case linked.ID != personID:
		return domain.ErrUserAlreadyLinked
	}
	return nil
}

// Create adds a person to the tree, optionally linked to a platform user and related to
// existing persons. Every precondition is checked before the first write, and the person
// and its edges are written together.
func (s *PersonService) Create(ctx context.Context, actorID, treeID uuid.UUID, in PersonInput) (*domain.Person, []*domain.Relationship, error) {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, WriteRoles...); err != nil {
		return nil, nil, err
	}
	in.normalize()
	if err := validateInput(in); err != nil {
		return nil, nil, err
	}

	now := s.now()
	p := &domain.Person{
		ID:         uuid.New(),
		TreeID:     treeID,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		MaidenName: in.MaidenName,
		Gender:     in.Gender,
		BirthDate:  in.BirthDate,
		BirthPlace: in.BirthPlace,
		DeathDate:  in.DeathDate,
		DeathPlace: in.DeathPlace,
		Biography:  in.Biography,
		Occupation: in.Occupation,
		PhotoURL:   in.PhotoURL,
		Notes:      in.Notes,
		Source:     in.Source,
		IsAlive:    domain.DeriveAlive(in.DeathDate, in.IsAlive),
		CreatedBy:  actorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if p.Gender == "" {
		p.Gender = domain.GenderUnknown
	}
	if p.Source == "" {
		p.Source = domain.SourceManual
	}
	if err := checkDates(p.BirthDate, p.DeathDate); err != nil {
		return nil, nil, err
	}

	var rels []*domain.Relationship
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if in.LinkedUserID != nil {
			if err := s.checkLinkable(ctx, tx.Persons(), *in.LinkedUserID, p.ID); err != nil {
				return err
			}
			p.LinkedUserID = in.LinkedUserID
			p.Source = domain.SourcePlatformUser
		}

		for _, inline := range in.Relationships {
			if err := requireIDs(inline.RelatedPersonID); err != nil {
				return err
			}
			target, err := tx.Persons().GetByID(ctx, inline.RelatedPersonID)
			if err != nil {
				return err
			}
			rel := &domain.Relationship{
				ID:        uuid.New(),
				TreeID:    treeID,
				Person1ID: p.ID,
				Person2ID: target.ID,
				Type:      inline.Type,
				Notes:     inline.Notes,
				CreatedBy: actorID,
				CreatedAt: now,
			}
			if err := checkEdge(ctx, tx.Relationships(), treeID, p, target, rel, rels); err != nil {
				return err
			}
			rels = append(rels, rel)
		}

		if err := tx.Persons().Create(ctx, p); err != nil {
			return err
		}
		for _, rel := range rels {
			if err := tx.Relationships().Create(ctx, rel); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit(ctx, AuditEvent{
		Action:       AuditCreate,
		ActorID:      actorID,
		TreeID:       treeID,
		ResourceType: ResourcePerson,
		ResourceID:   p.ID.String(),
		Changes:      diffPersons(&domain.Person{}, p),
	})
	for _, rel := range rels {
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
	}
	return p, rels, nil
}

// Get returns a person of the tree.
func (s *PersonService) Get(ctx context.Context, actorID, treeID, personID uuid.UUID) (*domain.Person, error) {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, ReadRoles...); err != nil {
		return nil, err
	}
	return personInTree(ctx, s.store, treeID, personID)
}

// List returns one page of the tree's persons ordered by name.
func (s *PersonService) List(ctx context.Context, actorID, treeID uuid.UUID, page domain.Page) (*PersonPage, error) {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, ReadRoles...); err != nil {
		return nil, err
	}
	page = page.Normalize()
	persons, err := s.store.Persons().ListByTree(ctx, treeID, page)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Persons().CountByTree(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return &PersonPage{Persons: persons, Total: total, Page: page}, nil
}

// Update applies a patch. Liveness is re-derived when the death date or the override
// changes; linking follows the same rules as Create and cancels any pending invite.
func (s *PersonService) Update(ctx context.Context, actorID, treeID, personID uuid.UUID, patch PersonPatch) (*domain.Person, error) {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, WriteRoles...); err != nil {
		return nil, err
	}
	patch.normalize()
	if err := validateInput(patch); err != nil {
		return nil, err
	}

	var before, after *domain.Person
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		current, err := lockPersonInTree(ctx, tx, treeID, personID)
		if err != nil {
			return err
		}
		snapshot := *current
		before = &snapshot
		next := applyPatch(current, patch)

		if patch.LinkedUserID != nil && !sameUser(before.LinkedUserID, patch.LinkedUserID) {
			if before.IsLinked() {
				return domain.ErrPersonAlreadyLinked
			}
			if err := s.checkLinkable(ctx, tx.Persons(), *patch.LinkedUserID, personID); err != nil {
				return err
			}
			next.LinkedUserID = patch.LinkedUserID
			next.Source = domain.SourcePlatformUser
			next.PendingInviteID = nil
			next.PendingInviteEmail = nil
			if _, err := tx.Invites().ExpireForPerson(ctx, personID); err != nil {
				return err
			}
			if err := tx.Persons().ClearPendingInvite(ctx, personID); err != nil {
				return err
			}
		}
		if err := checkDates(next.BirthDate, next.DeathDate); err != nil {
			return err
		}
		next.UpdatedAt = s.now()
		if err := tx.Persons().Update(ctx, next); err != nil {
			return err
		}
		after = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changes := diffPersons(before, after); len(changes) > 0 {
		s.audit(ctx, AuditEvent{
			Action:       AuditUpdate,
			ActorID:      actorID,
			TreeID:       treeID,
			ResourceType: ResourcePerson,
			ResourceID:   personID.String(),
			Changes:      changes,
		})
	}
	return after, nil
}

func sameUser(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func applyPatch(p *domain.Person, patch PersonPatch) *domain.Person {
	if patch.FirstName != nil {
		p.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		p.LastName = *patch.LastName
	}
	if patch.MaidenName != nil {
		p.MaidenName = patch.MaidenName
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	if patch.BirthDate != nil {
		p.BirthDate = patch.BirthDate
	}
	if patch.BirthPlace != nil {
		p.BirthPlace = patch.BirthPlace
	}
	if patch.DeathPlace != nil {
		p.DeathPlace = patch.DeathPlace
	}
	if patch.Biography != nil {
		p.Biography = patch.Biography
	}
	if patch.Occupation != nil {
		p.Occupation = patch.Occupation
	}
	if patch.PhotoURL != nil {
		p.PhotoURL = patch.PhotoURL
	}
	if patch.Notes != nil {
		p.Notes = patch.Notes
	}

	lifeChanged := patch.IsAlive != nil || patch.DeathDate != nil || patch.ClearDeathDate
	if patch.ClearDeathDate {
		p.DeathDate = nil
	} else if patch.DeathDate != nil {
		p.DeathDate = patch.DeathDate
	}
	if lifeChanged {
		p.IsAlive = domain.DeriveAlive(p.DeathDate, patch.IsAlive)
	}
	return p
}

// Delete removes a person, its edges and its pending invites. Owners only.
func (s *PersonService) Delete(ctx context.Context, actorID, treeID, personID uuid.UUID) error {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, OwnerRoles...); err != nil {
		return err
	}

	var (
		removed int64
		deleted *domain.Person
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		p, err := lockPersonInTree(ctx, tx, treeID, personID)
		if err != nil {
			return err
		}
		deleted = p
		if removed, err = tx.Relationships().DeleteByPerson(ctx, personID); err != nil {
			return err
		}
		if _, err := tx.Invites().ExpireForPerson(ctx, personID); err != nil {
			return err
		}
		return tx.Persons().Delete(ctx, personID)
	})
	if err != nil {
		return err
	}

	s.audit(ctx, AuditEvent{
		Action:       AuditDelete,
		ActorID:      actorID,
		TreeID:       treeID,
		ResourceType: ResourcePerson,
		ResourceID:   personID.String(),
		Changes: map[string]FieldChange{
			"name":                  {Old: deleted.DisplayName()},
			"relationships_removed": {Old: removed},
		},
	})
	return nil
}
