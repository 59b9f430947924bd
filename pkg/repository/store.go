package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

// PersonStore persists tree persons.
type PersonStore interface {
	Create(ctx context.Context, person *domain.Person) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Person, error)
	// GetByIDForUpdate reads a person and holds its row lock until the surrounding
	// transaction ends. Use it inside InTx before writing the person back.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Person, error)
	GetByLinkedUser(ctx context.Context, userID uuid.UUID) (*domain.Person, error)
	ListByTree(ctx context.Context, treeID uuid.UUID, page domain.Page) ([]*domain.Person, error)
	ListAllByTree(ctx context.Context, treeID uuid.UUID) ([]*domain.Person, error)
	CountByTree(ctx context.Context, treeID uuid.UUID) (int, error)
	Update(ctx context.Context, person *domain.Person) error
	Delete(ctx context.Context, id uuid.UUID) error
	// LinkUser links an unlinked person to userID. It fails with ErrPersonAlreadyLinked if the
	// person is already linked and ErrUserAlreadyLinked if userID is linked elsewhere.
	LinkUser(ctx context.Context, personID, userID uuid.UUID, at time.Time) error
	SetPendingInvite(ctx context.Context, personID, inviteID uuid.UUID, email *string) error
	ClearPendingInvite(ctx context.Context, personID uuid.UUID) error
}

// RelationshipStore persists relationships between persons.
type RelationshipStore interface {
	Create(ctx context.Context, rel *domain.Relationship) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Relationship, error)
	ListByTree(ctx context.Context, treeID uuid.UUID, page domain.Page) ([]*domain.Relationship, error)
	ListByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.Relationship, error)
	ListBetween(ctx context.Context, a, b uuid.UUID) ([]*domain.Relationship, error)
	CountByTree(ctx context.Context, treeID uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByPerson(ctx context.Context, personID uuid.UUID) (int64, error)
}

// MembershipStore persists tree memberships.
type MembershipStore interface {
	// CreateIfAbsent inserts the membership unless one already exists for the (tree, user)
	// pair. It returns the stored row and whether this call created it.
	CreateIfAbsent(ctx context.Context, m *domain.Membership) (*domain.Membership, bool, error)
	Get(ctx context.Context, treeID, userID uuid.UUID) (*domain.Membership, error)
	ListByTree(ctx context.Context, treeID uuid.UUID) ([]*domain.Membership, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Membership, error)
	UpdateRole(ctx context.Context, treeID, userID uuid.UUID, role domain.Role) error
	Delete(ctx context.Context, treeID, userID uuid.UUID) error
}

// InviteStore persists invite links.
type InviteStore interface {
	Create(ctx context.Context, invite *domain.InviteLink) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.InviteLink, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.InviteLink, error)
	GetPendingForPerson(ctx context.Context, personID uuid.UUID) (*domain.InviteLink, error)
	ListByTree(ctx context.Context, treeID uuid.UUID) ([]*domain.InviteLink, error)
	// MarkExpired flips a pending invite to expired. It is a no-op for other statuses.
	MarkExpired(ctx context.Context, id uuid.UUID) error
	// MarkAccepted flips a pending invite to accepted, failing with a conflict if it is no longer pending.
	MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	ExpireForPerson(ctx context.Context, personID uuid.UUID) (int64, error)
}

// UserDirectory answers questions about platform accounts owned by the identity service.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Store groups the record stores and runs multi-record units of work atomically.
type Store interface {
	Persons() PersonStore
	Relationships() RelationshipStore
	Memberships() MembershipStore
	Invites() InviteStore
	// InTx runs fn against a Store whose writes commit together or not at all.
	InTx(ctx context.Context, fn func(Store) error) error
}
