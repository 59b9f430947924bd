package genealogy

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
	"github.com/tendant/simple-genealogy/pkg/repository"
	"go.uber.org/zap"
)

// Role sets for EnsureAccess. Roles are never implied, so owner appears in every set
// owners should pass.
var (
	ReadRoles  = []domain.Role{domain.RoleOwner, domain.RoleMember, domain.RoleViewer}
	WriteRoles = []domain.Role{domain.RoleOwner, domain.RoleMember}
	OwnerRoles = []domain.Role{domain.RoleOwner}
)

// AccessGate decides who may touch a tree and manages tree memberships.
type AccessGate struct {
	*env
}

// EnsureAccess returns the caller's membership in the tree, checking it against roles
// when any are given. The first touch of a personal tree (treeID == userID) creates the
// owner membership; concurrent first touches converge on the same row.
func (g *AccessGate) EnsureAccess(ctx context.Context, treeID, userID uuid.UUID, roles ...domain.Role) (*domain.Membership, error) {
	if err := requireIDs(treeID, userID); err != nil {
		return nil, err
	}

	m, err := g.store.Memberships().Get(ctx, treeID, userID)
	switch {
	case errors.Is(err, domain.ErrMembershipNotFound):
		if treeID != userID {
			return nil, domain.ErrAccessDenied
		}
		m, err = g.bootstrapOwner(ctx, userID)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if len(roles) > 0 && !m.HasRole(roles...) {
		return nil, domain.Forbidden(roles, m.Role)
	}
	return m, nil
}

func (g *AccessGate) bootstrapOwner(ctx context.Context, userID uuid.UUID) (*domain.Membership, error) {
	m, created, err := g.store.Memberships().CreateIfAbsent(ctx, &domain.Membership{
		TreeID:   userID,
		UserID:   userID,
		Role:     domain.RoleOwner,
		JoinedAt: g.now(),
	})
	if err != nil {
		return nil, err
	}
	if created {
		membershipBootstraps.Inc()
		g.log.Info("bootstrapped personal tree", zap.String("user_id", userID.String()))
	}
	return m, nil
}

// Grant adds a user to a tree with a role. Only owners may grant.
func (g *AccessGate) Grant(ctx context.Context, treeID, actorID, userID uuid.UUID, role domain.Role) (*domain.Membership, error) {
	if _, err := g.EnsureAccess(ctx, treeID, actorID, OwnerRoles...); err != nil {
		return nil, err
	}
	if err := requireIDs(userID); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	exists, err := g.users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	m, created, err := g.store.Memberships().CreateIfAbsent(ctx, &domain.Membership{
		TreeID:    treeID,
		UserID:    userID,
		Role:      role,
		GrantedBy: &actorID,
		JoinedAt:  g.now(),
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, domain.ErrMembershipExists
	}

	g.notify(ctx, Event{Type: EventAccessGranted, TreeID: treeID, UserID: &userID, Role: role})
	g.audit(ctx, AuditEvent{
		Action:       AuditGrant,
		ActorID:      actorID,
		TreeID:       treeID,
		ResourceType: ResourceMembership,
		ResourceID:   userID.String(),
		Changes:      map[string]FieldChange{"role": {Old: nil, New: role}},
	})
	return m, nil
}

// ChangeRole changes a member's role. The personal tree's own user is always owner, and
// a tree never loses its last owner.
func (g *AccessGate) ChangeRole(ctx context.Context, treeID, actorID, userID uuid.UUID, role domain.Role) (*domain.Membership, error) {
	if _, err := g.EnsureAccess(ctx, treeID, actorID, OwnerRoles...); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	if userID == treeID {
		return nil, domain.ErrTreeOwnerImmutable
	}

	var updated *domain.Membership
	var old domain.Role
	err := g.store.InTx(ctx, func(tx repository.Store) error {
		current, err := tx.Memberships().Get(ctx, treeID, userID)
		if err != nil {
			return err
		}
		old = current.Role
		if current.Role == domain.RoleOwner && role != domain.RoleOwner {
			if err := ensureAnotherOwner(ctx, tx, treeID, userID); err != nil {
				return err
			}
		}
		if err := tx.Memberships().UpdateRole(ctx, treeID, userID, role); err != nil {
			return err
		}
		current.Role = role
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if old != role {
		g.audit(ctx, AuditEvent{
			Action:       AuditRoleChange,
			ActorID:      actorID,
			TreeID:       treeID,
			ResourceType: ResourceMembership,
			ResourceID:   userID.String(),
			Changes:      map[string]FieldChange{"role": {Old: old, New: role}},
		})
	}
	return updated, nil
}

// Revoke removes a user's membership.
func (g *AccessGate) Revoke(ctx context.Context, treeID, actorID, userID uuid.UUID) error {
	if _, err := g.EnsureAccess(ctx, treeID, actorID, OwnerRoles...); err != nil {
		return err
	}
	if userID == treeID {
		return domain.ErrTreeOwnerImmutable
	}

	var old domain.Role
	err := g.store.InTx(ctx, func(tx repository.Store) error {
		current, err := tx.Memberships().Get(ctx, treeID, userID)
		if err != nil {
			return err
		}
		old = current.Role
		if current.Role == domain.RoleOwner {
			if err := ensureAnotherOwner(ctx, tx, treeID, userID); err != nil {
				return err
			}
		}
		return tx.Memberships().Delete(ctx, treeID, userID)
	})
	if err != nil {
		return err
	}

	g.audit(ctx, AuditEvent{
		Action:       AuditRevoke,
		ActorID:      actorID,
		TreeID:       treeID,
		ResourceType: ResourceMembership,
		ResourceID:   userID.String(),
		Changes:      map[string]FieldChange{"role": {Old: old, New: nil}},
	})
	return nil
}

func ensureAnotherOwner(ctx context.Context, tx repository.Store, treeID, leaving uuid.UUID) error {
	members, err := tx.Memberships().ListByTree(ctx, treeID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.UserID != leaving && m.Role == domain.RoleOwner {
			return nil
		}
	}
	return domain.ErrLastOwner
}

// ListMembers lists the memberships of a tree.
func (g *AccessGate) ListMembers(ctx context.Context, treeID, actorID uuid.UUID) ([]*domain.Membership, error) {
	if _, err := g.EnsureAccess(ctx, treeID, actorID, ReadRoles...); err != nil {
		return nil, err
	}
	return g.store.Memberships().ListByTree(ctx, treeID)
}

// ListTreesForUser lists every tree the user belongs to, personal tree included.
func (g *AccessGate) ListTreesForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Membership, error) {
	if _, err := g.EnsureAccess(ctx, userID, userID); err != nil {
		return nil, err
	}
	return g.store.Memberships().ListByUser(ctx, userID)
}
