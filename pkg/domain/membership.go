package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the level of access a user holds over a tree.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleMember, RoleViewer:
		return true
	}
	return false
}

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Membership grants one role to one user over one tree.
type Membership struct {
	TreeID    uuid.UUID
	UserID    uuid.UUID
	Role      Role
	GrantedBy *uuid.UUID
	JoinedAt  time.Time
}

// HasRole returns true if the membership role is one of roles.
func (m *Membership) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if m.Role == r {
			return true
		}
	}
	return false
}

// IsPersonalTree returns true if the membership is the user's own tree, keyed by their user id.
func (m *Membership) IsPersonalTree() bool {
	return m.TreeID == m.UserID
}
