package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the slice of the identity service's account record this service reads.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      *string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// DisplayName returns the user's name, or the email when no name is set.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}

// IsActive returns true if the account has not been deleted.
func (u *User) IsActive() bool {
	return u.DeletedAt == nil
}
