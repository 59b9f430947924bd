package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PersonSource records how a person entered the tree.
type PersonSource string

const (
	SourceManual       PersonSource = "manual"
	SourceImported     PersonSource = "imported"
	SourcePlatformUser PersonSource = "platform_user"
)

// Valid reports whether s is a known source.
func (s PersonSource) Valid() bool {
	switch s {
	case SourceManual, SourceImported, SourcePlatformUser:
		return true
	}
	return false
}

// Gender values accepted for a person.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

// Person is a node in exactly one genealogy tree.
type Person struct {
	ID                 uuid.UUID
	TreeID             uuid.UUID
	FirstName          string
	LastName           string
	MaidenName         *string
	Gender             string
	BirthDate          *time.Time
	BirthPlace         *string
	DeathDate          *time.Time
	DeathPlace         *string
	Biography          *string
	Occupation         *string
	PhotoURL           *string
	Notes              *string
	Source             PersonSource
	LinkedUserID       *uuid.UUID
	IsAlive            bool
	PendingInviteID    *uuid.UUID
	PendingInviteEmail *string
	CreatedBy          uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DeriveAlive computes liveness: an explicit override wins, otherwise a person with a
// recorded death date is not alive.
func DeriveAlive(deathDate *time.Time, override *bool) bool {
	if override != nil {
		return *override
	}
	return deathDate == nil
}

// IsLinked returns true if the person is linked to a platform user.
func (p *Person) IsLinked() bool {
	return p.LinkedUserID != nil
}

// HasPendingInvite returns true if the person carries a pending invite marker.
func (p *Person) HasPendingInvite() bool {
	return p.PendingInviteID != nil
}

// DisplayName returns "First Last", falling back to whichever part is set.
func (p *Person) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Page selects a window of a listing. Zero values mean the first page of the default size.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
