package domain

import (
	"time"

	"github.com/google/uuid"
)

// InviteStatus is the state of an invite link.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusExpired  InviteStatus = "expired"
)

// InviteLink is a single-use token that links a tree person to a future platform account.
// Only the SHA-256 hash of the token is stored.
type InviteLink struct {
	ID         uuid.UUID
	TreeID     uuid.UUID
	PersonID   uuid.UUID
	TokenHash  string
	Email      *string
	Message    *string
	Status     InviteStatus
	InvitedBy  uuid.UUID
	CreatedAt  time.Time
	ExpiresAt  time.Time
	AcceptedBy *uuid.UUID
	AcceptedAt *time.Time
}

// IsExpiredAt returns true if the invite is past its expiry at now.
func (i *InviteLink) IsExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsRedeemableAt returns true if the invite is pending and unexpired at now.
func (i *InviteLink) IsRedeemableAt(now time.Time) bool {
	return i.Status == InviteStatusPending && !i.IsExpiredAt(now)
}

// NeedsExpiry returns true if a pending invite has lapsed and should be flipped to expired.
func (i *InviteLink) NeedsExpiry(now time.Time) bool {
	return i.Status == InviteStatusPending && i.IsExpiredAt(now)
}
