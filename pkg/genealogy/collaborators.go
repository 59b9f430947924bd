package genealogy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

// EventType names a notification event.
type EventType string

const (
	EventInviteAccepted EventType = "invite_accepted"
	EventAccessGranted  EventType = "access_granted"
)

// Event is a fire-and-forget notification emitted after a core operation commits.
type Event struct {
	Type        EventType   `json:"type"`
	TreeID      uuid.UUID   `json:"tree_id"`
	TreeOwnerID *uuid.UUID  `json:"tree_owner_id,omitempty"`
	PersonID    *uuid.UUID  `json:"person_id,omitempty"`
	UserID      *uuid.UUID  `json:"user_id,omitempty"`
	Role        domain.Role `json:"role,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// Notifier delivers events to users. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// AuditAction is the operation an audit event records.
type AuditAction string

const (
	AuditCreate     AuditAction = "create"
	AuditUpdate     AuditAction = "update"
	AuditDelete     AuditAction = "delete"
	AuditGrant      AuditAction = "grant"
	AuditRoleChange AuditAction = "role_change"
	AuditRevoke     AuditAction = "revoke"
	AuditRedeem     AuditAction = "redeem"
)

// Audited resource types.
const (
	ResourcePerson       = "person"
	ResourceRelationship = "relationship"
	ResourceMembership   = "membership"
	ResourceInvite       = "invite"
)

// FieldChange is one entry of an audit diff.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// AuditEvent describes a mutation for the audit log.
type AuditEvent struct {
	Action       AuditAction            `json:"action"`
	ActorID      uuid.UUID              `json:"actor_id"`
	TreeID       uuid.UUID              `json:"tree_id"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Changes      map[string]FieldChange `json:"changes,omitempty"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// Auditor records audit events. Recording is best effort.
type Auditor interface {
	Record(ctx context.Context, ev AuditEvent) error
}

// InviteEmail is the content of an invitation email.
type InviteEmail struct {
	To          string
	InviterName string
	PersonName  string
	Message     string
	URL         string
	ExpiresAt   time.Time
}

// InviteMailer sends invitation emails.
type InviteMailer interface {
	SendInviteEmail(ctx context.Context, msg InviteEmail) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

// NopAuditor drops every audit event.
type NopAuditor struct{}

func (NopAuditor) Record(context.Context, AuditEvent) error { return nil }
