package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers; transports map it to a status code.
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindConflict        Kind = "conflict"
	KindGone            Kind = "gone"
)

// Error is a domain error carrying a kind, a human-readable message and optional details.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is reports whether target is a bare kind sentinel (no message) of the same kind.
// Named errors only match themselves.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// NewError creates a domain error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a domain error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first domain error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Kind sentinels. errors.Is(err, ErrNotFound) is true for every not-found error.
var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrGone            = &Error{Kind: KindGone}
)

// Lookup errors
var (
	ErrPersonNotFound       = NewError(KindNotFound, "person not found")
	ErrRelationshipNotFound = NewError(KindNotFound, "relationship not found")
	ErrMembershipNotFound   = NewError(KindNotFound, "membership not found")
	ErrInviteNotFound       = NewError(KindNotFound, "invite not found")
	ErrUserNotFound         = NewError(KindNotFound, "user not found")
)

// Invariant violations
var (
	ErrUserAlreadyLinked     = NewError(KindConflict, "user is already linked to another person")
	ErrPersonAlreadyLinked   = NewError(KindConflict, "person is already linked to a user")
	ErrMembershipExists      = NewError(KindConflict, "user is already a member of this tree")
	ErrRelationshipExists    = NewError(KindConflict, "relationship already exists")
	ErrInvitePending         = NewError(KindConflict, "a pending invite already exists for this person")
	ErrCrossTreeRelationship = NewError(KindForbidden, "persons belong to different trees")
	ErrSelfRelationship      = NewError(KindInvalidArgument, "a person cannot be related to themselves")
	ErrInverseRelationship   = NewError(KindConflict, "inverse parent relationship already exists")
	ErrTreeOwnerImmutable    = NewError(KindForbidden, "the tree owner's membership cannot be changed")
	ErrInviteExpired         = NewError(KindGone, "invite has expired")
	ErrInviteNotPending      = NewError(KindConflict, "invite is no longer pending")
	ErrPersonDeceased        = NewError(KindInvalidArgument, "cannot invite a person who is not alive")
	ErrAccessDenied          = NewError(KindForbidden, "access denied")
	ErrLastOwner             = NewError(KindConflict, "a tree must keep at least one owner")
)

// Validation errors
var (
	ErrInvalidID               = NewError(KindInvalidArgument, "invalid id")
	ErrInvalidRole             = NewError(KindInvalidArgument, "invalid role")
	ErrInvalidRelationshipType = NewError(KindInvalidArgument, "invalid relationship type")
	ErrInvalidEmail            = NewError(KindInvalidArgument, "invalid email address")
)

// Forbidden builds an access error that records which roles were required and which role the caller holds.
func Forbidden(required []Role, actual Role) *Error {
	names := make([]string, len(required))
	for i, r := range required {
		names[i] = string(r)
	}
	return &Error{
		Kind:    KindForbidden,
		Message: "insufficient role for this operation",
		Details: map[string]any{
			"required_roles": names,
			"actual_role":    string(actual),
		},
	}
}

// InviteNotPending reports an attempt to redeem an invite that is no longer pending.
func InviteNotPending(status InviteStatus) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("invite is %s", status),
		Details: map[string]any{"status": string(status)},
	}
}
