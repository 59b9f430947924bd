package common

import (
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
	"github.com/tendant/simple-genealogy/pkg/genealogy"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses an optional calendar date. Nil and empty strings yield nil.
func ParseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// PersonResponse represents a person in API responses.
type PersonResponse struct {
	ID                 string  `json:"id"`
	TreeID             string  `json:"tree_id"`
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name"`
	MaidenName         *string `json:"maiden_name,omitempty"`
	Gender             string  `json:"gender,omitempty"`
	BirthDate          *string `json:"birth_date,omitempty"`
	BirthPlace         *string `json:"birth_place,omitempty"`
	DeathDate          *string `json:"death_date,omitempty"`
	DeathPlace         *string `json:"death_place,omitempty"`
	Biography          *string `json:"biography,omitempty"`
	Occupation         *string `json:"occupation,omitempty"`
	PhotoURL           *string `json:"photo_url,omitempty"`
	Notes              *string `json:"notes,omitempty"`
	Source             string  `json:"source"`
	IsAlive            bool    `json:"is_alive"`
	LinkedUserID       *string `json:"linked_user_id,omitempty"`
	PendingInviteID    *string `json:"pending_invite_id,omitempty"`
	PendingInviteEmail *string `json:"pending_invite_email,omitempty"`
	CreatedBy          string  `json:"created_by"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

func optionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// NewPersonResponse maps a person to its response.
func NewPersonResponse(p *domain.Person) PersonResponse {
	return PersonResponse{
		ID:                 p.ID.String(),
		TreeID:             p.TreeID.String(),
		FirstName:          p.FirstName,
		LastName:           p.LastName,
		MaidenName:         p.MaidenName,
		Gender:             p.Gender,
		BirthDate:          formatDate(p.BirthDate),
		BirthPlace:         p.BirthPlace,
		DeathDate:          formatDate(p.DeathDate),
		DeathPlace:         p.DeathPlace,
		Biography:          p.Biography,
		Occupation:         p.Occupation,
		PhotoURL:           p.PhotoURL,
		Notes:              p.Notes,
		Source:             string(p.Source),
		IsAlive:            p.IsAlive,
		LinkedUserID:       optionalID(p.LinkedUserID),
		PendingInviteID:    optionalID(p.PendingInviteID),
		PendingInviteEmail: p.PendingInviteEmail,
		CreatedBy:          p.CreatedBy.String(),
		CreatedAt:          p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// RelationshipResponse represents an edge in API responses.
type RelationshipResponse struct {
	ID               string  `json:"id"`
	TreeID           string  `json:"tree_id"`
	Person1ID        string  `json:"person1_id"`
	Person2ID        string  `json:"person2_id"`
	RelationshipType string  `json:"relationship_type"`
	Notes            *string `json:"notes,omitempty"`
	CreatedBy        string  `json:"created_by"`
	CreatedAt        string  `json:"created_at"`
}

// NewRelationshipResponse maps a relationship to its response.
func NewRelationshipResponse(r *domain.Relationship) RelationshipResponse {
	return RelationshipResponse{
		ID:               r.ID.String(),
		TreeID:           r.TreeID.String(),
		Person1ID:        r.Person1ID.String(),
		Person2ID:        r.Person2ID.String(),
		RelationshipType: string(r.Type),
		Notes:            r.Notes,
		CreatedBy:        r.CreatedBy.String(),
		CreatedAt:        r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// NewRelationshipResponses maps a slice of relationships.
func NewRelationshipResponses(rels []*domain.Relationship) []RelationshipResponse {
	out := make([]RelationshipResponse, len(rels))
	for i, r := range rels {
		out[i] = NewRelationshipResponse(r)
	}
	return out
}

// MembershipResponse represents a tree membership.
type MembershipResponse struct {
	TreeID    string  `json:"tree_id"`
	UserID    string  `json:"user_id"`
	Role      string  `json:"role"`
	GrantedBy *string `json:"granted_by,omitempty"`
	JoinedAt  string  `json:"joined_at"`
}

// NewMembershipResponse maps a membership to its response.
func NewMembershipResponse(m *domain.Membership) MembershipResponse {
	return MembershipResponse{
		TreeID:    m.TreeID.String(),
		UserID:    m.UserID.String(),
		Role:      string(m.Role),
		GrantedBy: optionalID(m.GrantedBy),
		JoinedAt:  m.JoinedAt.UTC().Format(time.RFC3339),
	}
}

// NewMembershipResponses maps a slice of memberships.
func NewMembershipResponses(ms []*domain.Membership) []MembershipResponse {
	out := make([]MembershipResponse, len(ms))
	for i, m := range ms {
		out[i] = NewMembershipResponse(m)
	}
	return out
}

// InviteResponse represents an invite link. The token hash is never exposed.
type InviteResponse struct {
	ID         string  `json:"id"`
	TreeID     string  `json:"tree_id"`
	PersonID   string  `json:"person_id"`
	Email      *string `json:"email,omitempty"`
	Message    *string `json:"message,omitempty"`
	Status     string  `json:"status"`
	InvitedBy  string  `json:"invited_by"`
	CreatedAt  string  `json:"created_at"`
	ExpiresAt  string  `json:"expires_at"`
	AcceptedBy *string `json:"accepted_by,omitempty"`
	AcceptedAt *string `json:"accepted_at,omitempty"`
}

// NewInviteResponse maps an invite to its response.
func NewInviteResponse(inv *domain.InviteLink) InviteResponse {
	resp := InviteResponse{
		ID:         inv.ID.String(),
		TreeID:     inv.TreeID.String(),
		PersonID:   inv.PersonID.String(),
		Email:      inv.Email,
		Message:    inv.Message,
		Status:     string(inv.Status),
		InvitedBy:  inv.InvitedBy.String(),
		CreatedAt:  inv.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:  inv.ExpiresAt.UTC().Format(time.RFC3339),
		AcceptedBy: optionalID(inv.AcceptedBy),
	}
	if inv.AcceptedAt != nil {
		s := inv.AcceptedAt.UTC().Format(time.RFC3339)
		resp.AcceptedAt = &s
	}
	return resp
}

// PersonViewResponse is a person with resolved neighbours.
type PersonViewResponse struct {
	Person   PersonResponse `json:"person"`
	Parents  []uuid.UUID    `json:"parents"`
	Children []uuid.UUID    `json:"children"`
	Spouses  []uuid.UUID    `json:"spouses"`
	Siblings []uuid.UUID    `json:"siblings"`
}

// NewPersonViewResponses maps assembled views.
func NewPersonViewResponses(views []*genealogy.PersonView) []PersonViewResponse {
	out := make([]PersonViewResponse, len(views))
	for i, v := range views {
		out[i] = PersonViewResponse{
			Person:   NewPersonResponse(v.Person),
			Parents:  v.Parents,
			Children: v.Children,
			Spouses:  v.Spouses,
			Siblings: v.Siblings,
		}
	}
	return out
}

// RelativeResponse is one traversal result.
type RelativeResponse struct {
	Person     PersonResponse `json:"person"`
	Generation int            `json:"generation"`
}

// NewRelativeResponses maps traversal results.
func NewRelativeResponses(rs []genealogy.Relative) []RelativeResponse {
	out := make([]RelativeResponse, len(rs))
	for i, r := range rs {
		out[i] = RelativeResponse{Person: NewPersonResponse(r.Person), Generation: r.Generation}
	}
	return out
}
