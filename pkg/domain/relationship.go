package domain

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipType is the kind of edge between two persons.
type RelationshipType string

// A parent edge means person1 is a parent of person2; a child edge means person1 is a
// child of person2. Spouse and sibling edges are symmetric.
const (
	RelParent  RelationshipType = "parent"
	RelChild   RelationshipType = "child"
	RelSpouse  RelationshipType = "spouse"
	RelSibling RelationshipType = "sibling"
)

// Valid reports whether t is a known relationship type.
func (t RelationshipType) Valid() bool {
	switch t {
	case RelParent, RelChild, RelSpouse, RelSibling:
		return true
	}
	return false
}

// Symmetric returns true for relationship types whose direction carries no meaning.
func (t RelationshipType) Symmetric() bool {
	return t == RelSpouse || t == RelSibling
}

// ParseRelationshipType converts a string to a RelationshipType.
func ParseRelationshipType(s string) (RelationshipType, error) {
	t := RelationshipType(s)
	if !t.Valid() {
		return "", ErrInvalidRelationshipType
	}
	return t, nil
}

// Relationship is an edge between two persons of the same tree.
type Relationship struct {
	ID        uuid.UUID
	TreeID    uuid.UUID
	Person1ID uuid.UUID
	Person2ID uuid.UUID
	Type      RelationshipType
	Notes     *string
	CreatedBy uuid.UUID
	CreatedAt time.Time
}

// Involves returns true if personID is either endpoint.
func (r *Relationship) Involves(personID uuid.UUID) bool {
	return r.Person1ID == personID || r.Person2ID == personID
}

// ParentChild normalizes a parent or child edge into (parent, child). ok is false for
// symmetric edges.
func (r *Relationship) ParentChild() (parent, child uuid.UUID, ok bool) {
	switch r.Type {
	case RelParent:
		return r.Person1ID, r.Person2ID, true
	case RelChild:
		return r.Person2ID, r.Person1ID, true
	}
	return uuid.Nil, uuid.Nil, false
}

// SameEdge reports whether r and o describe the same fact about the same pair of persons,
// whatever the labeling (a parent edge A->B equals a child edge B->A).
func (r *Relationship) SameEdge(o *Relationship) bool {
	if r.Type.Symmetric() || o.Type.Symmetric() {
		if r.Type != o.Type {
			return false
		}
		return (r.Person1ID == o.Person1ID && r.Person2ID == o.Person2ID) ||
			(r.Person1ID == o.Person2ID && r.Person2ID == o.Person1ID)
	}
	p1, c1, _ := r.ParentChild()
	p2, c2, _ := o.ParentChild()
	return p1 == p2 && c1 == c2
}

// InverseOf reports whether r and o are contradicting parent/child facts (A parent of B and B parent of A).
func (r *Relationship) InverseOf(o *Relationship) bool {
	p1, c1, ok1 := r.ParentChild()
	p2, c2, ok2 := o.ParentChild()
	if !ok1 || !ok2 {
		return false
	}
	return p1 == c2 && c1 == p2
}
