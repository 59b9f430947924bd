package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUser_DisplayName(t *testing.T) {
	name := "Ada Lovelace"
	empty := ""
	tests := []struct {
		name string
		user User
		want string
	}{
		{name: "name set", user: User{Email: "ada@example.com", Name: &name}, want: "Ada Lovelace"},
		{name: "nil name", user: User{Email: "ada@example.com"}, want: "ada@example.com"},
		{name: "empty name", user: User{Email: "ada@example.com", Name: &empty}, want: "ada@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeriveAlive(t *testing.T) {
	death := time.Date(1990, 3, 1, 0, 0, 0, 0, time.UTC)
	yes, no := true, false
	tests := []struct {
		name     string
		death    *time.Time
		override *bool
		want     bool
	}{
		{name: "no death date", death: nil, override: nil, want: true},
		{name: "death date", death: &death, override: nil, want: false},
		{name: "death date overridden alive", death: &death, override: &yes, want: true},
		{name: "no death date overridden dead", death: nil, override: &no, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveAlive(tt.death, tt.override); got != tt.want {
				t.Errorf("DeriveAlive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{name: "zero", in: Page{}, want: Page{Limit: DefaultPageSize}},
		{name: "too large", in: Page{Limit: 10000, Offset: 5}, want: Page{Limit: MaxPageSize, Offset: 5}},
		{name: "negative offset", in: Page{Limit: 10, Offset: -1}, want: Page{Limit: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("loading person: %w", ErrPersonNotFound)

	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("wrapped ErrPersonNotFound should match ErrNotFound")
	}
	if !errors.Is(wrapped, ErrPersonNotFound) {
		t.Error("wrapped ErrPersonNotFound should match itself")
	}
	if errors.Is(wrapped, ErrInviteNotFound) {
		t.Error("named errors of the same kind must not match each other")
	}
	if errors.Is(wrapped, ErrConflict) {
		t.Error("not-found error must not match ErrConflict")
	}
	if KindOf(wrapped) != KindNotFound {
		t.Errorf("KindOf() = %q, want %q", KindOf(wrapped), KindNotFound)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf(plain error) should be empty")
	}
}

func TestForbidden_Details(t *testing.T) {
	err := Forbidden([]Role{RoleOwner}, RoleViewer)

	if !errors.Is(err, ErrForbidden) {
		t.Fatal("Forbidden() should match ErrForbidden")
	}
	required, ok := err.Details["required_roles"].([]string)
	if !ok || len(required) != 1 || required[0] != "owner" {
		t.Errorf("required_roles = %v, want [owner]", err.Details["required_roles"])
	}
	if err.Details["actual_role"] != "viewer" {
		t.Errorf("actual_role = %v, want viewer", err.Details["actual_role"])
	}
}

func TestRelationship_ParentChild(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	parentEdge := Relationship{Person1ID: a, Person2ID: b, Type: RelParent}
	childEdge := Relationship{Person1ID: b, Person2ID: a, Type: RelChild}
	reversed := Relationship{Person1ID: b, Person2ID: a, Type: RelParent}
	spouse := Relationship{Person1ID: a, Person2ID: b, Type: RelSpouse}
	spouseReversed := Relationship{Person1ID: b, Person2ID: a, Type: RelSpouse}

	if p, c, ok := parentEdge.ParentChild(); !ok || p != a || c != b {
		t.Errorf("parent edge ParentChild() = %v, %v, %v", p, c, ok)
	}
	if p, c, ok := childEdge.ParentChild(); !ok || p != a || c != b {
		t.Errorf("child edge ParentChild() = %v, %v, %v", p, c, ok)
	}
	if _, _, ok := spouse.ParentChild(); ok {
		t.Error("spouse edge should not normalize to parent/child")
	}
	if !parentEdge.SameEdge(&childEdge) {
		t.Error("parent A->B and child B->A should be the same edge")
	}
	if !spouse.SameEdge(&spouseReversed) {
		t.Error("spouse edges are symmetric")
	}
	if !parentEdge.InverseOf(&reversed) {
		t.Error("A parent of B and B parent of A are inverse")
	}
	if parentEdge.SameEdge(&spouse) {
		t.Error("parent and spouse edges differ")
	}
}

func TestInviteLink_State(t *testing.T) {
	now := time.Now()
	pending := InviteLink{Status: InviteStatusPending, ExpiresAt: now.Add(time.Hour)}
	lapsed := InviteLink{Status: InviteStatusPending, ExpiresAt: now.Add(-time.Hour)}
	accepted := InviteLink{Status: InviteStatusAccepted, ExpiresAt: now.Add(time.Hour)}

	if !pending.IsRedeemableAt(now) {
		t.Error("pending unexpired invite should be redeemable")
	}
	if lapsed.IsRedeemableAt(now) || !lapsed.NeedsExpiry(now) {
		t.Error("lapsed pending invite should need expiry")
	}
	if accepted.IsRedeemableAt(now) || accepted.NeedsExpiry(now) {
		t.Error("accepted invite is terminal")
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleOwner, RoleMember, RoleViewer} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	if _, err := ParseRole("admin"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseRole(admin) error = %v, want invalid argument", err)
	}
}
