package genealogy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

func TestPersonCreate_DerivesDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.newUser("owner")

	p, rels, err := f.engine.Persons.Create(ctx, owner, owner, PersonInput{FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	assert.Empty(t, rels)
	assert.True(t, p.IsAlive)
	assert.Equal(t, domain.GenderUnknown, p.Gender)
	assert.Equal(t, domain.SourceManual, p.Source)
	assert.Equal(t, owner, p.CreatedBy)
	assert.Equal(t, f.clock.Now(), p.CreatedAt)

	dead, _, err := f.engine.Persons.Create(ctx, owner, owner, PersonInput{
		FirstName: "Charles",
		BirthDate: datePtr(1791, time.December, 26),
		DeathDate: datePtr(1871, time.October, 18),
	})
	require.NoError(t, err)
	assert.False(t, dead.IsAlive)

	override, _, err := f.engine.Persons.Create(ctx, owner, owner, PersonInput{FirstName: "Unknown", IsAlive: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, override.IsAlive)

	created := f.auditor.Find(AuditCreate, ResourcePerson)
	require.Len(t, created, 3)
	assert.Equal(t, FieldChange{Old: nil, New: "Ada"}, created[0].Changes["first_name"])
}

func TestPersonCreate_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.newUser("owner")

	tests := []struct {
		name  string
		input PersonInput
		field string
	}{
		{name: "missing first name", input: PersonInput{LastName: "Smith"}, field: "first_name"},
		{name: "unknown gender", input: PersonInput{FirstName: "A", Gender: "robot"}, field: "gender"},
		{name: "bad photo url", input: PersonInput{FirstName: "A", PhotoURL: strPtr("not a url")}, field: "photo_url"},
		{name: "bad inline type", input: PersonInput{FirstName: "A", Relationships: []InlineRelationship{
			{RelatedPersonID: uuid.New(), Type: "cousin"},
		}}, field: "relationships[0].relationship_type"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.engine.Persons.Create(ctx, owner, owner, tc.input)
			requireKind(t, err, domain.KindInvalidArgument)
			var de *domain.Error
			require.True(t, errors.As(err, &de))
			fields, ok := de.Details["fields"].(map[string]string)
			require.True(t, ok)
			assert.Contains(t, fields, tc.field)
		})
	}

	t.Run("death before birth", func(t *testing.T) {
		_, _, err := f.engine.Persons.Create(ctx, owner, owner, PersonInput{
			FirstName: "A",
			BirthDate: datePtr(1900, time.January, 1),
			DeathDate: datePtr(1899, time.January, 1),
		})
		requireKind(t, err, domain.KindInvalidArgument)
	})

	count, err := f.store.Persons().CountByTree(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPerson_AliveOverrideWithDeathDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.newUser("owner")

	created, _, err := f.engine.Persons.Create(ctx, owner, owner, PersonInput{
		FirstName: "A",
		DeathDate: datePtr(1950, time.January, 1),
		IsAlive:   boolPtr(true),
	})
	require.NoError(t, err)
	assert.True(t, created.IsAlive)
	require.NotNil(t, created.DeathDate)

	stored, err := f.store.Persons().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAlive)

	dead, _, err := f.engine.Persons.Create(ctx, owner, owner, PersonInput{
		FirstName: "B",
		DeathDate: datePtr(1960, time.March, 3),
	})
	require.NoError(t, err)
	assert.False(t, dead.IsAlive)

	updated, err := f.engine.Persons.Update(ctx, owner, owner, dead.ID, PersonPatch{IsAlive: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, updated.IsAlive)
	require.NotNil(t, updated.DeathDate)
	assert.Equal(t, *datePtr(1960, time.March, 3), *updated.DeathDate)

	stored, err = f.store.Persons().GetByID(ctx, dead.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAlive)
}

func TestPersonCreate_Access(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.newUser("owner")
	viewer := f.newUser("viewer")
	member := f.newUser("member")
	f.grant(t, owner, owner, viewer, domain.RoleViewer)
	f.grant(t, owner, owner, member, domain.RoleMember)

	_, _, err := f.engine.Persons.Create(ctx, viewer, owner, PersonInput{FirstName: "A"})
	requireKind(t, err, domain.KindForbidden)

	_, _, err = f.engine.Persons.Create(ctx, member, owner, PersonInput{FirstName: "A"})
	require.NoError(t, err)
}

func TestPersonCreate_Linking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.newUser("owner")
	relative := f.newUser("relative")

	_, _, err := f.engine.Persons.Create(ctx, owner, owner, PersonInput{FirstName: "Ghost", LinkedUserID: ptrTo(uuid.New())})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	p, _, err := f.engine.Persons.Create(ctx, owner, owner, PersonInput{FirstName: "Rel", LinkedUserID: &relative})
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePlatformUser, p.Source)
	require.NotNil(t, p.LinkedUserID)
	assert.Equal(t, relative, *p.LinkedUserID)

	_, _, err = f.engine.Persons.Create(ctx, owner, owner, PersonInput{FirstName: "Again", LinkedUserID: &relative})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyLinked)
}

func TestPersonCreate_InlineRelationships(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.newUser("owner")
	other := f.newUser("other")
	child := f.addPerson(t, owner, owner, "Child", "Doe")
	spouse := f.addPerson(t, owner, owner, "Spouse", "Doe")
	foreign := f.addPerson(t, other, other, "Foreign", "Roe")

	p, rels, err := f.engine.Persons.Create(ctx, owner, owner, PersonInput{
		FirstName: "Parent",
		LastName:  "Doe",
		Relationships: []InlineRelationship{
			{RelatedPersonID: child.ID, Type: domain.RelParent},
			{RelatedPersonID: spouse.ID, Type: domain.RelSpouse},
		},
	})
	require.NoError(t, err)
	require.Len(t, rels, 2)
	for _, rel := range rels {
		assert.Equal(t, p.ID, rel.Person1ID)
		assert.Equal(t, owner, rel.TreeID)
	}
	assert.Len(t, f.auditor.Find(AuditCreate, ResourceRelationship), 2)

	t.Run("target in another tree writes nothing", func(t *testing.T) {
		before, err := f.store.Persons().CountByTree(ctx, owner)
		require.NoError(t, err)

		_, _, err = f.engine.Persons.Create(ctx, owner, owner, PersonInput{
			FirstName: "Bad",
			Relationships: []InlineRelationship{
				{RelatedPersonID: child.ID, Type: domain.RelSibling},
				{RelatedPersonID: foreign.ID, Type: domain.RelSibling},
			},
		})
		requireKind(t, err, domain.KindForbidden)

		after, err := f.store.Persons().CountByTree(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, before, after)
		edges, err := f.store.Relationships().ListByPerson(ctx, child.ID)
		require.NoError(t, err)
		assert.Len(t, edges, 1)
	})

	t.Run("duplicate specs conflict", func(t *testing.T) {
		_, _, err := f.engine.Persons.Create(ctx, owner, owner, PersonInput{
			FirstName: "Twin",
			Relationships: []InlineRelationship{
				{RelatedPersonID: child.ID, Type: domain.RelSibling},
				{RelatedPersonID: child.ID, Type: domain.RelSibling},
			},
		})
		assert.ErrorIs(t, err, domain.ErrRelationshipExists)
	})

	t.Run("missing target", func(t *testing.T) {
		_, _, err := f.engine.Persons.Create(ctx, owner, owner, PersonInput{
			FirstName:     "Lonely",
			Relationships: []InlineRelationship{{RelatedPersonID: uuid.New(), Type: domain.RelSibling}},
		})
		assert.ErrorIs(t, err, domain.ErrPersonNotFound)
	})
}

func TestPersonGetAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.newUser("owner")
	stranger := f.newUser("stranger")
	b := f.addPerson(t, owner, owner, "Bea", "Able")
	f.addPerson(t, owner, owner, "Al", "Able")
	f.addPerson(t, owner, owner, "Cy", "Zed")
	foreign := f.addPerson(t, stranger, stranger, "Foreign", "Roe")

	got, err := f.engine.Persons.Get(ctx, owner, owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = f.engine.Persons.Get(ctx, owner, owner, foreign.ID)
	assert.ErrorIs(t, err, domain.ErrPersonNotFound)

	_, err = f.engine.Persons.Get(ctx, stranger, owner, uuid.New())
	requireKind(t, err, domain.KindForbidden)

	page, err := f.engine.Persons.List(ctx, owner, owner, domain.Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Persons, 2)
	assert.Equal(t, "Al", page.Persons[0].FirstName)
	assert.Equal(t, "Bea", page.Persons[1].FirstName)

	page, err = f.engine.Persons.List(ctx, owner, owner, domain.Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page.Persons, 1)
	assert.Equal(t, "Cy", page.Persons[0].FirstName)
}

func TestPersonUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.newUser("owner")
	p := f.addPerson(t, owner, owner, "Ada", "Byron")

	f.clock.Advance(time.Minute)
	updated, err := f.engine.Persons.Update(ctx, owner, owner, p.ID, PersonPatch{
		LastName:  strPtr("Lovelace"),
		DeathDate: datePtr(1852, time.November, 27),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", updated.LastName)
	assert.False(t, updated.IsAlive)
	assert.Equal(t, f.clock.Now(), updated.UpdatedAt)

	audits := f.auditor.Find(AuditUpdate, ResourcePerson)
	require.Len(t, audits, 1)
	assert.Equal(t, FieldChange{Old: "Byron", New: "Lovelace"}, audits[0].Changes["last_name"])
	assert.Equal(t, FieldChange{Old: true, New: false}, audits[0].Changes["is_alive"])
	assert.NotContains(t, audits[0].Changes, "first_name")

	revived, err := f.engine.Persons.Update(ctx, owner, owner, p.ID, PersonPatch{ClearDeathDate: true})
	require.NoError(t, err)
	assert.Nil(t, revived.DeathDate)
	assert.True(t, revived.IsAlive)

	renamed, err := f.engine.Persons.Update(ctx, owner, owner, p.ID, PersonPatch{FirstName: strPtr("Augusta")})
	require.NoError(t, err)
	assert.True(t, renamed.IsAlive)

	_, err = f.engine.Persons.Update(ctx, owner, owner, p.ID, PersonPatch{
		BirthDate: datePtr(1815, time.December, 10),
		DeathDate: datePtr(1800, time.January, 1),
	})
	requireKind(t, err, domain.KindInvalidArgument)

	_, err = f.engine.Persons.Update(ctx, owner, owner, uuid.New(), PersonPatch{FirstName: strPtr("X")})
	assert.ErrorIs(t, err, domain.ErrPersonNotFound)
}

func TestPersonUpdate_LinkCancelsPendingInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.newUser("owner")
	relative := f.newUser("relative")
	p := f.addPerson(t, owner, owner, "Rel", "Doe")

	issued, err := f.engine.Invites.Issue(ctx, owner, owner, p.ID, IssueInviteInput{})
	require.NoError(t, err)

	linked, err := f.engine.Persons.Update(ctx, owner, owner, p.ID, PersonPatch{LinkedUserID: &relative})
	require.NoError(t, err)
	assert.Equal(t, relative, *linked.LinkedUserID)
	assert.Equal(t, domain.SourcePlatformUser, linked.Source)
	assert.False(t, linked.HasPendingInvite())

	inv, err := f.store.Invites().GetByID(ctx, issued.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InviteStatusExpired, inv.Status)

	other := f.newUser("other")
	_, err = f.engine.Persons.Update(ctx, owner, owner, p.ID, PersonPatch{LinkedUserID: &other})
	assert.ErrorIs(t, err, domain.ErrPersonAlreadyLinked)

	_, err = f.engine.Persons.Update(ctx, owner, owner, p.ID, PersonPatch{LinkedUserID: &relative})
	require.NoError(t, err)
}

func TestPersonDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.newUser("owner")
	member := f.newUser("member")
	f.grant(t, owner, owner, member, domain.RoleMember)

	a := f.addPerson(t, owner, owner, "A", "Doe")
	b := f.addPerson(t, owner, owner, "B", "Doe")
	c := f.addPerson(t, owner, owner, "C", "Doe")
	f.relate(t, owner, owner, a, b, domain.RelParent)
	f.relate(t, owner, owner, b, c, domain.RelSibling)
	issued, err := f.engine.Invites.Issue(ctx, owner, owner, b.ID, IssueInviteInput{})
	require.NoError(t, err)

	err = f.engine.Persons.Delete(ctx, member, owner, b.ID)
	requireKind(t, err, domain.KindForbidden)

	require.NoError(t, f.engine.Persons.Delete(ctx, owner, owner, b.ID))

	_, err = f.engine.Persons.Get(ctx, owner, owner, b.ID)
	assert.ErrorIs(t, err, domain.ErrPersonNotFound)
	n, err := f.store.Relationships().CountByTree(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, n)

	inv, err := f.store.Invites().GetByID(ctx, issued.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InviteStatusExpired, inv.Status)

	_, err = f.engine.Invites.Redeem(ctx, issued.Token, f.newUser("late"))
	assert.ErrorIs(t, err, domain.ErrInviteExpired)

	views, err := f.engine.Trees.AssembleTree(ctx, owner, owner)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Empty(t, v.Children)
		assert.Empty(t, v.Siblings)
	}

	deletes := f.auditor.Find(AuditDelete, ResourcePerson)
	require.Len(t, deletes, 1)
	assert.Equal(t, FieldChange{Old: int64(2)}, deletes[0].Changes["relationships_removed"])

	assert.ErrorIs(t, f.engine.Persons.Delete(ctx, owner, owner, b.ID), domain.ErrPersonNotFound)
}

func ptrTo[T any](v T) *T { return &v }
