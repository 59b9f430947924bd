package invites

import (
	"context"
	"math"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-genealogy/internal/http/features/common"
	"github.com/tendant/simple-genealogy/internal/http/features/featuretest"
	"github.com/tendant/simple-genealogy/internal/httputil"
	"github.com/tendant/simple-genealogy/pkg/domain"
	"github.com/tendant/simple-genealogy/pkg/genealogy"
)

func setup(t *testing.T) (*featuretest.Env, http.Handler) {
	env := featuretest.New(t)
	h := NewHandler(env.Logger, env.Engine.Invites)
	r := chi.NewRouter()
	r.Route("/v1/trees/{treeID}", h.RegisterRoutes)
	r.Get("/v1/invites/{token}", h.Lookup)
	r.Post("/v1/invites/{token}/redeem", h.Redeem)
	return env, r
}

func addPerson(t *testing.T, env *featuretest.Env, owner uuid.UUID, in genealogy.PersonInput) *domain.Person {
	t.Helper()
	p, _, err := env.Engine.Persons.Create(context.Background(), owner, owner, in)
	require.NoError(t, err)
	return p
}

func TestInviteFlow(t *testing.T) {
	env, router := setup(t)
	owner := env.User("owner")
	invitee := env.User("invitee")
	person := addPerson(t, env, owner, genealogy.PersonInput{FirstName: "Rosa", LastName: "Diaz"})
	base := "/v1/trees/" + owner.String() + "/invites"

	msg := "Welcome to the family"
	rec := featuretest.Serve(router, featuretest.Request(t, http.MethodPost, base,
		IssueRequest{PersonID: person.ID, Message: &msg, ExpiresInHours: 24}, owner))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	issued := featuretest.Decode[IssueResponse](t, rec)
	require.NotEmpty(t, issued.Token)
	assert.Equal(t, "http://localhost:3000/invites/"+issued.Token, issued.URL)
	assert.Equal(t, "pending", issued.Invite.Status)
	assert.NotContains(t, rec.Body.String(), genealogy.HashToken(issued.Token))

	rec = featuretest.Serve(router, featuretest.Request(t, http.MethodPost, base,
		IssueRequest{PersonID: person.ID}, owner))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = featuretest.Serve(router, featuretest.Request(t, http.MethodGet, "/v1/invites/"+issued.Token, nil, uuid.Nil))
	require.Equal(t, http.StatusOK, rec.Code)
	lookup := featuretest.Decode[LookupResponse](t, rec)
	assert.Equal(t, "Rosa Diaz", lookup.PersonName)
	assert.Equal(t, "owner", lookup.InviterName)
	assert.Equal(t, msg, *lookup.Message)

	rec = featuretest.Serve(router, featuretest.Request(t, http.MethodPost, "/v1/invites/"+issued.Token+"/redeem", nil, uuid.Nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = featuretest.Serve(router, featuretest.Request(t, http.MethodPost, "/v1/invites/"+issued.Token+"/redeem", nil, invitee))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	redeemed := featuretest.Decode[RedeemResponse](t, rec)
	assert.Equal(t, person.ID.String(), redeemed.PersonID)
	assert.Equal(t, "member", redeemed.Membership.Role)
	assert.Equal(t, invitee.String(), redeemed.Membership.UserID)

	rec = featuretest.Serve(router, featuretest.Request(t, http.MethodPost, "/v1/invites/"+issued.Token+"/redeem", nil, invitee))
	require.Equal(t, http.StatusConflict, rec.Code)
	body := featuretest.Decode[httputil.ErrorResponse](t, rec)
	assert.Equal(t, "accepted", body.Details["status"])

	rec = featuretest.Serve(router, featuretest.Request(t, http.MethodGet, base, nil, owner))
	require.Equal(t, http.StatusOK, rec.Code)
	listed := featuretest.Decode[[]common.InviteResponse](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "accepted", listed[0].Status)
	assert.Equal(t, invitee.String(), *listed[0].AcceptedBy)
}

func TestIssue_Rejects(t *testing.T) {
	env, router := setup(t)
	owner := env.User("owner")
	member := env.User("member")
	_, err := env.Engine.Access.Grant(context.Background(), owner, owner, member, domain.RoleMember)
	require.NoError(t, err)
	deceased := addPerson(t, env, owner, genealogy.PersonInput{FirstName: "Old", IsAlive: ptr(false)})
	living := addPerson(t, env, owner, genealogy.PersonInput{FirstName: "New"})
	base := "/v1/trees/" + owner.String() + "/invites"

	tests := []struct {
		name   string
		req    IssueRequest
		actor  uuid.UUID
		status int
	}{
		{name: "missing person", req: IssueRequest{}, actor: owner, status: http.StatusBadRequest},
		{name: "negative ttl", req: IssueRequest{PersonID: living.ID, ExpiresInHours: -1}, actor: owner, status: http.StatusBadRequest},
		{name: "deceased", req: IssueRequest{PersonID: deceased.ID}, actor: owner, status: http.StatusBadRequest},
		{name: "bad email", req: IssueRequest{PersonID: living.ID, Email: ptr("not-an-email")}, actor: owner, status: http.StatusBadRequest},
		{name: "unknown person", req: IssueRequest{PersonID: uuid.New()}, actor: owner, status: http.StatusNotFound},
		{name: "member is not owner", req: IssueRequest{PersonID: living.ID}, actor: member, status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := featuretest.Serve(router, featuretest.Request(t, http.MethodPost, base, tt.req, tt.actor))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestIssue_HugeExpiryClampsToMax(t *testing.T) {
	env, router := setup(t)
	owner := env.User("owner")
	base := "/v1/trees/" + owner.String() + "/invites"

	for _, hours := range []int{math.MaxInt, maxExpiresInHours + 1, 100000} {
		person := addPerson(t, env, owner, genealogy.PersonInput{FirstName: "Rosa"})
		rec := featuretest.Serve(router, featuretest.Request(t, http.MethodPost, base, IssueRequest{PersonID: person.ID, ExpiresInHours: hours}, owner))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		inv, err := env.Store.Invites().GetPendingForPerson(context.Background(), person.ID)
		require.NoError(t, err)
		assert.Equal(t, genealogy.DefaultConfig().MaxInviteTTL, inv.ExpiresAt.Sub(inv.CreatedAt), "hours=%d", hours)
	}
}

func TestCancelAndLookup(t *testing.T) {
	env, router := setup(t)
	owner := env.User("owner")
	person := addPerson(t, env, owner, genealogy.PersonInput{FirstName: "Rosa"})
	base := "/v1/trees/" + owner.String() + "/invites"

	rec := featuretest.Serve(router, featuretest.Request(t, http.MethodPost, base, IssueRequest{PersonID: person.ID}, owner))
	require.Equal(t, http.StatusCreated, rec.Code)
	issued := featuretest.Decode[IssueResponse](t, rec)

	rec = featuretest.Serve(router, featuretest.Request(t, http.MethodDelete, base+"/"+issued.Invite.ID, nil, owner))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = featuretest.Serve(router, featuretest.Request(t, http.MethodDelete, base+"/"+issued.Invite.ID, nil, owner))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = featuretest.Serve(router, featuretest.Request(t, http.MethodGet, "/v1/invites/"+issued.Token, nil, uuid.Nil))
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = featuretest.Serve(router, featuretest.Request(t, http.MethodGet, "/v1/invites/unknown-token", nil, uuid.Nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func ptr[T any](v T) *T { return &v }
