package common

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	empty := ""
	got, err = ParseDate(&empty)
	require.NoError(t, err)
	assert.Nil(t, got)

	s := "1950-03-14"
	got, err = ParseDate(&s)
	require.NoError(t, err)
	assert.Equal(t, time.Date(1950, 3, 14, 0, 0, 0, 0, time.UTC), *got)

	bad := "14/03/1950"
	_, err = ParseDate(&bad)
	assert.Error(t, err)
}

func TestNewPersonResponse(t *testing.T) {
	birth := time.Date(1950, 3, 14, 0, 0, 0, 0, time.UTC)
	linked := uuid.New()
	p := &domain.Person{
		ID:           uuid.New(),
		TreeID:       uuid.New(),
		FirstName:    "Ada",
		BirthDate:    &birth,
		Source:       domain.SourceManual,
		IsAlive:      true,
		LinkedUserID: &linked,
	}

	resp := NewPersonResponse(p)
	assert.Equal(t, p.ID.String(), resp.ID)
	assert.Equal(t, "1950-03-14", *resp.BirthDate)
	assert.Nil(t, resp.DeathDate)
	assert.Equal(t, linked.String(), *resp.LinkedUserID)
	assert.Nil(t, resp.PendingInviteID)
	assert.Equal(t, "manual", resp.Source)
}

func TestNewInviteResponse(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	inv := &domain.InviteLink{
		ID:         uuid.New(),
		TokenHash:  "secret-hash",
		Status:     domain.InviteStatusAccepted,
		ExpiresAt:  now.Add(time.Hour),
		AcceptedAt: &now,
	}

	resp := NewInviteResponse(inv)
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, "2024-06-01T13:00:00Z", resp.ExpiresAt)
	assert.Equal(t, "2024-06-01T12:00:00Z", *resp.AcceptedAt)
}
