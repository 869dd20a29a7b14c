package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jam-service/internal/models"
)

func testSession(groupID string) models.GroupSession {
	return models.GroupSession{
		GroupID:      groupID,
		Platform:     "spotify",
		Participants: []models.Member{},
		Votes:        []models.Vote{},
	}
}

func TestCreateIsSingletonPerGroup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, testSession("g1")))
	err := s.Create(ctx, testSession("g1"))
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestGetMissingSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "g1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReplaceDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, testSession("g1")))
	require.NoError(t, s.Destroy(ctx, "g1"))

	err := s.Replace(ctx, testSession("g1"))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	exists, err := s.Exists(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDestroyMissingSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.Destroy(ctx, "g1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	session := testSession("g1")
	session.AddMember(models.Member{SessionID: "p1", Username: "alice"})
	require.NoError(t, s.Create(ctx, session))

	got, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	got.Participants[0].Username = "mallory"
	got.AddMember(models.Member{SessionID: "p2"})

	again, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, again.Participants, 1)
	assert.Equal(t, "alice", again.Participants[0].Username)
}
