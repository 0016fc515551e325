package chathub_test

import (
	"testing"

	"driftchat/backend/internal/chathub"
	"driftchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoomCoordinatorIndexesBothMembers verifies lookups from either side.
func TestRoomCoordinatorIndexesBothMembers(t *testing.T) {
	rooms := chathub.NewRoomCoordinator(sequentialTokens(), newFakeClock().Now)

	room := rooms.Open(models.ChatTypeVideo, "A", "B", []string{"go"})

	fromA, ok := rooms.RoomOf("A")
	require.True(t, ok)
	assert.Same(t, room, fromA)
	peer, msg, ok := rooms.Relay("B", models.ChatMessage{Type: models.TypeTextMessage, Content: "hi"})
	require.True(t, ok)
	assert.Equal(t, models.ParticipantID("A"), peer)
	assert.Equal(t, models.ParticipantID("B"), msg.SenderID)
	assert.Equal(t, room.Token, msg.RoomID)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, 1, rooms.Len())

	_, _, ok = rooms.Relay("C", models.ChatMessage{})
	assert.False(t, ok)
}

// TestRoomCoordinatorTeardown verifies the room and both index entries go away.
func TestRoomCoordinatorTeardown(t *testing.T) {
	rooms := chathub.NewRoomCoordinator(sequentialTokens(), newFakeClock().Now)
	rooms.Open(models.ChatTypeText, "A", "B", nil)

	_, peer, ok := rooms.Teardown("B")

	require.True(t, ok)
	assert.Equal(t, models.ParticipantID("A"), peer)
	_, inRoom := rooms.RoomOf("A")
	assert.False(t, inRoom)
	_, _, again := rooms.Teardown("A")
	assert.False(t, again)
	assert.Zero(t, rooms.Len())
}

// TestRoomCoordinatorSkipsTakenTokens verifies a colliding generator cannot overwrite a room.
func TestRoomCoordinatorSkipsTakenTokens(t *testing.T) {
	tokens := []models.RoomToken{"dup", "dup", "fresh"}
	next := func() models.RoomToken {
		token := tokens[0]
		tokens = tokens[1:]
		return token
	}
	rooms := chathub.NewRoomCoordinator(next, newFakeClock().Now)

	first := rooms.Open(models.ChatTypeText, "A", "B", nil)
	second := rooms.Open(models.ChatTypeText, "C", "D", nil)

	assert.Equal(t, models.RoomToken("dup"), first.Token)
	assert.Equal(t, models.RoomToken("fresh"), second.Token)
	assert.Equal(t, 2, rooms.Len())
}
