package chathub_test

import (
	"testing"
	"time"

	"driftchat/backend/internal/chathub"
	"driftchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrivateRooms(clock *fakeClock) *chathub.PrivateRooms {
	return chathub.NewPrivateRooms(chathub.PlainPasswords{}, sequentialTokens(), clock.Now)
}

// TestPrivateRoomsCreate verifies the creator is the only member of a new room.
func TestPrivateRoomsCreate(t *testing.T) {
	rooms := newTestPrivateRooms(newFakeClock())

	room, err := rooms.Create("Movie Night", "secret", "C", "")

	require.NoError(t, err)
	assert.Equal(t, models.RoomToken("room-1"), room.Token)
	assert.Equal(t, []models.ParticipantID{"C"}, room.Members)
	assert.Equal(t, []models.RoomToken{"room-1"}, rooms.RoomsOf("C"))
}

// TestPrivateRoomsCreateWithTakenToken verifies a reused token replaces the old room
// and clears its members' index.
func TestPrivateRoomsCreateWithTakenToken(t *testing.T) {
	// Arrange
	rooms := newTestPrivateRooms(newFakeClock())
	_, err := rooms.Create("Old", "", "C", "lobby")
	require.NoError(t, err)
	_, _, err = rooms.Join("lobby", "", "D")
	require.NoError(t, err)

	// Act
	room, err := rooms.Create("New", "pw", "E", "lobby")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "New", room.Name)
	assert.Equal(t, 1, rooms.Len())
	assert.Empty(t, rooms.RoomsOf("C"))
	assert.Empty(t, rooms.RoomsOf("D"))
}

// TestPrivateRoomsJoinErrorOrder verifies not-found beats a wrong password, which
// beats an existing membership.
func TestPrivateRoomsJoinErrorOrder(t *testing.T) {
	rooms := newTestPrivateRooms(newFakeClock())
	room, _ := rooms.Create("Movie Night", "secret", "C", "")

	_, _, err := rooms.Join("missing", "secret", "D")
	assert.ErrorIs(t, err, chathub.ErrRoomNotFound)

	_, _, err = rooms.Join(room.Token, "wrong", "C")
	assert.ErrorIs(t, err, chathub.ErrInvalidPassword)

	_, _, err = rooms.Join(room.Token, "secret", "C")
	assert.ErrorIs(t, err, chathub.ErrAlreadyMember)
}

// TestPrivateRoomsJoinReturnsExistingMembers verifies the notify list excludes the joiner.
func TestPrivateRoomsJoinReturnsExistingMembers(t *testing.T) {
	rooms := newTestPrivateRooms(newFakeClock())
	room, _ := rooms.Create("Movie Night", "secret", "C", "")
	_, _, err := rooms.Join(room.Token, "secret", "D")
	require.NoError(t, err)

	_, existing, err := rooms.Join(room.Token, "secret", "E")

	require.NoError(t, err)
	assert.Equal(t, []models.ParticipantID{"C", "D"}, existing)
	assert.Equal(t, []models.ParticipantID{"C", "D", "E"}, room.Members)
}

// TestPrivateRoomsLeave verifies remaining members and deletion on empty.
func TestPrivateRoomsLeave(t *testing.T) {
	rooms := newTestPrivateRooms(newFakeClock())
	room, _ := rooms.Create("Movie Night", "", "C", "")
	_, _, _ = rooms.Join(room.Token, "", "D")

	remaining, deleted, err := rooms.Leave(room.Token, "C")
	require.NoError(t, err)
	assert.Equal(t, []models.ParticipantID{"D"}, remaining)
	assert.False(t, deleted)

	_, _, err = rooms.Leave(room.Token, "C")
	assert.ErrorIs(t, err, chathub.ErrNotRoomMember)

	remaining, deleted, err = rooms.Leave(room.Token, "D")
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.True(t, deleted)
	assert.Zero(t, rooms.Len())

	_, _, err = rooms.Leave(room.Token, "D")
	assert.ErrorIs(t, err, chathub.ErrRoomNotFound)
}

// TestPrivateRoomsEnd verifies only the creator may end a room.
func TestPrivateRoomsEnd(t *testing.T) {
	rooms := newTestPrivateRooms(newFakeClock())
	room, _ := rooms.Create("Movie Night", "", "C", "")
	_, _, _ = rooms.Join(room.Token, "", "D")

	_, err := rooms.End(room.Token, "D")
	assert.ErrorIs(t, err, chathub.ErrNotRoomCreator)
	assert.Equal(t, 1, rooms.Len())

	members, err := rooms.End(room.Token, "C")
	require.NoError(t, err)
	assert.Equal(t, []models.ParticipantID{"C", "D"}, members)
	assert.Zero(t, rooms.Len())
	assert.Empty(t, rooms.RoomsOf("D"))
}

// TestPrivateRoomsSummariesOldestFirst verifies the status listing order.
func TestPrivateRoomsSummariesOldestFirst(t *testing.T) {
	clock := newFakeClock()
	rooms := newTestPrivateRooms(clock)
	_, _ = rooms.Create("First", "", "A", "zeta")
	clock.Advance(time.Second)
	second, _ := rooms.Create("Second", "", "B", "alpha")
	_, _, _ = rooms.Join(second.Token, "", "C")

	summaries := rooms.Summaries()

	require.Len(t, summaries, 2)
	assert.Equal(t, models.PrivateRoomSummary{Token: "zeta", Name: "First", UserCount: 1, Creator: "A"}, summaries[0])
	assert.Equal(t, models.PrivateRoomSummary{Token: "alpha", Name: "Second", UserCount: 2, Creator: "B"}, summaries[1])
}

// TestPrivateRoomsWithArgon2 verifies rooms work with hashed passwords.
func TestPrivateRoomsWithArgon2(t *testing.T) {
	sealer := chathub.Argon2Passwords{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}
	rooms := chathub.NewPrivateRooms(sealer, sequentialTokens(), newFakeClock().Now)

	room, err := rooms.Create("Vault", "open sesame", "C", "")
	require.NoError(t, err)
	assert.NotEqual(t, "open sesame", room.Secret)

	_, _, err = rooms.Join(room.Token, "close sesame", "D")
	assert.ErrorIs(t, err, chathub.ErrInvalidPassword)
	_, _, err = rooms.Join(room.Token, "open sesame", "D")
	assert.NoError(t, err)
}

// TestPrivateRoomsAdmitChecksSecret verifies a room replaced after its secret was
// read cannot be joined with the old secret.
func TestPrivateRoomsAdmitChecksSecret(t *testing.T) {
	// Arrange
	rooms := newTestPrivateRooms(newFakeClock())
	rooms.CreateSealed("Old", "old-seal", "C", "lobby")
	secret, err := rooms.Secret("lobby")
	require.NoError(t, err)
	rooms.CreateSealed("New", "new-seal", "E", "lobby")

	// Act
	_, _, stale := rooms.Admit("lobby", secret, "D")
	room, existing, fresh := rooms.Admit("lobby", "new-seal", "D")

	// Assert
	assert.ErrorIs(t, stale, chathub.ErrRoomNotFound)
	require.NoError(t, fresh)
	assert.Equal(t, []models.ParticipantID{"E"}, existing)
	assert.Equal(t, []models.ParticipantID{"E", "D"}, room.Members)

	_, _, again := rooms.Admit("lobby", "new-seal", "D")
	assert.ErrorIs(t, again, chathub.ErrAlreadyMember)
}
