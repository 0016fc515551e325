package chathub

import (
	"time"

	"driftchat/backend/internal/models"

	"github.com/google/uuid"
)

// TokenGenerator produces fresh room tokens.
type TokenGenerator func() models.RoomToken

// NewUUIDToken is the default TokenGenerator.
func NewUUIDToken() models.RoomToken {
	return models.RoomToken(uuid.New().String())
}

// RoomCoordinator owns the active matched rooms. A participant is in at most one.
type RoomCoordinator struct {
	rooms         map[models.RoomToken]*models.ChatRoom
	byParticipant map[models.ParticipantID]models.RoomToken
	newToken      TokenGenerator
	now           func() time.Time
}

func NewRoomCoordinator(newToken TokenGenerator, now func() time.Time) *RoomCoordinator {
	if newToken == nil {
		newToken = NewUUIDToken
	}
	if now == nil {
		now = time.Now
	}
	return &RoomCoordinator{
		rooms:         make(map[models.RoomToken]*models.ChatRoom),
		byParticipant: make(map[models.ParticipantID]models.RoomToken),
		newToken:      newToken,
		now:           now,
	}
}

// Open creates a room for a and b. Callers guarantee neither is already in a room.
func (c *RoomCoordinator) Open(t models.ChatType, a, b models.ParticipantID, shared []string) *models.ChatRoom {
	token := c.newToken()
	for _, taken := c.rooms[token]; taken; _, taken = c.rooms[token] {
		token = c.newToken()
	}
	room := &models.ChatRoom{
		Token:           token,
		Members:         [2]models.ParticipantID{a, b},
		ChatType:        t,
		CreatedAt:       c.now(),
		SharedInterests: shared,
	}
	c.rooms[token] = room
	c.byParticipant[a] = token
	c.byParticipant[b] = token
	return room
}

// RoomOf returns the room id is in.
func (c *RoomCoordinator) RoomOf(id models.ParticipantID) (*models.ChatRoom, bool) {
	token, ok := c.byParticipant[id]
	if !ok {
		return nil, false
	}
	room, ok := c.rooms[token]
	return room, ok
}

// Teardown deletes the room containing id and returns it with the remaining peer.
func (c *RoomCoordinator) Teardown(id models.ParticipantID) (*models.ChatRoom, models.ParticipantID, bool) {
	room, ok := c.RoomOf(id)
	if !ok {
		return nil, "", false
	}
	peer, _ := room.Peer(id)
	delete(c.rooms, room.Token)
	delete(c.byParticipant, room.Members[0])
	delete(c.byParticipant, room.Members[1])
	return room, peer, true
}

// Relay returns the peer a payload from id must be forwarded to, with msg stamped
// with the sender and room.
func (c *RoomCoordinator) Relay(id models.ParticipantID, msg models.ChatMessage) (models.ParticipantID, models.ChatMessage, bool) {
	room, ok := c.RoomOf(id)
	if !ok {
		return "", msg, false
	}
	peer, ok := room.Peer(id)
	if !ok {
		return "", msg, false
	}
	msg.SenderID = id
	msg.RoomID = room.Token
	return peer, msg, true
}

// Len returns the number of active matched rooms.
func (c *RoomCoordinator) Len() int { return len(c.rooms) }
