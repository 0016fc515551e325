package models

import "time"

// RoomToken identifies a matched room or a private room.
type RoomToken string

// ChatRoom is an ephemeral matched room between exactly two participants.
type ChatRoom struct {
	Token     RoomToken
	Members   [2]ParticipantID
	ChatType  ChatType
	CreatedAt time.Time
	// SharedInterests is captured at match time for analytics.
	SharedInterests []string
}

// Peer returns the other member of the room.
func (r *ChatRoom) Peer(id ParticipantID) (ParticipantID, bool) {
	switch id {
	case r.Members[0]:
		return r.Members[1], true
	case r.Members[1]:
		return r.Members[0], true
	}
	return "", false
}

// PrivateRoom is a password-protected, creator-owned room with any number of members.
type PrivateRoom struct {
	Token   RoomToken
	Name    string
	Creator ParticipantID
	// Members keeps join order and never holds duplicates.
	Members   []ParticipantID
	CreatedAt time.Time

	// sealed password, see chathub.PasswordSealer
	Secret string
}

// PrivateRoomSummary is the read-only view exposed in status output.
type PrivateRoomSummary struct {
	Token     RoomToken     `json:"id"`
	Name      string        `json:"name"`
	UserCount int           `json:"user_count"`
	Creator   ParticipantID `json:"creator"`
}
