package models

import (
	"time"
)

// ParticipantID is the opaque, connection-scoped identifier of a participant.
// It is stable for the lifetime of one connection and never reused as a room token.
type ParticipantID string

// ChatType selects the waiting pool a participant joins.
type ChatType string

const (
	ChatTypeText  ChatType = "text"
	ChatTypeVideo ChatType = "video"
)

// Valid reports whether t is one of the known chat types.
func (t ChatType) Valid() bool {
	return t == ChatTypeText || t == ChatTypeVideo
}

// Opposite returns the other chat type.
func (t ChatType) Opposite() ChatType {
	if t == ChatTypeText {
		return ChatTypeVideo
	}
	return ChatTypeText
}

// Metadata holds the optional, self-declared attributes of a waiting participant.
// Every field may be absent; scoring only uses the ones both sides declared.
type Metadata struct {
	Region    string   `json:"region,omitempty"`
	Language  string   `json:"language,omitempty"`
	Age       *int     `json:"age,omitempty"`
	Interests []string `json:"interests,omitempty"`
	// Timezone is the UTC offset in hours.
	Timezone *float64 `json:"timezone,omitempty"`
}

// Participant is a waiting-queue entry.
type Participant struct {
	ID        ParticipantID
	ChatType  ChatType
	JoinTime  time.Time
	Rejoining bool
	Metadata
}

// BehaviorProfile is the per-participant reputation record kept by the registry.
type BehaviorProfile struct {
	ReputationScore float64   `json:"reputation_score"`
	TotalChats      int       `json:"total_chats"`
	Skips           int       `json:"skips"`
	Reports         int       `json:"reports"`
	LastSeenAt      time.Time `json:"last_seen_at"`
	// AverageChatDuration is a running average of finished matched chats.
	AverageChatDuration time.Duration `json:"average_chat_duration"`
	CreatedAt           time.Time     `json:"created_at"`

	// Fresh stays true until the first lifecycle event is recorded.
	Fresh bool `json:"-"`
}
