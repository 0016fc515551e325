package models

import (
	"time"

	"github.com/lib/pq"
)

// ChatSession is the analytics record of one matched chat. It is write-only from the
// point of view of the matching engine: nothing here is ever loaded back into memory.
type ChatSession struct {
	RoomToken string `gorm:"primaryKey"`
	ChatType  string `gorm:"type:text;not null;index"`
	// Participant IDs are connection-scoped and carry no identity beyond the connection.
	User1ID         string
	User2ID         string
	SharedInterests pq.StringArray `gorm:"type:text[]"`
	IsActive        bool           `gorm:"index"`
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationMs      int64
	// EndReason is "disconnected" or "skipped".
	EndReason string
}
