package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Report is a persisted complaint filed by one participant against their current partner.
type Report struct {
	ReportID   string `gorm:"primaryKey"`
	ReporterID string `gorm:"index"`
	TargetID   string `gorm:"index"`
	RoomToken  string
	Reason     string
	Status     string // "new", "processed"
	CreatedAt  time.Time
}

// BeforeCreate assigns a UUID when the caller did not.
func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ReportID == "" {
		r.ReportID = uuid.New().String()
	}
	return
}
