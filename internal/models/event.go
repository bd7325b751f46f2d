package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Event struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Location  string    `gorm:"size:255" json:"location,omitempty"`
	StartTime time.Time `gorm:"not null" json:"startTime"`
	EndTime   time.Time `gorm:"not null" json:"endTime"`
	// DurationMinutes overrides the schedule length when the event has breaks or parallel tracks.
	DurationMinutes int       `gorm:"not null;default:0" json:"durationMinutes"`
	AttendeeCount   int       `gorm:"not null;default:0" json:"attendeeCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ScheduleMinutes is the configured duration used for attendance rates.
func (e Event) ScheduleMinutes() int {
	if e.DurationMinutes > 0 {
		return e.DurationMinutes
	}
	if !e.EndTime.After(e.StartTime) {
		return 0
	}
	return int(e.EndTime.Sub(e.StartTime) / time.Minute)
}
