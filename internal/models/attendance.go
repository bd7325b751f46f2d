package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AttendanceEventType string

const (
	EventCheckIn  AttendanceEventType = "check_in"
	EventCheckOut AttendanceEventType = "check_out"
)

// AttendanceEvent is an append-only audit record; rows are never updated or deleted.
type AttendanceEvent struct {
	ID             uuid.UUID           `gorm:"type:char(36);primaryKey" json:"id"`
	RegistrationID uuid.UUID           `gorm:"type:char(36);index;not null" json:"registrationId"`
	EventID        uuid.UUID           `gorm:"type:char(36);index;not null" json:"eventId"`
	UserID         uuid.UUID           `gorm:"type:char(36);index;not null" json:"userId"`
	Type           AttendanceEventType `gorm:"size:20;not null" json:"type"`
	Timestamp      time.Time           `gorm:"not null;index" json:"timestamp"`
	Method         CheckInMethod       `gorm:"size:20" json:"method,omitempty"`
	Actor          *uuid.UUID          `gorm:"type:char(36)" json:"actor,omitempty"`
	Location       string              `gorm:"size:255" json:"location,omitempty"`
	Notes          string              `gorm:"type:text" json:"notes,omitempty"`
	Metadata       datatypes.JSON      `json:"metadata,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

func (AttendanceEvent) TableName() string {
	return "attendance_events"
}

func (a *AttendanceEvent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
