package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RegistrationStatus string

const (
	StatusPending   RegistrationStatus = "pending"
	StatusApproved  RegistrationStatus = "approved"
	StatusRejected  RegistrationStatus = "rejected"
	StatusCancelled RegistrationStatus = "cancelled"
	StatusWaitlist  RegistrationStatus = "waitlist"
	StatusAttended  RegistrationStatus = "attended"
	StatusNoShow    RegistrationStatus = "no_show"
)

// Counted reports whether the registration counts towards an event's registered total.
func (s RegistrationStatus) Counted() bool {
	return s == StatusApproved || s == StatusAttended || s == StatusNoShow
}

type CheckInMethod string

const (
	MethodManual    CheckInMethod = "manual"
	MethodQRCode    CheckInMethod = "qr_code"
	MethodNFC       CheckInMethod = "nfc"
	MethodMobileApp CheckInMethod = "mobile_app"
)

var CheckInMethods = []CheckInMethod{MethodManual, MethodQRCode, MethodNFC, MethodMobileApp}

type Attendance struct {
	CheckedIn       bool          `gorm:"not null;default:false" json:"checkedIn"`
	CheckInTime     *time.Time    `json:"checkInTime,omitempty"`
	CheckInMethod   CheckInMethod `gorm:"size:20" json:"checkInMethod,omitempty"`
	CheckInLocation string        `gorm:"size:255" json:"checkInLocation,omitempty"`
	Notes           string        `gorm:"type:text" json:"notes,omitempty"`
	RecordedBy      *uuid.UUID    `gorm:"type:char(36)" json:"recordedBy,omitempty"`

	CheckedOut     bool          `gorm:"not null;default:false" json:"checkedOut"`
	CheckOutTime   *time.Time    `json:"checkOutTime,omitempty"`
	CheckOutMethod CheckInMethod `gorm:"size:20" json:"checkOutMethod,omitempty"`
	CheckOutNotes  string        `gorm:"type:text" json:"checkOutNotes,omitempty"`

	// Duration is in whole minutes.
	Duration       int `gorm:"not null;default:0" json:"duration"`
	AttendanceRate int `gorm:"not null;default:0" json:"attendanceRate"`
}

// CurrentlyPresent is true between check-in and check-out.
func (a Attendance) CurrentlyPresent() bool {
	return a.CheckedIn && !a.CheckedOut
}

type Registration struct {
	ID         uuid.UUID          `gorm:"type:char(36);primaryKey" json:"id"`
	EventID    uuid.UUID          `gorm:"type:char(36);not null;uniqueIndex:idx_registration_event_user" json:"eventId"`
	UserID     uuid.UUID          `gorm:"type:char(36);not null;uniqueIndex:idx_registration_event_user;index" json:"userId"`
	Status     RegistrationStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	Attendance Attendance         `gorm:"embedded;embeddedPrefix:attendance_" json:"attendance"`
	User       *User              `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Event      *Event             `gorm:"foreignKey:EventID" json:"event,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

func (r *Registration) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
