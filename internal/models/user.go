package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin     = "admin"
	RoleOrganizer = "organizer"
	RoleStudent   = "student"
)

// User is the read-only participant projection; accounts are managed by the auth service.
type User struct {
	ID         uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Email      string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	StudentID  string    `gorm:"size:50;index" json:"studentId,omitempty"`
	Faculty    string    `gorm:"size:120" json:"faculty,omitempty"`
	Department string    `gorm:"size:120" json:"department,omitempty"`
	Role       string    `gorm:"size:50;not null;default:student" json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
