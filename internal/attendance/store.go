package attendance

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tvloc02/EventVer1-sub000/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by ConditionalUpdate when the stored state no longer matches Expect.
	ErrConflict = errors.New("registration state changed")
)

// Expect is the state a ConditionalUpdate is guarded by. An empty Status matches any status.
type Expect struct {
	Status     models.RegistrationStatus
	CheckedIn  bool
	CheckedOut bool
}

func (e Expect) Matches(r models.Registration) bool {
	if e.Status != "" && r.Status != e.Status {
		return false
	}
	return r.Attendance.CheckedIn == e.CheckedIn && r.Attendance.CheckedOut == e.CheckedOut
}

// Update replaces the attendance fields, optionally moves the status, and appends Entry to the audit log.
// An empty Status leaves the status unchanged.
type Update struct {
	Status     models.RegistrationStatus
	Attendance models.Attendance
	Entry      models.AttendanceEvent
}

type RegistrationStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (models.Registration, error)
	FindByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (models.Registration, error)
	// ConditionalUpdate applies u atomically if the registration still matches expect.
	ConditionalUpdate(ctx context.Context, id uuid.UUID, expect Expect, u Update) (models.Registration, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error)
}

type EventStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (models.Event, error)
	IncrementAttendeeCount(ctx context.Context, id uuid.UUID) error
	GetScheduleDuration(ctx context.Context, id uuid.UUID) (int, error)
}

type AuditLog interface {
	ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.AttendanceEvent, error)
}
