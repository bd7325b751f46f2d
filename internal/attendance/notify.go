package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tvloc02/EventVer1-sub000/internal/models"
)

// Notification describes a committed check-in or check-out.
type Notification struct {
	Type           models.AttendanceEventType `json:"type"`
	EventID        uuid.UUID                  `json:"eventId"`
	RegistrationID uuid.UUID                  `json:"registrationId"`
	UserID         uuid.UUID                  `json:"userId"`
	UserName       string                     `json:"userName,omitempty"`
	UserEmail      string                     `json:"-"`
	EventTitle     string                     `json:"eventTitle,omitempty"`
	Method         models.CheckInMethod       `json:"method"`
	Timestamp      time.Time                  `json:"timestamp"`
	Duration       int                        `json:"duration,omitempty"`
	AttendanceRate int                        `json:"attendanceRate,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Notifiers fans a notification out to every member and joins their errors.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range ns {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newNotification(reg models.Registration, typ models.AttendanceEventType, at time.Time, method models.CheckInMethod) Notification {
	n := Notification{
		Type:           typ,
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		UserID:         reg.UserID,
		Method:         method,
		Timestamp:      at,
	}
	if reg.User != nil {
		n.UserName = reg.User.Name
		n.UserEmail = reg.User.Email
	}
	if reg.Event != nil {
		n.EventTitle = reg.Event.Title
	}
	return n
}
