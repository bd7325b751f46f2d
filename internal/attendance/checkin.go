package attendance

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"github.com/tvloc02/EventVer1-sub000/internal/apperr"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
	"github.com/tvloc02/EventVer1-sub000/internal/qrcode"
	"github.com/tvloc02/EventVer1-sub000/internal/validation"
)

const (
	msgNotApproved      = "only approved registrations may check in"
	msgAlreadyCheckedIn = "already checked in"
	msgOutsideWindow    = "outside check-in window"
	msgNotCheckedIn     = "not checked in"
	msgAlreadyOut       = "already checked out"
	msgQRMismatch       = "qr code does not match registration"
)

type CheckInData struct {
	Method     models.CheckInMethod `json:"method" validate:"checkin_method"`
	Location   string               `json:"location" validate:"max=255"`
	Notes      string               `json:"notes" validate:"max=2000"`
	RecordedBy *uuid.UUID           `json:"recordedBy"`
}

type CheckOutData struct {
	Method     models.CheckInMethod `json:"method" validate:"checkin_method"`
	Notes      string               `json:"notes" validate:"max=2000"`
	RecordedBy *uuid.UUID           `json:"recordedBy"`
}

type CheckOutResult struct {
	Registration   models.Registration `json:"registration"`
	Duration       int                 `json:"duration"`
	AttendanceRate int                 `json:"attendanceRate"`
}

// AttendanceRate is the share of the scheduled minutes a participant attended, capped at 100.
// A schedule of zero minutes yields 0.
func AttendanceRate(durationMinutes, scheduledMinutes int) int {
	if scheduledMinutes <= 0 || durationMinutes <= 0 {
		return 0
	}
	rate := math.Round(float64(durationMinutes) / float64(scheduledMinutes) * 100)
	if rate > 100 {
		return 100
	}
	return int(rate)
}

func (t *Tracker) CheckIn(ctx context.Context, registrationID uuid.UUID, data CheckInData) (models.Registration, error) {
	return t.checkIn(ctx, registrationID, data, "", nil)
}

// CheckInByQRCode verifies payload and checks in the registration it names with method qr_code.
func (t *Tracker) CheckInByQRCode(ctx context.Context, payload string, data CheckInData) (models.Registration, error) {
	if t.qr == nil {
		return models.Registration{}, apperr.Validation("qr check-in is not enabled")
	}
	claims, err := t.qr.Verify(payload)
	if err != nil {
		return models.Registration{}, apperr.Validation(err.Error())
	}
	data.Method = models.MethodQRCode
	return t.checkIn(ctx, claims.RegistrationID, data, "qr_code", &claims)
}

func (t *Tracker) checkIn(ctx context.Context, id uuid.UUID, data CheckInData, source string, claims *qrcode.Claims) (models.Registration, error) {
	if err := validation.Check(data); err != nil {
		return models.Registration{}, err
	}

	reg, err := t.findRegistration(ctx, id)
	if err != nil {
		return models.Registration{}, err
	}
	if claims != nil && (claims.EventID != reg.EventID || claims.UserID != reg.UserID) {
		return models.Registration{}, apperr.Validation(msgQRMismatch)
	}
	if reg.Status != models.StatusApproved {
		return models.Registration{}, apperr.Validation(msgNotApproved)
	}
	if reg.Attendance.CheckedIn {
		return models.Registration{}, apperr.Validation(msgAlreadyCheckedIn)
	}

	event, err := t.findEvent(ctx, reg.EventID)
	if err != nil {
		return models.Registration{}, err
	}
	now := t.now()
	if !t.window.Contains(event, now) {
		return models.Registration{}, apperr.Validation(msgOutsideWindow)
	}

	method := data.Method
	if method == "" {
		method = models.MethodManual
	}
	att := reg.Attendance
	att.CheckedIn = true
	att.CheckInTime = &now
	att.CheckInMethod = method
	att.CheckInLocation = data.Location
	att.Notes = data.Notes
	att.RecordedBy = data.RecordedBy

	meta := map[string]interface{}{}
	if source != "" {
		meta["source"] = source
	}
	entry := models.AttendanceEvent{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		Type:           models.EventCheckIn,
		Timestamp:      now,
		Method:         method,
		Actor:          data.RecordedBy,
		Location:       data.Location,
		Notes:          data.Notes,
		Metadata:       metadata(meta),
	}

	updated, err := t.registrations.ConditionalUpdate(ctx, reg.ID,
		Expect{Status: models.StatusApproved},
		Update{Status: models.StatusAttended, Attendance: att, Entry: entry},
	)
	switch {
	case errors.Is(err, ErrConflict):
		return models.Registration{}, t.checkInConflict(ctx, reg.ID)
	case errors.Is(err, ErrNotFound):
		return models.Registration{}, apperr.NotFound("registration %s not found", reg.ID)
	case err != nil:
		return models.Registration{}, apperr.Internal(err, "saving check-in")
	}

	if updated.Event == nil {
		updated.Event = &event
	}
	t.afterCommit(ctx, updated, newNotification(updated, models.EventCheckIn, now, method))
	return updated, nil
}

// checkInConflict explains why a guarded check-in lost against a concurrent writer.
func (t *Tracker) checkInConflict(ctx context.Context, id uuid.UUID) error {
	fresh, err := t.registrations.FindByID(ctx, id)
	if err == nil && !fresh.Attendance.CheckedIn && fresh.Status != models.StatusApproved {
		return apperr.Validation(msgNotApproved)
	}
	return apperr.Validation(msgAlreadyCheckedIn)
}

func (t *Tracker) CheckOut(ctx context.Context, registrationID uuid.UUID, data CheckOutData) (CheckOutResult, error) {
	if err := validation.Check(data); err != nil {
		return CheckOutResult{}, err
	}

	reg, err := t.findRegistration(ctx, registrationID)
	if err != nil {
		return CheckOutResult{}, err
	}
	if !reg.Attendance.CheckedIn {
		return CheckOutResult{}, apperr.Validation(msgNotCheckedIn)
	}
	if reg.Attendance.CheckedOut {
		return CheckOutResult{}, apperr.Validation(msgAlreadyOut)
	}

	scheduled, err := t.events.GetScheduleDuration(ctx, reg.EventID)
	if errors.Is(err, ErrNotFound) {
		return CheckOutResult{}, apperr.NotFound("event %s not found", reg.EventID)
	}
	if err != nil {
		return CheckOutResult{}, apperr.Internal(err, "loading event schedule")
	}

	now := t.now()
	checkIn := now
	if reg.Attendance.CheckInTime != nil {
		checkIn = *reg.Attendance.CheckInTime
	}
	// Clock skew between writers must not produce a check-out before the check-in.
	checkOut := now
	if checkOut.Before(checkIn) {
		checkOut = checkIn
	}
	duration := int(checkOut.Sub(checkIn) / time.Minute)
	rate := AttendanceRate(duration, scheduled)

	method := data.Method
	if method == "" {
		method = models.MethodManual
	}
	att := reg.Attendance
	att.CheckedOut = true
	att.CheckOutTime = &checkOut
	att.CheckOutMethod = method
	att.CheckOutNotes = data.Notes
	att.Duration = duration
	att.AttendanceRate = rate

	entry := models.AttendanceEvent{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		Type:           models.EventCheckOut,
		Timestamp:      checkOut,
		Method:         method,
		Actor:          data.RecordedBy,
		Notes:          data.Notes,
		Metadata: metadata(map[string]interface{}{
			"duration":         duration,
			"attendanceRate":   rate,
			"scheduledMinutes": scheduled,
		}),
	}

	updated, err := t.registrations.ConditionalUpdate(ctx, reg.ID,
		Expect{CheckedIn: true},
		Update{Attendance: att, Entry: entry},
	)
	switch {
	case errors.Is(err, ErrConflict):
		return CheckOutResult{}, t.checkOutConflict(ctx, reg.ID)
	case errors.Is(err, ErrNotFound):
		return CheckOutResult{}, apperr.NotFound("registration %s not found", reg.ID)
	case err != nil:
		return CheckOutResult{}, apperr.Internal(err, "saving check-out")
	}

	n := newNotification(updated, models.EventCheckOut, checkOut, method)
	n.Duration = duration
	n.AttendanceRate = rate
	t.afterCommit(ctx, updated, n)

	return CheckOutResult{Registration: updated, Duration: duration, AttendanceRate: rate}, nil
}

func (t *Tracker) checkOutConflict(ctx context.Context, id uuid.UUID) error {
	fresh, err := t.registrations.FindByID(ctx, id)
	if err == nil && !fresh.Attendance.CheckedIn {
		return apperr.Validation(msgNotCheckedIn)
	}
	return apperr.Validation(msgAlreadyOut)
}

// Actor is the authenticated caller of an operation that depends on ownership.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) Staff() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleOrganizer
}

type QRCode struct {
	RegistrationID uuid.UUID `json:"registrationId"`
	EventID        uuid.UUID `json:"eventId"`
	qrcode.Token
}

// IssueQRCode signs a check-in code for an approved registration. Students may only request their own.
func (t *Tracker) IssueQRCode(ctx context.Context, registrationID uuid.UUID, actor Actor) (QRCode, error) {
	if t.qr == nil {
		return QRCode{}, apperr.Validation("qr check-in is not enabled")
	}
	reg, err := t.findRegistration(ctx, registrationID)
	if err != nil {
		return QRCode{}, err
	}
	if !actor.Staff() && actor.UserID != reg.UserID {
		return QRCode{}, apperr.Permission("you may only request your own qr code")
	}
	if reg.Attendance.CheckedIn {
		return QRCode{}, apperr.Validation(msgAlreadyCheckedIn)
	}
	if reg.Status != models.StatusApproved {
		return QRCode{}, apperr.Validation(msgNotApproved)
	}

	tok, err := t.qr.Issue(reg.ID, reg.EventID, reg.UserID)
	if err != nil {
		return QRCode{}, apperr.Internal(err, "issuing qr code")
	}
	return QRCode{RegistrationID: reg.ID, EventID: reg.EventID, Token: tok}, nil
}

func (t *Tracker) findRegistration(ctx context.Context, id uuid.UUID) (models.Registration, error) {
	reg, err := t.registrations.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return reg, apperr.NotFound("registration %s not found", id)
	}
	if err != nil {
		return reg, apperr.Internal(err, "loading registration")
	}
	return reg, nil
}

func (t *Tracker) findEvent(ctx context.Context, id uuid.UUID) (models.Event, error) {
	ev, err := t.events.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ev, apperr.NotFound("event %s not found", id)
	}
	if err != nil {
		return ev, apperr.Internal(err, "loading event")
	}
	return ev, nil
}

func metadata(m map[string]interface{}) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
