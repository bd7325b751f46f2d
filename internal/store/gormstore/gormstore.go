package gormstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/tvloc02/EventVer1-sub000/internal/attendance"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
)

var (
	_ attendance.RegistrationStore = (*Registrations)(nil)
	_ attendance.EventStore        = (*Events)(nil)
	_ attendance.AuditLog          = (*Audit)(nil)
)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return attendance.ErrNotFound
	}
	return err
}

type Registrations struct {
	DB *gorm.DB
}

func NewRegistrations(db *gorm.DB) *Registrations {
	return &Registrations{DB: db}
}

func (r *Registrations) withRelations(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Preload("User").Preload("Event")
}

func (r *Registrations) FindByID(ctx context.Context, id uuid.UUID) (models.Registration, error) {
	var reg models.Registration
	if err := r.withRelations(ctx).First(&reg, "id = ?", id).Error; err != nil {
		return reg, errors.Wrap(notFound(err), "finding registration")
	}
	return reg, nil
}

func (r *Registrations) FindByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (models.Registration, error) {
	var reg models.Registration
	if err := r.withRelations(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&reg).Error; err != nil {
		return reg, errors.Wrap(notFound(err), "finding registration by event and user")
	}
	return reg, nil
}

// attendanceColumns maps the embedded attendance struct to its prefixed columns.
func attendanceColumns(a models.Attendance) map[string]interface{} {
	return map[string]interface{}{
		"attendance_checked_in":        a.CheckedIn,
		"attendance_check_in_time":     a.CheckInTime,
		"attendance_check_in_method":   a.CheckInMethod,
		"attendance_check_in_location": a.CheckInLocation,
		"attendance_notes":             a.Notes,
		"attendance_recorded_by":       a.RecordedBy,
		"attendance_checked_out":       a.CheckedOut,
		"attendance_check_out_time":    a.CheckOutTime,
		"attendance_check_out_method":  a.CheckOutMethod,
		"attendance_check_out_notes":   a.CheckOutNotes,
		"attendance_duration":          a.Duration,
		"attendance_attendance_rate":   a.AttendanceRate,
	}
}

// ConditionalUpdate guards the UPDATE with the expected state and appends the audit entry in the same transaction.
// Zero affected rows means another writer got there first.
// The updated row is loaded inside the transaction, so once it commits the call cannot fail.
func (r *Registrations) ConditionalUpdate(ctx context.Context, id uuid.UUID, expect attendance.Expect, u attendance.Update) (models.Registration, error) {
	var updated models.Registration
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Registration{}).
			Where("id = ?", id).
			Where("attendance_checked_in = ? AND attendance_checked_out = ?", expect.CheckedIn, expect.CheckedOut)
		if expect.Status != "" {
			q = q.Where("status = ?", expect.Status)
		}

		fields := attendanceColumns(u.Attendance)
		if u.Status != "" {
			fields["status"] = u.Status
		}

		res := q.Updates(fields)
		if res.Error != nil {
			return errors.Wrap(res.Error, "updating registration")
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Registration{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return errors.Wrap(err, "checking registration")
			}
			if count == 0 {
				return attendance.ErrNotFound
			}
			return attendance.ErrConflict
		}

		if err := tx.Preload("User").Preload("Event").First(&updated, "id = ?", id).Error; err != nil {
			return errors.Wrap(err, "reloading registration")
		}

		entry := u.Entry
		if err := tx.Create(&entry).Error; err != nil {
			return errors.Wrap(err, "appending attendance event")
		}
		return nil
	})
	if err != nil {
		return models.Registration{}, err
	}
	return updated, nil
}

func (r *Registrations) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	var regs []models.Registration
	if err := r.DB.WithContext(ctx).Preload("User").
		Where("event_id = ?", eventID).
		Order("created_at asc").
		Find(&regs).Error; err != nil {
		return nil, errors.Wrap(err, "listing registrations by event")
	}
	return regs, nil
}

func (r *Registrations) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	var regs []models.Registration
	if err := r.DB.WithContext(ctx).Preload("Event").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&regs).Error; err != nil {
		return nil, errors.Wrap(err, "listing registrations by user")
	}
	return regs, nil
}

type Events struct {
	DB *gorm.DB
}

func NewEvents(db *gorm.DB) *Events {
	return &Events{DB: db}
}

func (e *Events) FindByID(ctx context.Context, id uuid.UUID) (models.Event, error) {
	var ev models.Event
	if err := e.DB.WithContext(ctx).First(&ev, "id = ?", id).Error; err != nil {
		return ev, errors.Wrap(notFound(err), "finding event")
	}
	return ev, nil
}

func (e *Events) IncrementAttendeeCount(ctx context.Context, id uuid.UUID) error {
	res := e.DB.WithContext(ctx).Model(&models.Event{}).
		Where("id = ?", id).
		UpdateColumn("attendee_count", gorm.Expr("attendee_count + ?", 1))
	if res.Error != nil {
		return errors.Wrap(res.Error, "incrementing attendee count")
	}
	if res.RowsAffected == 0 {
		return attendance.ErrNotFound
	}
	return nil
}

func (e *Events) GetScheduleDuration(ctx context.Context, id uuid.UUID) (int, error) {
	ev, err := e.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return ev.ScheduleMinutes(), nil
}

type Audit struct {
	DB *gorm.DB
}

func NewAudit(db *gorm.DB) *Audit {
	return &Audit{DB: db}
}

func (a *Audit) ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.AttendanceEvent, error) {
	var entries []models.AttendanceEvent
	if err := a.DB.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Order("timestamp asc").
		Find(&entries).Error; err != nil {
		return nil, errors.Wrap(err, "listing attendance events")
	}
	return entries, nil
}
