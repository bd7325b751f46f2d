package memstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvloc02/EventVer1-sub000/internal/attendance"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
)

func seed(t *testing.T) (*Store, models.Registration) {
	t.Helper()
	s := New()
	u := s.AddUser(models.User{Name: "Ana", Email: "ana@example.com", Faculty: "Engineering"})
	e := s.AddEvent(models.Event{
		Title:     "Career fair",
		StartTime: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC),
	})
	r := s.AddRegistration(models.Registration{EventID: e.ID, UserID: u.ID, Status: models.StatusApproved})
	return s, r
}

func TestRegistrations_FindHydrates(t *testing.T) {
	s, r := seed(t)
	ctx := context.Background()

	got, err := s.Registrations().FindByEventAndUser(ctx, r.EventID, r.UserID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	require.NotNil(t, got.User)
	assert.Equal(t, "Ana", got.User.Name)
	require.NotNil(t, got.Event)
	assert.Equal(t, "Career fair", got.Event.Title)

	_, err = s.Registrations().FindByID(ctx, got.UserID)
	assert.ErrorIs(t, err, attendance.ErrNotFound)
}

func TestRegistrations_ConditionalUpdate(t *testing.T) {
	s, r := seed(t)
	ctx := context.Background()
	regs := s.Registrations()

	upd := attendance.Update{
		Status:     models.StatusAttended,
		Attendance: models.Attendance{CheckedIn: true},
		Entry:      models.AttendanceEvent{RegistrationID: r.ID, Type: models.EventCheckIn},
	}
	got, err := regs.ConditionalUpdate(ctx, r.ID, attendance.Expect{Status: models.StatusApproved}, upd)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAttended, got.Status)
	assert.True(t, got.Attendance.CheckedIn)

	_, err = regs.ConditionalUpdate(ctx, r.ID, attendance.Expect{Status: models.StatusApproved}, upd)
	assert.ErrorIs(t, err, attendance.ErrConflict)

	entries, err := s.Audit().ListByRegistration(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a lost compare-and-swap must not append to the audit log")
}

func TestRegistrations_ConditionalUpdateRace(t *testing.T) {
	s, r := seed(t)
	ctx := context.Background()
	regs := s.Registrations()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := regs.ConditionalUpdate(ctx, r.ID,
				attendance.Expect{Status: models.StatusApproved},
				attendance.Update{Status: models.StatusAttended, Attendance: models.Attendance{CheckedIn: true}},
			)
			if err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}

func TestEvents_IncrementAndDuration(t *testing.T) {
	s, r := seed(t)
	ctx := context.Background()

	require.NoError(t, s.Events().IncrementAttendeeCount(ctx, r.EventID))
	require.NoError(t, s.Events().IncrementAttendeeCount(ctx, r.EventID))
	ev, err := s.Events().FindByID(ctx, r.EventID)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.AttendeeCount)

	mins, err := s.Events().GetScheduleDuration(ctx, r.EventID)
	require.NoError(t, err)
	assert.Equal(t, 480, mins)
}
