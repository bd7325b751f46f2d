package gormstore_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tvloc02/EventVer1-sub000/internal/attendance"
	"github.com/tvloc02/EventVer1-sub000/internal/db"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
	"github.com/tvloc02/EventVer1-sub000/internal/store/gormstore"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set (integration test)")
	}
	driver := os.Getenv("TEST_DB_DRIVER")
	if driver == "" {
		driver = "mysql"
	}
	database, err := db.Open(driver, dsn, false)
	require.NoError(t, err)
	return database
}

func seed(t *testing.T, database *gorm.DB) models.Registration {
	t.Helper()
	suffix := time.Now().UTC().Format("20060102150405.000000")
	user := models.User{Name: "Integration", Email: "it-" + suffix + "@example.com", Faculty: "Engineering"}
	require.NoError(t, database.Create(&user).Error)
	event := models.Event{
		Title:     "Integration " + suffix,
		StartTime: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC),
	}
	require.NoError(t, database.Create(&event).Error)
	reg := models.Registration{EventID: event.ID, UserID: user.ID, Status: models.StatusApproved}
	require.NoError(t, database.Create(&reg).Error)
	return reg
}

func TestConditionalUpdate_SingleWinner(t *testing.T) {
	database := openTestDB(t)
	reg := seed(t, database)
	regs := gormstore.NewRegistrations(database)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	update := attendance.Update{
		Status:     models.StatusAttended,
		Attendance: models.Attendance{CheckedIn: true, CheckInTime: &now, CheckInMethod: models.MethodManual},
		Entry: models.AttendanceEvent{
			RegistrationID: reg.ID,
			EventID:        reg.EventID,
			UserID:         reg.UserID,
			Type:           models.EventCheckIn,
			Timestamp:      now,
			Method:         models.MethodManual,
		},
	}

	const callers = 5
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = regs.ConditionalUpdate(ctx, reg.ID, attendance.Expect{Status: models.StatusApproved}, update)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, attendance.ErrConflict)
	}
	assert.Equal(t, 1, wins)

	got, err := regs.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAttended, got.Status)
	assert.True(t, got.Attendance.CheckedIn)
	require.NotNil(t, got.User)
	assert.Equal(t, "Engineering", got.User.Faculty)

	entries, err := gormstore.NewAudit(database).ListByRegistration(ctx, reg.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEvents_Counter(t *testing.T) {
	database := openTestDB(t)
	reg := seed(t, database)
	events := gormstore.NewEvents(database)
	ctx := context.Background()

	require.NoError(t, events.IncrementAttendeeCount(ctx, reg.EventID))
	ev, err := events.FindByID(ctx, reg.EventID)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.AttendeeCount)

	mins, err := events.GetScheduleDuration(ctx, reg.EventID)
	require.NoError(t, err)
	assert.Equal(t, 480, mins)
}
