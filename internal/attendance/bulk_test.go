package attendance_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvloc02/EventVer1-sub000/internal/apperr"
	"github.com/tvloc02/EventVer1-sub000/internal/attendance"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
)

func TestBulkCheckIn_IsolatesFailures(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			f := newFixture(t)
			f.deps.Bulk = attendance.BulkOptions{Concurrency: concurrency}
			f.rebuild()
			ctx := context.Background()

			users := make([]uuid.UUID, 5)
			for i := range users {
				users[i] = f.register(t, models.StatusApproved, models.User{}).UserID
			}
			third, err := f.store.Registrations().FindByEventAndUser(ctx, f.event.ID, users[2])
			require.NoError(t, err)
			_, err = f.tracker.CheckIn(ctx, third.ID, attendance.CheckInData{})
			require.NoError(t, err)

			res, err := f.tracker.BulkCheckIn(ctx, f.event.ID, users, attendance.CheckInData{Method: models.MethodMobileApp})
			require.NoError(t, err)
			assert.Equal(t, 4, res.Successful)
			assert.Equal(t, 1, res.Failed)
			assert.Equal(t, 0, res.NotAttempted)
			require.Len(t, res.Errors, 1)
			assert.Equal(t, users[2], res.Errors[0].UserID)
			assert.Equal(t, apperr.KindValidation, res.Errors[0].Kind)

			for _, u := range []uuid.UUID{users[3], users[4]} {
				reg, err := f.store.Registrations().FindByEventAndUser(ctx, f.event.ID, u)
				require.NoError(t, err)
				assert.True(t, reg.Attendance.CheckedIn)
				assert.Equal(t, models.MethodMobileApp, reg.Attendance.CheckInMethod)
			}
		})
	}
}

func TestBulkCheckIn_UnknownUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	known := f.register(t, models.StatusApproved, models.User{}).UserID
	stranger := uuid.New()

	res, err := f.tracker.BulkCheckIn(ctx, f.event.ID, []uuid.UUID{stranger, known}, attendance.CheckInData{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Successful)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, stranger, res.Errors[0].UserID)
	assert.Equal(t, apperr.KindNotFound, res.Errors[0].Kind)
}

func TestBulkCheckIn_ErrorsKeepInputOrder(t *testing.T) {
	f := newFixture(t)
	f.deps.Bulk = attendance.BulkOptions{Concurrency: 4}
	f.rebuild()

	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	res, err := f.tracker.BulkCheckIn(context.Background(), f.event.ID, users, attendance.CheckInData{})
	require.NoError(t, err)
	require.Len(t, res.Errors, 4)
	for i, e := range res.Errors {
		assert.Equal(t, users[i], e.UserID)
	}
}

func TestBulkCheckIn_CancelLeavesRestUnattempted(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.deps.Bulk = attendance.BulkOptions{Concurrency: 1, Throttle: time.Second}
	f.notifier.hook = func(attendance.Notification) { cancel() }
	f.rebuild()

	users := make([]uuid.UUID, 5)
	for i := range users {
		users[i] = f.register(t, models.StatusApproved, models.User{}).UserID
	}

	res, err := f.tracker.BulkCheckIn(ctx, f.event.ID, users, attendance.CheckInData{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 4, res.NotAttempted)

	first, err := f.store.Registrations().FindByEventAndUser(context.Background(), f.event.ID, users[0])
	require.NoError(t, err)
	assert.True(t, first.Attendance.CheckedIn, "applied items are not rolled back")
}

func TestBulkCheckIn_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.BulkCheckIn(ctx, f.event.ID, nil, attendance.CheckInData{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.tracker.BulkCheckIn(ctx, uuid.New(), []uuid.UUID{uuid.New()}, attendance.CheckInData{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
