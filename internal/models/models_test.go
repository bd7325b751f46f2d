package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_ScheduleMinutes(t *testing.T) {
	start := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		event Event
		want  int
	}{
		{name: "from start and end", event: Event{StartTime: start, EndTime: start.Add(8 * time.Hour)}, want: 480},
		{name: "explicit duration wins", event: Event{StartTime: start, EndTime: start.Add(8 * time.Hour), DurationMinutes: 360}, want: 360},
		{name: "end before start", event: Event{StartTime: start, EndTime: start.Add(-time.Hour)}, want: 0},
		{name: "zero length", event: Event{StartTime: start, EndTime: start}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.ScheduleMinutes())
		})
	}
}

func TestRegistrationStatus_Counted(t *testing.T) {
	for _, s := range []RegistrationStatus{StatusApproved, StatusAttended, StatusNoShow} {
		assert.True(t, s.Counted(), s)
	}
	for _, s := range []RegistrationStatus{StatusPending, StatusRejected, StatusCancelled, StatusWaitlist} {
		assert.False(t, s.Counted(), s)
	}
}

func TestAttendance_CurrentlyPresent(t *testing.T) {
	assert.False(t, Attendance{}.CurrentlyPresent())
	assert.True(t, Attendance{CheckedIn: true}.CurrentlyPresent())
	assert.False(t, Attendance{CheckedIn: true, CheckedOut: true}.CurrentlyPresent())
}
