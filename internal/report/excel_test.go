package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tvloc02/EventVer1-sub000/internal/attendance"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
)

func sampleReport() attendance.Report {
	in := time.Date(2024, 3, 15, 9, 5, 0, 0, time.UTC)
	out := time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)
	return attendance.Report{
		Event: attendance.EventInfo{
			ID:              uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-901234567890"),
			Title:           "Career fair",
			StartTime:       time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
			EndTime:         time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC),
			DurationMinutes: 480,
		},
		Summary: attendance.Summary{TotalRegistered: 2, CheckedIn: 1, CheckedOut: 1, AttendanceRate: 50, CompletionRate: 100},
		ByFaculty: []attendance.Breakdown{
			{Key: "Engineering", Registered: 2, CheckedIn: 1, AttendanceRate: 50},
		},
		ByCheckInHour: []attendance.HourCount{{Hour: 9, Count: 1}},
		ByMethod:      []attendance.MethodCount{{Method: models.MethodQRCode, Count: 1}},
		Rows: []attendance.ReportRow{
			{
				Name: "Ana", Email: "ana@example.com", Faculty: "Engineering", Status: models.StatusAttended,
				CheckedIn: true, CheckInTime: &in, CheckInMethod: models.MethodQRCode,
				CheckedOut: true, CheckOutTime: &out, Duration: 355, AttendanceRate: 74,
			},
			{Name: "Bo", Email: "bo@example.com", Faculty: "Engineering", Status: models.StatusApproved},
		},
	}
}

func TestWriteExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExcel(&buf, sampleReport(), time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetAttendees, SheetBreakdown}, f.GetSheetList())

	title, err := f.GetCellValue(SheetSummary, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Career fair", title)

	rows, err := f.GetRows(SheetAttendees)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Check-in Time", rows[0][8])
	assert.Equal(t, []string{"1", "Ana", "ana@example.com", "", "Engineering", "", "attended", "Yes",
		"2024-03-15 09:05:00", "qr_code", "Yes", "2024-03-15 16:00:00", "355", "74"}, rows[1])
	assert.Equal(t, "No", rows[2][7])

	breakdown, err := f.GetRows(SheetBreakdown)
	require.NoError(t, err)
	assert.Equal(t, []string{"Engineering", "2", "1", "50"}, breakdown[1])
}

func TestFilename(t *testing.T) {
	name := Filename(sampleReport(), time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "attendance-6f1c2d3e-2024-03-16.xlsx", name)
}
