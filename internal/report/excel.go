package report

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/tvloc02/EventVer1-sub000/internal/attendance"
)

const (
	SheetSummary   = "Summary"
	SheetAttendees = "Attendees"
	SheetBreakdown = "Breakdown"

	timeLayout = "2006-01-02 15:04:05"
)

var attendeeHeaders = []string{
	"No", "Name", "Email", "Student ID", "Faculty", "Department", "Status",
	"Checked In", "Check-in Time", "Method", "Checked Out", "Check-out Time",
	"Duration (min)", "Attendance Rate (%)",
}

// Filename is the download name for an event's attendance workbook.
func Filename(rep attendance.Report, now time.Time) string {
	return fmt.Sprintf("attendance-%s-%s.xlsx", rep.Event.ID.String()[:8], now.Format("2006-01-02"))
}

// WriteExcel renders rep as an xlsx workbook with summary, attendee and breakdown sheets.
func WriteExcel(w io.Writer, rep attendance.Report, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName(file.GetSheetName(file.GetActiveSheetIndex()), SheetSummary); err != nil {
		return errors.Wrap(err, "naming summary sheet")
	}
	if _, err := file.NewSheet(SheetAttendees); err != nil {
		return errors.Wrap(err, "creating attendee sheet")
	}
	if _, err := file.NewSheet(SheetBreakdown); err != nil {
		return errors.Wrap(err, "creating breakdown sheet")
	}

	writeSummary(file, rep, loc)
	writeAttendees(file, rep, loc)
	writeBreakdown(file, rep)

	if _, err := file.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

func setRow(file *excelize.File, sheet string, row int, values ...interface{}) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = file.SetSheetRow(sheet, cell, &values)
}

func writeSummary(file *excelize.File, rep attendance.Report, loc *time.Location) {
	s := rep.Summary
	rows := [][]interface{}{
		{"Event", rep.Event.Title},
		{"Location", rep.Event.Location},
		{"Start", rep.Event.StartTime.In(loc).Format(timeLayout)},
		{"End", rep.Event.EndTime.In(loc).Format(timeLayout)},
		{"Scheduled minutes", rep.Event.DurationMinutes},
		{},
		{"Registered", s.TotalRegistered},
		{"Checked in", s.CheckedIn},
		{"Checked out", s.CheckedOut},
		{"Currently present", s.CurrentlyPresent},
		{"No-show", s.NoShow},
		{"Attendance rate (%)", s.AttendanceRate},
		{"Completion rate (%)", s.CompletionRate},
		{"Average duration (min)", rep.AverageDuration},
		{"Average attendance rate (%)", rep.AverageAttendanceRate},
	}
	for i, r := range rows {
		setRow(file, SheetSummary, i+1, r...)
	}
	_ = file.SetColWidth(SheetSummary, "A", "A", 28)
	_ = file.SetColWidth(SheetSummary, "B", "B", 32)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(timeLayout)
}

func writeAttendees(file *excelize.File, rep attendance.Report, loc *time.Location) {
	headers := make([]interface{}, len(attendeeHeaders))
	for i, h := range attendeeHeaders {
		headers[i] = h
	}
	setRow(file, SheetAttendees, 1, headers...)

	for i, r := range rep.Rows {
		setRow(file, SheetAttendees, i+2,
			i+1,
			r.Name,
			r.Email,
			r.StudentID,
			r.Faculty,
			r.Department,
			string(r.Status),
			yesNo(r.CheckedIn),
			formatTime(r.CheckInTime, loc),
			string(r.CheckInMethod),
			yesNo(r.CheckedOut),
			formatTime(r.CheckOutTime, loc),
			r.Duration,
			r.AttendanceRate,
		)
	}

	if style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(attendeeHeaders), 1)
		_ = file.SetCellStyle(SheetAttendees, "A1", last, style)
	}
	_ = file.SetPanes(SheetAttendees, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeBreakdown(file *excelize.File, rep attendance.Report) {
	row := 1
	section := func(title string, items []attendance.Breakdown) {
		setRow(file, SheetBreakdown, row, title, "Registered", "Checked in", "Attendance rate (%)")
		row++
		for _, b := range items {
			setRow(file, SheetBreakdown, row, b.Key, b.Registered, b.CheckedIn, b.AttendanceRate)
			row++
		}
		row++
	}
	section("Faculty", rep.ByFaculty)
	section("Department", rep.ByDepartment)

	setRow(file, SheetBreakdown, row, "Check-in hour", "Count")
	row++
	for _, h := range rep.ByCheckInHour {
		setRow(file, SheetBreakdown, row, fmt.Sprintf("%02d:00", h.Hour), h.Count)
		row++
	}
	row++

	setRow(file, SheetBreakdown, row, "Method", "Count")
	row++
	for _, m := range rep.ByMethod {
		setRow(file, SheetBreakdown, row, string(m.Method), m.Count)
		row++
	}
}
