package attendance

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tvloc02/EventVer1-sub000/internal/apperr"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
	"github.com/tvloc02/EventVer1-sub000/internal/validation"
)

type Summary struct {
	EventID          uuid.UUID `json:"eventId"`
	TotalRegistered  int       `json:"totalRegistered"`
	CheckedIn        int       `json:"checkedIn"`
	CheckedOut       int       `json:"checkedOut"`
	CurrentlyPresent int       `json:"currentlyPresent"`
	NoShow           int       `json:"noShow"`
	AttendanceRate   int       `json:"attendanceRate"`
	CompletionRate   int       `json:"completionRate"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

type Breakdown struct {
	Key            string `json:"key"`
	Registered     int    `json:"registered"`
	CheckedIn      int    `json:"checkedIn"`
	AttendanceRate int    `json:"attendanceRate"`
}

type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type MethodCount struct {
	Method models.CheckInMethod `json:"method"`
	Count  int                  `json:"count"`
}

type ReportRow struct {
	RegistrationID uuid.UUID                 `json:"registrationId"`
	UserID         uuid.UUID                 `json:"userId"`
	Name           string                    `json:"name"`
	Email          string                    `json:"email"`
	StudentID      string                    `json:"studentId"`
	Faculty        string                    `json:"faculty"`
	Department     string                    `json:"department"`
	Status         models.RegistrationStatus `json:"status"`
	CheckedIn      bool                      `json:"checkedIn"`
	CheckInTime    *time.Time                `json:"checkInTime,omitempty"`
	CheckInMethod  models.CheckInMethod      `json:"checkInMethod,omitempty"`
	CheckedOut     bool                      `json:"checkedOut"`
	CheckOutTime   *time.Time                `json:"checkOutTime,omitempty"`
	Duration       int                       `json:"duration"`
	AttendanceRate int                       `json:"attendanceRate"`
}

type EventInfo struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Location        string    `json:"location,omitempty"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMinutes int       `json:"durationMinutes"`
}

type Report struct {
	Event                 EventInfo     `json:"event"`
	Summary               Summary       `json:"summary"`
	ByFaculty             []Breakdown   `json:"byFaculty"`
	ByDepartment          []Breakdown   `json:"byDepartment"`
	ByCheckInHour         []HourCount   `json:"byCheckInHour"`
	ByMethod              []MethodCount `json:"byMethod"`
	AverageDuration       int           `json:"averageDuration"`
	AverageAttendanceRate int           `json:"averageAttendanceRate"`
	Rows                  []ReportRow   `json:"rows"`
}

type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
)

type TimelinePoint struct {
	Bucket    time.Time `json:"bucket"`
	CheckIns  int       `json:"checkIns"`
	CheckOuts int       `json:"checkOuts"`
	// Present is the number of participants on site at the end of the bucket.
	Present int `json:"present"`
}

type Analytics struct {
	EventID     uuid.UUID       `json:"eventId"`
	Granularity Granularity     `json:"granularity"`
	Timeline    []TimelinePoint `json:"timeline"`
	PeakBucket  *time.Time      `json:"peakBucket,omitempty"`
	PeakPresent int             `json:"peakPresent"`
}

type UserAttendance struct {
	RegistrationID uuid.UUID                 `json:"registrationId"`
	EventID        uuid.UUID                 `json:"eventId"`
	EventTitle     string                    `json:"eventTitle,omitempty"`
	EventStart     *time.Time                `json:"eventStart,omitempty"`
	Status         models.RegistrationStatus `json:"status"`
	Attendance     models.Attendance         `json:"attendance"`
}

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func (t *Tracker) eventRegistrations(ctx context.Context, eventID uuid.UUID) (models.Event, []models.Registration, error) {
	event, err := t.findEvent(ctx, eventID)
	if err != nil {
		return event, nil, err
	}
	regs, err := t.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return event, nil, apperr.Internal(err, "listing registrations")
	}
	return event, regs, nil
}

func summarize(event models.Event, regs []models.Registration, now time.Time) Summary {
	s := Summary{EventID: event.ID, GeneratedAt: now}
	ended := now.After(event.EndTime)
	for _, r := range regs {
		if !r.Status.Counted() {
			continue
		}
		s.TotalRegistered++
		a := r.Attendance
		if a.CheckedIn {
			s.CheckedIn++
		}
		if a.CheckedOut {
			s.CheckedOut++
		}
		if a.CurrentlyPresent() {
			s.CurrentlyPresent++
		}
		if r.Status == models.StatusNoShow || (ended && r.Status == models.StatusApproved && !a.CheckedIn) {
			s.NoShow++
		}
	}
	s.AttendanceRate = percent(s.CheckedIn, s.TotalRegistered)
	s.CompletionRate = percent(s.CheckedOut, s.CheckedIn)
	return s
}

func (t *Tracker) GetAttendanceSummary(ctx context.Context, eventID uuid.UUID) (Summary, error) {
	return cached(ctx, t, SummaryKey(eventID), t.ttl.Summary, func() (Summary, error) {
		event, regs, err := t.eventRegistrations(ctx, eventID)
		if err != nil {
			return Summary{}, err
		}
		return summarize(event, regs, t.now()), nil
	})
}

func (t *Tracker) GetAttendanceReport(ctx context.Context, eventID uuid.UUID) (Report, error) {
	return cached(ctx, t, ReportKey(eventID), t.ttl.Report, func() (Report, error) {
		event, regs, err := t.eventRegistrations(ctx, eventID)
		if err != nil {
			return Report{}, err
		}
		return t.buildReport(event, regs), nil
	})
}

func (t *Tracker) buildReport(event models.Event, regs []models.Registration) Report {
	rep := Report{
		Event: EventInfo{
			ID:              event.ID,
			Title:           event.Title,
			Location:        event.Location,
			StartTime:       event.StartTime,
			EndTime:         event.EndTime,
			DurationMinutes: event.ScheduleMinutes(),
		},
		Summary: summarize(event, regs, t.now()),
		Rows:    []ReportRow{},
	}

	faculties := newBreakdowns()
	departments := newBreakdowns()
	hours := map[int]int{}
	methods := map[models.CheckInMethod]int{}
	var totalDuration, totalRate, completed int

	for _, r := range regs {
		if !r.Status.Counted() {
			continue
		}
		a := r.Attendance
		row := ReportRow{
			RegistrationID: r.ID,
			UserID:         r.UserID,
			Status:         r.Status,
			CheckedIn:      a.CheckedIn,
			CheckInTime:    a.CheckInTime,
			CheckInMethod:  a.CheckInMethod,
			CheckedOut:     a.CheckedOut,
			CheckOutTime:   a.CheckOutTime,
			Duration:       a.Duration,
			AttendanceRate: a.AttendanceRate,
		}
		if u := r.User; u != nil {
			row.Name = u.Name
			row.Email = u.Email
			row.StudentID = u.StudentID
			row.Faculty = u.Faculty
			row.Department = u.Department
		}
		rep.Rows = append(rep.Rows, row)

		faculties.add(row.Faculty, a.CheckedIn)
		departments.add(row.Department, a.CheckedIn)
		if a.CheckedIn && a.CheckInTime != nil {
			hours[a.CheckInTime.In(t.location).Hour()]++
			methods[a.CheckInMethod]++
		}
		if a.CheckedOut {
			completed++
			totalDuration += a.Duration
			totalRate += a.AttendanceRate
		}
	}

	rep.ByFaculty = faculties.sorted()
	rep.ByDepartment = departments.sorted()

	rep.ByCheckInHour = make([]HourCount, 0, len(hours))
	for h, n := range hours {
		rep.ByCheckInHour = append(rep.ByCheckInHour, HourCount{Hour: h, Count: n})
	}
	sort.Slice(rep.ByCheckInHour, func(i, j int) bool { return rep.ByCheckInHour[i].Hour < rep.ByCheckInHour[j].Hour })

	rep.ByMethod = make([]MethodCount, 0, len(methods))
	for _, m := range models.CheckInMethods {
		if n := methods[m]; n > 0 {
			rep.ByMethod = append(rep.ByMethod, MethodCount{Method: m, Count: n})
		}
	}

	if completed > 0 {
		rep.AverageDuration = int(math.Round(float64(totalDuration) / float64(completed)))
		rep.AverageAttendanceRate = int(math.Round(float64(totalRate) / float64(completed)))
	}
	return rep
}

const unspecified = "unspecified"

type breakdowns map[string]*Breakdown

func newBreakdowns() breakdowns { return breakdowns{} }

func (b breakdowns) add(key string, checkedIn bool) {
	if key == "" {
		key = unspecified
	}
	item, ok := b[key]
	if !ok {
		item = &Breakdown{Key: key}
		b[key] = item
	}
	item.Registered++
	if checkedIn {
		item.CheckedIn++
	}
}

// sorted orders by registered count, largest first, then by key.
func (b breakdowns) sorted() []Breakdown {
	out := make([]Breakdown, 0, len(b))
	for _, item := range b {
		item.AttendanceRate = percent(item.CheckedIn, item.Registered)
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Registered != out[j].Registered {
			return out[i].Registered > out[j].Registered
		}
		return out[i].Key < out[j].Key
	})
	return out
}

type analyticsQuery struct {
	Granularity Granularity `json:"granularity" validate:"granularity"`
}

// GetAttendanceAnalytics buckets check-ins and check-outs over time. An empty granularity means hourly.
func (t *Tracker) GetAttendanceAnalytics(ctx context.Context, eventID uuid.UUID, granularity Granularity) (Analytics, error) {
	if err := validation.Check(analyticsQuery{Granularity: granularity}); err != nil {
		return Analytics{}, err
	}
	if granularity == "" {
		granularity = GranularityHour
	}

	return cached(ctx, t, AnalyticsKey(eventID, granularity), t.ttl.Analytics, func() (Analytics, error) {
		_, regs, err := t.eventRegistrations(ctx, eventID)
		if err != nil {
			return Analytics{}, err
		}
		return t.buildAnalytics(eventID, granularity, regs), nil
	})
}

func (t *Tracker) bucket(ts time.Time, g Granularity) time.Time {
	ts = ts.In(t.location)
	if g == GranularityDay {
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, t.location)
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, t.location)
}

func (t *Tracker) buildAnalytics(eventID uuid.UUID, g Granularity, regs []models.Registration) Analytics {
	points := map[time.Time]*TimelinePoint{}
	point := func(ts time.Time) *TimelinePoint {
		b := t.bucket(ts, g)
		p, ok := points[b]
		if !ok {
			p = &TimelinePoint{Bucket: b}
			points[b] = p
		}
		return p
	}

	for _, r := range regs {
		a := r.Attendance
		if a.CheckedIn && a.CheckInTime != nil {
			point(*a.CheckInTime).CheckIns++
		}
		if a.CheckedOut && a.CheckOutTime != nil {
			point(*a.CheckOutTime).CheckOuts++
		}
	}

	out := Analytics{EventID: eventID, Granularity: g, Timeline: make([]TimelinePoint, 0, len(points))}
	for _, p := range points {
		out.Timeline = append(out.Timeline, *p)
	}
	sort.Slice(out.Timeline, func(i, j int) bool { return out.Timeline[i].Bucket.Before(out.Timeline[j].Bucket) })

	present := 0
	for i := range out.Timeline {
		present += out.Timeline[i].CheckIns - out.Timeline[i].CheckOuts
		out.Timeline[i].Present = present
		if present > out.PeakPresent {
			out.PeakPresent = present
			b := out.Timeline[i].Bucket
			out.PeakBucket = &b
		}
	}
	return out
}

func (t *Tracker) GetUserAttendance(ctx context.Context, userID uuid.UUID) ([]UserAttendance, error) {
	return cached(ctx, t, UserAttendanceKey(userID), t.ttl.User, func() ([]UserAttendance, error) {
		regs, err := t.registrations.ListByUser(ctx, userID)
		if err != nil {
			return nil, apperr.Internal(err, "listing registrations")
		}
		out := make([]UserAttendance, 0, len(regs))
		for _, r := range regs {
			item := UserAttendance{
				RegistrationID: r.ID,
				EventID:        r.EventID,
				Status:         r.Status,
				Attendance:     r.Attendance,
			}
			if r.Event != nil {
				start := r.Event.StartTime
				item.EventTitle = r.Event.Title
				item.EventStart = &start
			}
			out = append(out, item)
		}
		return out, nil
	})
}

// GetAttendanceHistory returns the audit trail of a registration, oldest first.
func (t *Tracker) GetAttendanceHistory(ctx context.Context, registrationID uuid.UUID, actor Actor) ([]models.AttendanceEvent, error) {
	reg, err := t.findRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if !actor.Staff() && actor.UserID != reg.UserID {
		return nil, apperr.Permission("you may only view your own attendance history")
	}
	entries, err := t.audit.ListByRegistration(ctx, registrationID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, apperr.Internal(err, "listing attendance history")
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	if entries == nil {
		entries = []models.AttendanceEvent{}
	}
	return entries, nil
}
