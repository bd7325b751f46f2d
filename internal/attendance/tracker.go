package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tvloc02/EventVer1-sub000/internal/cache"
	"github.com/tvloc02/EventVer1-sub000/internal/logger"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
	"github.com/tvloc02/EventVer1-sub000/internal/qrcode"
)

// Window is how long before the start and after the end of an event check-in is accepted.
type Window struct {
	OpensBefore time.Duration
	ClosesAfter time.Duration
}

var DefaultWindow = Window{OpensBefore: 2 * time.Hour, ClosesAfter: time.Hour}

// Contains reports whether now lies in [start-OpensBefore, end+ClosesAfter], bounds included.
func (w Window) Contains(ev models.Event, now time.Time) bool {
	opens := ev.StartTime.Add(-w.OpensBefore)
	closes := ev.EndTime.Add(w.ClosesAfter)
	return !now.Before(opens) && !now.After(closes)
}

type TTLs struct {
	Summary   time.Duration
	Report    time.Duration
	Analytics time.Duration
	User      time.Duration
}

var DefaultTTLs = TTLs{
	Summary:   5 * time.Minute,
	Report:    15 * time.Minute,
	Analytics: 15 * time.Minute,
	User:      10 * time.Minute,
}

type BulkOptions struct {
	Concurrency int
	Throttle    time.Duration
}

// QRCodes issues and verifies the signed payload shown at the door.
type QRCodes interface {
	Issue(registrationID, eventID, userID uuid.UUID) (qrcode.Token, error)
	Verify(payload string) (qrcode.Claims, error)
}

type Deps struct {
	Registrations RegistrationStore
	Events        EventStore
	Audit         AuditLog
	Cache         cache.Cache
	QRCodes       QRCodes
	Notifier      Notifier
	Log           logger.Logger

	// A nil Window means DefaultWindow; a zero Window accepts check-ins only while the event runs.
	// Zero TTLs fall back to DefaultTTLs.
	Window   *Window
	TTL      TTLs
	Bulk     BulkOptions
	Location *time.Location
	Now      func() time.Time
}

// Tracker owns the check-in/check-out state machine of registrations.
type Tracker struct {
	registrations RegistrationStore
	events        EventStore
	audit         AuditLog
	cache         cache.Cache
	qr            QRCodes
	notifier      Notifier
	log           logger.Logger

	window   Window
	ttl      TTLs
	bulk     BulkOptions
	location *time.Location
	now      func() time.Time
}

func New(d Deps) *Tracker {
	t := &Tracker{
		registrations: d.Registrations,
		events:        d.Events,
		audit:         d.Audit,
		cache:         d.Cache,
		qr:            d.QRCodes,
		notifier:      d.Notifier,
		log:           d.Log,
		window:        DefaultWindow,
		ttl:           d.TTL,
		bulk:          d.Bulk,
		location:      d.Location,
		now:           d.Now,
	}
	if t.cache == nil {
		t.cache = cache.NewMemory()
	}
	if t.notifier == nil {
		t.notifier = Notifiers{}
	}
	if t.log == nil {
		t.log = logger.Discard()
	}
	if d.Window != nil {
		t.window = *d.Window
	}
	if t.ttl.Summary <= 0 {
		t.ttl.Summary = DefaultTTLs.Summary
	}
	if t.ttl.Report <= 0 {
		t.ttl.Report = DefaultTTLs.Report
	}
	if t.ttl.Analytics <= 0 {
		t.ttl.Analytics = DefaultTTLs.Analytics
	}
	if t.ttl.User <= 0 {
		t.ttl.User = DefaultTTLs.User
	}
	if t.bulk.Concurrency < 1 {
		t.bulk.Concurrency = 1
	}
	if t.location == nil {
		t.location = time.UTC
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// afterCommit runs the side effects of a committed transition. None of them can fail the operation.
func (t *Tracker) afterCommit(ctx context.Context, reg models.Registration, n Notification) {
	ctx = context.WithoutCancel(ctx)

	if n.Type == models.EventCheckIn {
		if err := t.events.IncrementAttendeeCount(ctx, reg.EventID); err != nil {
			t.log.Warn("incrementing attendee count failed", err, map[string]interface{}{"event": reg.EventID.String()})
		}
	}
	t.invalidate(ctx, reg.EventID, reg.UserID)

	if err := t.notifier.Notify(ctx, n); err != nil {
		t.log.Warn("attendance notification failed", err, map[string]interface{}{"registration": reg.ID.String()})
	}
}
