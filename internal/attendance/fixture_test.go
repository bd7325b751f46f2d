package attendance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tvloc02/EventVer1-sub000/internal/attendance"
	"github.com/tvloc02/EventVer1-sub000/internal/cache"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
	"github.com/tvloc02/EventVer1-sub000/internal/qrcode"
	"github.com/tvloc02/EventVer1-sub000/internal/store/memstore"
)

var (
	eventStart = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	eventEnd   = time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC)
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recorder struct {
	mu   sync.Mutex
	sent []attendance.Notification
	err  error
	hook func(attendance.Notification)
}

func (r *recorder) Notify(_ context.Context, n attendance.Notification) error {
	r.mu.Lock()
	r.sent = append(r.sent, n)
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return r.err
}

func (r *recorder) all() []attendance.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]attendance.Notification(nil), r.sent...)
}

// brokenCache fails every call.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache offline")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache offline")
}

func (brokenCache) ClearPattern(context.Context, string) (int, error) {
	return 0, errors.New("cache offline")
}

type fixture struct {
	store    *memstore.Store
	cache    *cache.Memory
	clock    *clock
	notifier *recorder
	signer   *qrcode.Signer
	event    models.Event
	deps     attendance.Deps
	tracker  *attendance.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memstore.New(),
		cache:    cache.NewMemory(),
		clock:    &clock{now: eventStart.Add(5 * time.Minute)},
		notifier: &recorder{},
	}
	f.signer = qrcode.NewSigner("qr-secret", 24*time.Hour).WithClock(f.clock.Now)
	f.event = f.store.AddEvent(models.Event{Title: "Career fair", StartTime: eventStart, EndTime: eventEnd})
	f.deps = attendance.Deps{
		Registrations: f.store.Registrations(),
		Events:        f.store.Events(),
		Audit:         f.store.Audit(),
		Cache:         f.cache,
		QRCodes:       f.signer,
		Notifier:      f.notifier,
		Window:        &attendance.Window{OpensBefore: 2 * time.Hour, ClosesAfter: time.Hour},
		Now:           f.clock.Now,
	}
	f.tracker = attendance.New(f.deps)
	return f
}

// rebuild replaces the tracker after deps were modified.
func (f *fixture) rebuild() {
	f.tracker = attendance.New(f.deps)
}

func (f *fixture) register(t *testing.T, status models.RegistrationStatus, user models.User) models.Registration {
	t.Helper()
	if user.Name == "" {
		user.Name = "Student"
	}
	if user.Email == "" {
		user.Email = uuid.NewString() + "@example.com"
	}
	u := f.store.AddUser(user)
	return f.store.AddRegistration(models.Registration{EventID: f.event.ID, UserID: u.ID, Status: status})
}

func (f *fixture) eventWithDuration(t *testing.T, minutes int) models.Event {
	t.Helper()
	return f.store.AddEvent(models.Event{
		Title:           "Workshop",
		StartTime:       eventStart,
		EndTime:         eventStart.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
	})
}

type failingRegistrations struct {
	attendance.RegistrationStore
	err error
}

func (f failingRegistrations) ConditionalUpdate(context.Context, uuid.UUID, attendance.Expect, attendance.Update) (models.Registration, error) {
	return models.Registration{}, f.err
}

type failingCounter struct {
	attendance.EventStore
}

func (failingCounter) IncrementAttendeeCount(context.Context, uuid.UUID) error {
	return errors.New("deadlock detected")
}
