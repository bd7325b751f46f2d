package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tvloc02/EventVer1-sub000/internal/attendance"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
)

// Store keeps users, events, registrations and the audit log in memory.
// A single mutex serialises every write so ConditionalUpdate is a true compare-and-swap.
type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]models.User
	events        map[uuid.UUID]models.Event
	registrations map[uuid.UUID]models.Registration
	audit         []models.AttendanceEvent
	now           func() time.Time
}

var (
	_ attendance.RegistrationStore = (*Registrations)(nil)
	_ attendance.EventStore        = (*Events)(nil)
	_ attendance.AuditLog          = (*Audit)(nil)
)

func New() *Store {
	return &Store{
		users:         make(map[uuid.UUID]models.User),
		events:        make(map[uuid.UUID]models.Event),
		registrations: make(map[uuid.UUID]models.Registration),
		now:           time.Now,
	}
}

func (s *Store) Registrations() *Registrations { return &Registrations{s} }
func (s *Store) Events() *Events               { return &Events{s} }
func (s *Store) Audit() *Audit                 { return &Audit{s} }

func (s *Store) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt, u.UpdatedAt = s.now(), s.now()
	s.users[u.ID] = u
	return u
}

func (s *Store) AddEvent(e models.Event) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt, e.UpdatedAt = s.now(), s.now()
	s.events[e.ID] = e
	return e
}

func (s *Store) AddRegistration(r models.Registration) models.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = models.StatusPending
	}
	r.User, r.Event = nil, nil
	r.CreatedAt, r.UpdatedAt = s.now(), s.now()
	s.registrations[r.ID] = r
	return s.hydrate(r)
}

// hydrate attaches copies of the related user and event; callers hold s.mu.
func (s *Store) hydrate(r models.Registration) models.Registration {
	if u, ok := s.users[r.UserID]; ok {
		r.User = &u
	}
	if e, ok := s.events[r.EventID]; ok {
		r.Event = &e
	}
	return r
}

func (s *Store) list(match func(models.Registration) bool) []models.Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Registration{}
	for _, r := range s.registrations {
		if match(r) {
			out = append(out, s.hydrate(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

type Registrations struct{ s *Store }

func (r *Registrations) FindByID(ctx context.Context, id uuid.UUID) (models.Registration, error) {
	if err := ctx.Err(); err != nil {
		return models.Registration{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	reg, ok := r.s.registrations[id]
	if !ok {
		return models.Registration{}, attendance.ErrNotFound
	}
	return r.s.hydrate(reg), nil
}

func (r *Registrations) FindByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (models.Registration, error) {
	if err := ctx.Err(); err != nil {
		return models.Registration{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, reg := range r.s.registrations {
		if reg.EventID == eventID && reg.UserID == userID {
			return r.s.hydrate(reg), nil
		}
	}
	return models.Registration{}, attendance.ErrNotFound
}

func (r *Registrations) ConditionalUpdate(ctx context.Context, id uuid.UUID, expect attendance.Expect, u attendance.Update) (models.Registration, error) {
	if err := ctx.Err(); err != nil {
		return models.Registration{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reg, ok := r.s.registrations[id]
	if !ok {
		return models.Registration{}, attendance.ErrNotFound
	}
	if !expect.Matches(reg) {
		return models.Registration{}, attendance.ErrConflict
	}

	if u.Status != "" {
		reg.Status = u.Status
	}
	reg.Attendance = u.Attendance
	reg.UpdatedAt = r.s.now()
	r.s.registrations[id] = reg

	entry := u.Entry
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = r.s.now()
	r.s.audit = append(r.s.audit, entry)

	return r.s.hydrate(reg), nil
}

func (r *Registrations) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.list(func(reg models.Registration) bool { return reg.EventID == eventID }), nil
}

func (r *Registrations) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.list(func(reg models.Registration) bool { return reg.UserID == userID }), nil
}

type Events struct{ s *Store }

func (e *Events) FindByID(ctx context.Context, id uuid.UUID) (models.Event, error) {
	if err := ctx.Err(); err != nil {
		return models.Event{}, err
	}
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	ev, ok := e.s.events[id]
	if !ok {
		return models.Event{}, attendance.ErrNotFound
	}
	return ev, nil
}

func (e *Events) IncrementAttendeeCount(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	ev, ok := e.s.events[id]
	if !ok {
		return attendance.ErrNotFound
	}
	ev.AttendeeCount++
	e.s.events[id] = ev
	return nil
}

func (e *Events) GetScheduleDuration(ctx context.Context, id uuid.UUID) (int, error) {
	ev, err := e.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return ev.ScheduleMinutes(), nil
}

type Audit struct{ s *Store }

func (a *Audit) ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.AttendanceEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	out := []models.AttendanceEvent{}
	for _, entry := range a.s.audit {
		if entry.RegistrationID == registrationID {
			out = append(out, entry)
		}
	}
	return out, nil
}
