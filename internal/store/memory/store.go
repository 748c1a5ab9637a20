package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/store"
)

// Store keeps doctors, schedules and appointments in process memory. A booking
// transaction holds the store lock for its whole duration and stages its
// writes, so a failed callback leaves the committed state untouched.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	doctors      map[uuid.UUID]struct{}
	patients     map[uuid.UUID]struct{}
	schedules    map[uuid.UUID]domain.DoctorSchedule
	appointments map[uuid.UUID]domain.Appointment
	events       []domain.AppointmentEvent
}

type Option func(*Store)

var (
	_ store.AppointmentRepository = (*Store)(nil)
	_ store.ScheduleRepository    = (*Store)(nil)
)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithDoctors(ids ...uuid.UUID) Option {
	return func(s *Store) {
		for _, id := range ids {
			s.doctors[id] = struct{}{}
		}
	}
}

func WithPatients(ids ...uuid.UUID) Option {
	return func(s *Store) {
		for _, id := range ids {
			s.patients[id] = struct{}{}
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		now:          time.Now,
		doctors:      make(map[uuid.UUID]struct{}),
		patients:     make(map[uuid.UUID]struct{}),
		schedules:    make(map[uuid.UUID]domain.DoctorSchedule),
		appointments: make(map[uuid.UUID]domain.Appointment),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) AddDoctor(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors[id] = struct{}{}
}

func (s *Store) AddPatient(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[id] = struct{}{}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) InDoctorTransaction(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx store.BookingTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &bookingTx{
		s:      s,
		staged: make(map[uuid.UUID]domain.Appointment),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, a := range tx.staged {
		s.appointments[id] = a
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *Store) GetScheduleForDay(ctx context.Context, doctorID uuid.UUID, day domain.Weekday) (domain.DoctorSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleForDay(doctorID, day)
}

func (s *Store) ListActiveAppointments(ctx context.Context, doctorID uuid.UUID, windowStart, windowEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return activeOverlapping(s.appointments, nil, doctorID, windowStart, windowEnd, excludeID), nil
}

func (s *Store) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListByDoctor(ctx context.Context, doctorID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return s.listWhere(func(a domain.Appointment) bool { return a.DoctorID == doctorID }, windowStart, windowEnd), nil
}

func (s *Store) ListByPatient(ctx context.Context, patientID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return s.listWhere(func(a domain.Appointment) bool { return a.PatientID == patientID }, windowStart, windowEnd), nil
}

func (s *Store) ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]domain.AppointmentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AppointmentEvent
	for _, ev := range s.events {
		if ev.AppointmentID == appointmentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) listWhere(match func(domain.Appointment) bool, windowStart, windowEnd time.Time) []domain.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Appointment
	for _, a := range s.appointments {
		if match(a) && a.Overlaps(windowStart, windowEnd) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out
}

func (s *Store) scheduleForDay(doctorID uuid.UUID, day domain.Weekday) (domain.DoctorSchedule, error) {
	for _, sc := range s.schedules {
		if sc.DoctorID == doctorID && sc.DayOfWeek == day {
			return sc, nil
		}
	}
	return domain.DoctorSchedule{}, store.ErrNotFound
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

type bookingTx struct {
	s      *Store
	staged map[uuid.UUID]domain.Appointment
	events []domain.AppointmentEvent
}

func (t *bookingTx) DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	_, ok := t.s.doctors[doctorID]
	return ok, nil
}

func (t *bookingTx) PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	_, ok := t.s.patients[patientID]
	return ok, nil
}

func (t *bookingTx) GetScheduleForDay(ctx context.Context, doctorID uuid.UUID, day domain.Weekday) (domain.DoctorSchedule, error) {
	return t.s.scheduleForDay(doctorID, day)
}

func (t *bookingTx) ListActiveAppointments(ctx context.Context, doctorID uuid.UUID, windowStart, windowEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
	return activeOverlapping(t.s.appointments, t.staged, doctorID, windowStart, windowEnd, excludeID), nil
}

func (t *bookingTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	a, ok := t.lookup(id)
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (t *bookingTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if appt.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Appointment{}, err
		}
		appt.ID = id
	}
	if existing, ok := t.lookup(appt.ID); ok {
		if !sameBooking(existing, appt) {
			return domain.Appointment{}, store.ErrIdempotencyConflict
		}
		return existing, nil
	}
	if appt.Status == "" {
		appt.Status = domain.StatusScheduled
	}
	if err := t.ensureNoOverlap(appt); err != nil {
		return domain.Appointment{}, err
	}

	now := t.s.stamp()
	appt.StartTime = appt.StartTime.UTC()
	appt.EndTime = appt.EndTime.UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	t.staged[appt.ID] = appt
	return appt, nil
}

func (t *bookingTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	existing, ok := t.lookup(appt.ID)
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err := t.ensureNoOverlap(appt); err != nil {
		return domain.Appointment{}, err
	}

	appt.StartTime = appt.StartTime.UTC()
	appt.EndTime = appt.EndTime.UTC()
	appt.CreatedAt = existing.CreatedAt
	appt.UpdatedAt = t.s.stamp()
	t.staged[appt.ID] = appt
	return appt, nil
}

func (t *bookingTx) RecordEvent(ctx context.Context, ev domain.AppointmentEvent) error {
	if ev.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		ev.ID = id
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = t.s.stamp()
	}
	t.events = append(t.events, ev)
	return nil
}

func (t *bookingTx) lookup(id uuid.UUID) (domain.Appointment, bool) {
	if a, ok := t.staged[id]; ok {
		return a, true
	}
	a, ok := t.s.appointments[id]
	return a, ok
}

// ensureNoOverlap plays the role of the exclusion constraint in postgres.
func (t *bookingTx) ensureNoOverlap(appt domain.Appointment) error {
	if !appt.Active() {
		return nil
	}
	if len(activeOverlapping(t.s.appointments, t.staged, appt.DoctorID, appt.StartTime, appt.EndTime, appt.ID)) > 0 {
		return store.ErrConflict
	}
	return nil
}

func activeOverlapping(committed, staged map[uuid.UUID]domain.Appointment, doctorID uuid.UUID, windowStart, windowEnd time.Time, excludeID uuid.UUID) []domain.Appointment {
	var out []domain.Appointment
	consider := func(a domain.Appointment) {
		if a.DoctorID != doctorID || !a.Active() {
			return
		}
		if excludeID != uuid.Nil && a.ID == excludeID {
			return
		}
		if a.Overlaps(windowStart, windowEnd) {
			out = append(out, a)
		}
	}
	for id, a := range committed {
		if _, overridden := staged[id]; overridden {
			continue
		}
		consider(a)
	}
	for _, a := range staged {
		consider(a)
	}
	sortByStart(out)
	return out
}

func sameBooking(a, b domain.Appointment) bool {
	return a.DoctorID == b.DoctorID &&
		a.PatientID == b.PatientID &&
		a.Reason == b.Reason &&
		a.Notes == b.Notes &&
		a.StartTime.Equal(b.StartTime) &&
		a.EndTime.Equal(b.EndTime)
}

func sortByStart(appts []domain.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].StartTime.Before(appts[j].StartTime)
	})
}
