package appointments

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/observability/metrics"
	"careslot/backend/internal/store"
)

const (
	DefaultMaxOccurrences = 366
	DefaultSlotStep       = 30 * time.Minute
	maxAppointmentLength  = 24 * time.Hour
	maxIdempotencyKeyLen  = 256
)

var bookingTracer trace.Tracer = otel.Tracer("careslot.internal.service.appointments")

type Service struct {
	repo           store.AppointmentRepository
	resolver       *Resolver
	loc            *time.Location
	metrics        *metrics.BookingMetrics
	maxOccurrences int
	slotStep       time.Duration
}

type Option func(*Service)

// WithLocation sets the clinic location. It applies to calendar dates and
// to timestamps given without a UTC offset.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithMaxOccurrences(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxOccurrences = n
		}
	}
}

func WithSlotStep(step time.Duration) Option {
	return func(s *Service) {
		if step > 0 {
			s.slotStep = step
		}
	}
}

func NewService(repo store.AppointmentRepository, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		resolver:       NewResolver(),
		loc:            time.UTC,
		maxOccurrences: DefaultMaxOccurrences,
		slotStep:       DefaultSlotStep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) CheckAvailability(ctx context.Context, doctorID string, start, end time.Time) (Result, error) {
	id, err := parseID("doctor_id", doctorID)
	if err != nil {
		return Result{}, err
	}
	start, end, err = normalizeWindow(start, end)
	if err != nil {
		return Result{}, err
	}

	res, err := s.resolver.Check(ctx, s.repo, id, start, end, uuid.Nil)
	if err != nil {
		return Result{}, err
	}
	if res.Available {
		s.metrics.ObserveAvailability("available")
	} else {
		s.metrics.ObserveAvailability(string(res.Code))
	}
	return res, nil
}

type CreateInput struct {
	DoctorID          string
	PatientID         string
	StartTime         time.Time
	EndTime           time.Time
	Reason            string
	Notes             string
	IsRecurring       bool
	RecurrencePattern string
	RecurrenceEndDate *time.Time
	IdempotencyKey    string
	ActorID           string
}

// Create books one appointment, or every occurrence of a recurring request.
// Occurrences are checked and inserted in chronological order inside a single
// doctor transaction; the first one that cannot be booked aborts the batch.
func (s *Service) Create(ctx context.Context, in CreateInput) (out []domain.Appointment, err error) {
	ctx, span := bookingTracer.Start(ctx, "appointments.Create")
	defer span.End()
	defer s.observe("create", time.Now(), span, &err)

	doctorID, err := parseID("doctor_id", in.DoctorID)
	if err != nil {
		return nil, err
	}
	patientID, err := parseID("patient_id", in.PatientID)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, validationError("reason is required")
	}
	start, end, err := normalizeWindow(in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return nil, validationError("idempotency_key too long")
	}

	occs, err := s.occurrences(in, start, end)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("doctor_id", doctorID.String()),
		attribute.Bool("recurring", in.IsRecurring),
		attribute.Int("occurrences", len(occs)),
	)
	if in.IsRecurring {
		s.metrics.ObserveRecurringBatch(len(occs))
	}

	err = s.repo.InDoctorTransaction(ctx, doctorID, func(ctx context.Context, tx store.BookingTx) error {
		if err := ensureParties(ctx, tx, doctorID, patientID); err != nil {
			return err
		}

		created := make([]domain.Appointment, 0, len(occs))
		for _, occ := range occs {
			occStart, occEnd := occ.StartTime.In(start.Location()), occ.EndTime.In(start.Location())
			appt := domain.Appointment{
				DoctorID:  doctorID,
				PatientID: patientID,
				StartTime: occStart.UTC(),
				EndTime:   occEnd.UTC(),
				Status:    domain.StatusScheduled,
				Reason:    reason,
				Notes:     in.Notes,
			}
			var ref *OccurrenceRef
			if in.IsRecurring {
				ref = &OccurrenceRef{Index: occ.Index, Total: len(occs), Start: occStart}
			}

			if key != "" {
				appt.ID = idempotentID(doctorID, key, occ.Index)
				existing, err := tx.GetAppointment(ctx, appt.ID)
				switch {
				case err == nil:
					if !sameRequest(existing, appt) {
						return store.ErrIdempotencyConflict
					}
					created = append(created, existing)
					continue
				case !errors.Is(err, store.ErrNotFound):
					return err
				}
			}

			res, err := s.resolver.Check(ctx, tx, doctorID, occStart, occEnd, uuid.Nil)
			if err != nil {
				return err
			}
			if !res.Available {
				return res.conflict(ref)
			}

			a, err := tx.CreateAppointment(ctx, appt)
			if errors.Is(err, store.ErrConflict) {
				return storageConflict(ref)
			}
			if err != nil {
				return err
			}
			if err := tx.RecordEvent(ctx, domain.NewAppointmentEvent(domain.EventCreated, "", a, in.ActorID)); err != nil {
				return err
			}
			created = append(created, a)
		}
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) occurrences(in CreateInput, start, end time.Time) ([]domain.Occurrence, error) {
	if !in.IsRecurring {
		return []domain.Occurrence{{Index: 0, StartTime: start, EndTime: end}}, nil
	}
	if strings.TrimSpace(in.RecurrencePattern) == "" {
		return nil, validationError("recurrence_pattern is required for recurring appointments")
	}
	pattern, err := domain.ParsePattern(in.RecurrencePattern)
	if err != nil {
		return nil, validationError("unsupported recurrence_pattern")
	}
	if in.RecurrenceEndDate == nil {
		return nil, validationError("recurrence_end_date is required for recurring appointments")
	}

	occs, err := domain.Expand(domain.RecurrencePlan{
		Pattern:     pattern,
		AnchorStart: start,
		AnchorEnd:   end,
		EndDate:     *in.RecurrenceEndDate,
	}, start.Location(), s.maxOccurrences)
	switch {
	case errors.Is(err, domain.ErrEndDateBeforeStart):
		return nil, validationError("recurrence_end_date must be after start_time")
	case errors.Is(err, domain.ErrTooManyOccurrences):
		return nil, validationErrorf("recurrence produces more than %d occurrences", s.maxOccurrences)
	case err != nil:
		return nil, validationError(err.Error())
	}
	return occs, nil
}

type UpdateInput struct {
	StartTime *time.Time
	EndTime   *time.Time
	Status    *domain.Status
	Reason    *string
	Notes     *string
	ActorID   string
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (out domain.Appointment, err error) {
	ctx, span := bookingTracer.Start(ctx, "appointments.Update")
	defer span.End()
	defer s.observe("update", time.Now(), span, &err)

	apptID, err := parseID("appointment_id", id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if in.Reason != nil && strings.TrimSpace(*in.Reason) == "" {
		return domain.Appointment{}, validationError("reason must not be empty")
	}
	if in.Status != nil {
		if _, err := domain.ParseStatus(string(*in.Status)); err != nil {
			return domain.Appointment{}, validationError("unsupported status")
		}
	}

	return s.mutate(ctx, apptID, in.ActorID, func(ctx context.Context, tx store.BookingTx, current domain.Appointment) (domain.Appointment, domain.EventKind, error) {
		next := current
		if in.Reason != nil {
			next.Reason = strings.TrimSpace(*in.Reason)
		}
		if in.Notes != nil {
			next.Notes = *in.Notes
		}

		statusChanged := in.Status != nil && *in.Status != current.Status
		if statusChanged {
			if !current.Status.CanTransitionTo(*in.Status) {
				return domain.Appointment{}, "", validationErrorf("cannot change status from %s to %s", current.Status, *in.Status)
			}
			next.Status = *in.Status
		}

		start, end := current.StartTime, current.EndTime
		if in.StartTime != nil {
			start = *in.StartTime
		}
		if in.EndTime != nil {
			end = *in.EndTime
		}
		rescheduled := !start.Equal(current.StartTime) || !end.Equal(current.EndTime)
		if rescheduled {
			if current.Status.Terminal() {
				return domain.Appointment{}, "", validationErrorf("cannot reschedule a %s appointment", current.Status)
			}
			var err error
			start, end, err = normalizeWindow(start, end)
			if err != nil {
				return domain.Appointment{}, "", err
			}
			next.StartTime, next.EndTime = start.UTC(), end.UTC()
			if next.Active() {
				res, err := s.resolver.Check(ctx, tx, current.DoctorID, start, end, current.ID)
				if err != nil {
					return domain.Appointment{}, "", err
				}
				if !res.Available {
					return domain.Appointment{}, "", res.conflict(nil)
				}
			}
		}

		switch {
		case statusChanged && next.Status == domain.StatusCancelled:
			return next, domain.EventCancelled, nil
		case rescheduled:
			return next, domain.EventRescheduled, nil
		case statusChanged:
			return next, domain.EventStatusChanged, nil
		case next.Reason != current.Reason || next.Notes != current.Notes:
			return next, domain.EventUpdated, nil
		}
		return current, "", nil
	})
}

// Cancel releases the appointment's slot. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id, actorID string) (out domain.Appointment, err error) {
	ctx, span := bookingTracer.Start(ctx, "appointments.Cancel")
	defer span.End()
	defer s.observe("cancel", time.Now(), span, &err)

	apptID, err := parseID("appointment_id", id)
	if err != nil {
		return domain.Appointment{}, err
	}

	return s.mutate(ctx, apptID, actorID, func(ctx context.Context, tx store.BookingTx, current domain.Appointment) (domain.Appointment, domain.EventKind, error) {
		if current.Status == domain.StatusCancelled {
			return current, "", nil
		}
		if !current.Status.CanTransitionTo(domain.StatusCancelled) {
			return domain.Appointment{}, "", validationErrorf("cannot cancel a %s appointment", current.Status)
		}
		next := current
		next.Status = domain.StatusCancelled
		return next, domain.EventCancelled, nil
	})
}

type mutation func(ctx context.Context, tx store.BookingTx, current domain.Appointment) (domain.Appointment, domain.EventKind, error)

// mutate applies change under the owning doctor's lock. An empty event kind
// means nothing changed and nothing is written.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, actorID string, change mutation) (domain.Appointment, error) {
	snapshot, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, asNotFound(err, "appointment")
	}

	var out domain.Appointment
	err = s.repo.InDoctorTransaction(ctx, snapshot.DoctorID, func(ctx context.Context, tx store.BookingTx) error {
		current, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return asNotFound(err, "appointment")
		}

		next, kind, err := change(ctx, tx, current)
		if err != nil {
			return err
		}
		if kind == "" {
			out = current
			return nil
		}

		updated, err := tx.UpdateAppointment(ctx, next)
		if errors.Is(err, store.ErrConflict) {
			return storageConflict(nil)
		}
		if err != nil {
			return err
		}
		if err := tx.RecordEvent(ctx, domain.NewAppointmentEvent(kind, current.Status, updated, actorID)); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Appointment, error) {
	apptID, err := parseID("appointment_id", id)
	if err != nil {
		return domain.Appointment{}, err
	}
	a, err := s.repo.GetAppointment(ctx, apptID)
	if err != nil {
		return domain.Appointment{}, asNotFound(err, "appointment")
	}
	return a, nil
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	id, err := parseID("doctor_id", doctorID)
	if err != nil {
		return nil, err
	}
	start, end, err := listWindow(windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByDoctor(ctx, id, start, end)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	id, err := parseID("patient_id", patientID)
	if err != nil {
		return nil, err
	}
	start, end, err := listWindow(windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, id, start, end)
}

func (s *Service) ListEvents(ctx context.Context, appointmentID string) ([]domain.AppointmentEvent, error) {
	id, err := parseID("appointment_id", appointmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetAppointment(ctx, id); err != nil {
		return nil, asNotFound(err, "appointment")
	}
	return s.repo.ListEvents(ctx, id)
}

type Slot struct {
	Start time.Time
	End   time.Time
}

// AvailableSlots lists bookable windows of the given length on day, stepping
// from the start of the doctor's working window.
func (s *Service) AvailableSlots(ctx context.Context, doctorID string, day time.Time, duration time.Duration) ([]Slot, error) {
	id, err := parseID("doctor_id", doctorID)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, validationError("duration must be positive")
	}
	if duration > maxAppointmentLength {
		return nil, validationError("duration too long")
	}

	loc := s.Location()
	local := day.In(loc)
	schedule, err := s.repo.GetScheduleForDay(ctx, id, domain.WeekdayOf(local))
	if errors.Is(err, store.ErrNotFound) {
		return []Slot{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !schedule.IsAvailable {
		return []Slot{}, nil
	}

	dayStart, dayEnd := schedule.Bounds(local, loc)
	booked, err := s.repo.ListActiveAppointments(ctx, id, dayStart, dayEnd, uuid.Nil)
	if err != nil {
		return nil, err
	}

	slots := []Slot{}
	for t := dayStart; !t.Add(duration).After(dayEnd); t = t.Add(s.slotStep) {
		start, end := t.UTC(), t.Add(duration).UTC()
		if _, blocked := firstConflict(booked, start, end, uuid.Nil); blocked {
			continue
		}
		slots = append(slots, Slot{Start: start, End: end})
	}
	return slots, nil
}

func (s *Service) observe(operation string, started time.Time, span trace.Span, errp *error) {
	err := *errp
	outcome := outcomeOf(err)
	if err != nil {
		span.RecordError(err)
		if outcome == "error" {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	s.metrics.ObserveOperation(operation, outcome, time.Since(started).Seconds())
}

func outcomeOf(err error) string {
	var vErr *ValidationError
	var cErr *ConflictError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &vErr):
		return "invalid"
	case errors.As(err, &cErr):
		return "conflict"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrIdempotencyConflict):
		return "idempotency_conflict"
	}
	return "error"
}

func ensureParties(ctx context.Context, tx store.BookingTx, doctorID, patientID uuid.UUID) error {
	ok, err := tx.DoctorExists(ctx, doctorID)
	if err != nil {
		return err
	}
	if !ok {
		return notFoundError("doctor")
	}
	ok, err = tx.PatientExists(ctx, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return notFoundError("patient")
	}
	return nil
}

func storageConflict(ref *OccurrenceRef) error {
	return &ConflictError{
		Reason:     "conflicts with an existing appointment",
		Code:       ReasonOverlap,
		Occurrence: ref,
	}
}

func idempotentID(doctorID uuid.UUID, key string, index int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("careslot:create_appointment:"+doctorID.String()+":"+key+":"+strconv.Itoa(index)))
}

func sameRequest(existing, want domain.Appointment) bool {
	return existing.DoctorID == want.DoctorID &&
		existing.PatientID == want.PatientID &&
		existing.Reason == want.Reason &&
		existing.Notes == want.Notes &&
		existing.StartTime.Equal(want.StartTime) &&
		existing.EndTime.Equal(want.EndTime)
}

func parseID(field, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, validationErrorf("%s is required", field)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, validationErrorf("%s must be a valid UUID", field)
	}
	return id, nil
}

func normalizeWindow(start, end time.Time) (time.Time, time.Time, error) {
	if start.IsZero() {
		return time.Time{}, time.Time{}, validationError("start_time is required")
	}
	if end.IsZero() {
		return time.Time{}, time.Time{}, validationError("end_time is required")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, validationError("end_time must be after start_time")
	}
	if end.Sub(start) > maxAppointmentLength {
		return time.Time{}, time.Time{}, validationError("duration too long")
	}
	return start, end, nil
}

func listWindow(windowStart, windowEnd time.Time) (time.Time, time.Time, error) {
	start, end := windowStart.UTC(), windowEnd.UTC()
	if !end.After(start) {
		return time.Time{}, time.Time{}, validationError("window_end must be after window_start")
	}
	return start, end, nil
}

func asNotFound(err error, resource string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError(resource)
	}
	return err
}
