package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/store"
)

var (
	doctorID  = uuid.MustParse("00000000-0000-0000-0000-0000000000d1")
	patientID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
)

func newTestStore() *Store {
	fixed := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	return New(
		WithClock(func() time.Time { return fixed }),
		WithDoctors(doctorID),
		WithPatients(patientID),
	)
}

func appt(start time.Time, d time.Duration) domain.Appointment {
	return domain.Appointment{
		DoctorID:  doctorID,
		PatientID: patientID,
		StartTime: start,
		EndTime:   start.Add(d),
		Reason:    "checkup",
	}
}

func TestInDoctorTransaction_RollsBackOnError(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := s.InDoctorTransaction(ctx, doctorID, func(ctx context.Context, tx store.BookingTx) error {
		a, err := tx.CreateAppointment(ctx, appt(start, time.Hour))
		if err != nil {
			return err
		}
		if err := tx.RecordEvent(ctx, domain.NewAppointmentEvent(domain.EventCreated, "", a, "")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}

	rows, err := s.ListByDoctor(ctx, doctorID, start.Add(-time.Hour), start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ListByDoctor error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("len(rows) = %d, want 0", len(rows))
	}
}

func TestCreateAppointment_EnforcesNoOverlap(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	err := s.InDoctorTransaction(ctx, doctorID, func(ctx context.Context, tx store.BookingTx) error {
		if _, err := tx.CreateAppointment(ctx, appt(start, time.Hour)); err != nil {
			return err
		}
		if _, err := tx.CreateAppointment(ctx, appt(start.Add(time.Hour), time.Hour)); err != nil {
			return err
		}
		_, err := tx.CreateAppointment(ctx, appt(start.Add(30*time.Minute), time.Hour))
		if !errors.Is(err, store.ErrConflict) {
			t.Fatalf("overlapping insert error = %v, want ErrConflict", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InDoctorTransaction error: %v", err)
	}

	rows, _ := s.ListActiveAppointments(ctx, doctorID, start, start.Add(3*time.Hour), uuid.Nil)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if !rows[0].StartTime.Equal(start) {
		t.Fatalf("rows not ordered by start")
	}
}

func TestCreateAppointment_IdempotentReplay(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := appt(start, time.Hour)
	a.ID = uuid.MustParse("00000000-0000-0000-0000-000000000901")

	create := func(in domain.Appointment) (domain.Appointment, error) {
		var out domain.Appointment
		err := s.InDoctorTransaction(ctx, doctorID, func(ctx context.Context, tx store.BookingTx) error {
			var err error
			out, err = tx.CreateAppointment(ctx, in)
			return err
		})
		return out, err
	}

	first, err := create(a)
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	second, err := create(a)
	if err != nil {
		t.Fatalf("replay error: %v", err)
	}
	if first.ID != second.ID || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("replay returned a different row")
	}

	changed := a
	changed.Reason = "different"
	if _, err := create(changed); !errors.Is(err, store.ErrIdempotencyConflict) {
		t.Fatalf("error = %v, want ErrIdempotencyConflict", err)
	}
}

func TestUpdateAppointment_CancelledReleasesSlot(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	var created domain.Appointment
	err := s.InDoctorTransaction(ctx, doctorID, func(ctx context.Context, tx store.BookingTx) error {
		var err error
		created, err = tx.CreateAppointment(ctx, appt(start, time.Hour))
		return err
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	err = s.InDoctorTransaction(ctx, doctorID, func(ctx context.Context, tx store.BookingTx) error {
		created.Status = domain.StatusCancelled
		if _, err := tx.UpdateAppointment(ctx, created); err != nil {
			return err
		}
		_, err := tx.CreateAppointment(ctx, appt(start, time.Hour))
		return err
	})
	if err != nil {
		t.Fatalf("rebook error: %v", err)
	}

	rows, _ := s.ListByDoctor(ctx, doctorID, start, start.Add(time.Hour))
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 (cancelled row is kept)", len(rows))
	}
}

func TestSchedules_UniquePerDay(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	mon := domain.DoctorSchedule{
		DoctorID:    doctorID,
		DayOfWeek:   domain.Monday,
		StartTime:   domain.MustClockTime("09:00"),
		EndTime:     domain.MustClockTime("17:00"),
		IsAvailable: true,
	}
	created, err := s.CreateSchedule(ctx, mon)
	if err != nil {
		t.Fatalf("CreateSchedule error: %v", err)
	}
	if _, err := s.CreateSchedule(ctx, mon); !errors.Is(err, store.ErrDuplicateSchedule) {
		t.Fatalf("error = %v, want ErrDuplicateSchedule", err)
	}

	tue := mon
	tue.DayOfWeek = domain.Tuesday
	tueCreated, err := s.CreateSchedule(ctx, tue)
	if err != nil {
		t.Fatalf("CreateSchedule error: %v", err)
	}

	tueCreated.DayOfWeek = domain.Monday
	if _, err := s.UpdateSchedule(ctx, tueCreated); !errors.Is(err, store.ErrDuplicateSchedule) {
		t.Fatalf("update error = %v, want ErrDuplicateSchedule", err)
	}

	list, _ := s.ListSchedules(ctx, doctorID)
	if len(list) != 2 || list[0].ID != created.ID {
		t.Fatalf("ListSchedules = %+v", list)
	}

	if err := s.DeleteSchedule(ctx, created.ID); err != nil {
		t.Fatalf("DeleteSchedule error: %v", err)
	}
	if _, err := s.GetScheduleForDay(ctx, doctorID, domain.Monday); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
