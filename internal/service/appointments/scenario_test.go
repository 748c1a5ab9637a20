package appointments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/observability/metrics"
	"careslot/backend/internal/store"
	"careslot/backend/internal/store/memory"
)

// monday is 2026-03-02, a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fixture struct {
	t       *testing.T
	store   *memory.Store
	svc     *Service
	doctor  uuid.UUID
	patient uuid.UUID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	doctor := uuid.MustParse(testDoctorID)
	patient := uuid.MustParse(testPatientID)
	st := memory.New(memory.WithDoctors(doctor), memory.WithPatients(patient))

	f := &fixture{t: t, store: st, doctor: doctor, patient: patient}
	f.schedule(domain.Monday, "09:00", "17:00", true)
	f.schedule(domain.Wednesday, "09:00", "17:00", false)

	opts = append([]Option{WithMetrics(metrics.NewBookingMetrics(prometheus.NewRegistry()))}, opts...)
	f.svc = NewService(st, opts...)
	return f
}

func (f *fixture) schedule(day domain.Weekday, start, end string, available bool) {
	f.t.Helper()
	_, err := f.store.CreateSchedule(context.Background(), domain.DoctorSchedule{
		DoctorID:    f.doctor,
		DayOfWeek:   day,
		StartTime:   domain.MustClockTime(start),
		EndTime:     domain.MustClockTime(end),
		IsAvailable: available,
	})
	if err != nil {
		f.t.Fatalf("CreateSchedule error: %v", err)
	}
}

func (f *fixture) book(start, end time.Time) (domain.Appointment, error) {
	out, err := f.svc.Create(context.Background(), CreateInput{
		DoctorID:  f.doctor.String(),
		PatientID: f.patient.String(),
		StartTime: start,
		EndTime:   end,
		Reason:    "checkup",
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	if len(out) != 1 {
		f.t.Fatalf("len(out) = %d, want 1", len(out))
	}
	return out[0], nil
}

func (f *fixture) mustBook(start, end time.Time) domain.Appointment {
	f.t.Helper()
	a, err := f.book(start, end)
	if err != nil {
		f.t.Fatalf("book %s-%s error: %v", start.Format("15:04"), end.Format("15:04"), err)
	}
	return a
}

func (f *fixture) activeInMarch() []domain.Appointment {
	f.t.Helper()
	rows, err := f.store.ListActiveAppointments(context.Background(), f.doctor, monday, monday.AddDate(0, 1, 0), uuid.Nil)
	if err != nil {
		f.t.Fatalf("ListActiveAppointments error: %v", err)
	}
	return rows
}

func at(day time.Time, hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestScenario_WorkingHoursAndOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CheckAvailability(ctx, f.doctor.String(), at(monday, 8, 30), at(monday, 9, 30))
	if err != nil {
		t.Fatalf("CheckAvailability error: %v", err)
	}
	if res.Available || res.Code != ReasonOutsideHours {
		t.Fatalf("result = %+v, want outside hours", res)
	}
	if want := "outside working hours: requested 08:30-09:30, allowed 09:00-17:00"; res.Reason != want {
		t.Fatalf("reason = %q, want %q", res.Reason, want)
	}

	booked := f.mustBook(at(monday, 9, 0), at(monday, 10, 0))

	_, err = f.book(at(monday, 9, 30), at(monday, 10, 30))
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("error type = %T (%v), want *ConflictError", err, err)
	}
	if cErr.ConflictingID != booked.ID {
		t.Fatalf("conflicting id = %s, want %s", cErr.ConflictingID, booked.ID)
	}
	if cErr.Overlap == nil || !cErr.Overlap.Start.Equal(at(monday, 9, 30)) || !cErr.Overlap.End.Equal(at(monday, 10, 0)) {
		t.Fatalf("overlap = %+v, want 09:30-10:00", cErr.Overlap)
	}
	if !strings.Contains(cErr.Error(), "overlap 09:30-10:00") {
		t.Fatalf("error = %q, want overlap named", cErr.Error())
	}

	f.mustBook(at(monday, 10, 0), at(monday, 11, 0))

	if got := len(f.activeInMarch()); got != 2 {
		t.Fatalf("active appointments = %d, want 2", got)
	}
}

func TestScenario_BackToBackAllowed(t *testing.T) {
	f := newFixture(t)

	f.mustBook(at(monday, 10, 0), at(monday, 11, 0))
	f.mustBook(at(monday, 11, 0), at(monday, 12, 0))
	f.mustBook(at(monday, 9, 0), at(monday, 10, 0))

	if got := len(f.activeInMarch()); got != 3 {
		t.Fatalf("active appointments = %d, want 3", got)
	}
}

func TestScenario_ScheduleReasons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tuesday := monday.AddDate(0, 0, 1)
	wednesday := monday.AddDate(0, 0, 2)

	res, err := f.svc.CheckAvailability(ctx, f.doctor.String(), at(tuesday, 10, 0), at(tuesday, 11, 0))
	if err != nil {
		t.Fatalf("CheckAvailability error: %v", err)
	}
	if res.Available || res.Reason != "no schedule for this day" {
		t.Fatalf("tuesday result = %+v", res)
	}

	res, err = f.svc.CheckAvailability(ctx, f.doctor.String(), at(wednesday, 10, 0), at(wednesday, 11, 0))
	if err != nil {
		t.Fatalf("CheckAvailability error: %v", err)
	}
	if res.Available || res.Reason != "doctor not available this day" {
		t.Fatalf("wednesday result = %+v", res)
	}

	_, err = f.book(at(tuesday, 10, 0), at(tuesday, 11, 0))
	var cErr *ConflictError
	if !errors.As(err, &cErr) || cErr.Code != ReasonNoSchedule {
		t.Fatalf("error = %v, want no schedule conflict", err)
	}
}

func TestScenario_AvailabilityIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustBook(at(monday, 9, 0), at(monday, 10, 0))

	first, err := f.svc.CheckAvailability(ctx, f.doctor.String(), at(monday, 9, 30), at(monday, 10, 30))
	if err != nil {
		t.Fatalf("CheckAvailability error: %v", err)
	}
	second, err := f.svc.CheckAvailability(ctx, f.doctor.String(), at(monday, 9, 30), at(monday, 10, 30))
	if err != nil {
		t.Fatalf("CheckAvailability error: %v", err)
	}
	if first.Available != second.Available || first.Reason != second.Reason {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
	if got := len(f.activeInMarch()); got != 1 {
		t.Fatalf("availability check changed state: %d appointments", got)
	}
}

func TestScenario_CrossMidnightRejected(t *testing.T) {
	f := newFixture(t)
	f.schedule(domain.Sunday, "20:00", "23:59", true)
	sunday := monday.AddDate(0, 0, 6)

	_, err := f.book(at(sunday, 23, 0), at(sunday, 24, 30))
	var cErr *ConflictError
	if !errors.As(err, &cErr) || cErr.Code != ReasonOutsideHours {
		t.Fatalf("error = %v, want outside working hours", err)
	}
}

func TestScenario_RecurringBatchIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	third := monday.AddDate(0, 0, 14)
	blocker := f.mustBook(at(third, 9, 30), at(third, 10, 0))

	endDate := at(monday, 9, 0).AddDate(0, 0, 21)
	_, err := f.svc.Create(ctx, CreateInput{
		DoctorID:          f.doctor.String(),
		PatientID:         f.patient.String(),
		StartTime:         at(monday, 9, 0),
		EndTime:           at(monday, 10, 0),
		Reason:            "physio",
		IsRecurring:       true,
		RecurrencePattern: "weekly",
		RecurrenceEndDate: &endDate,
	})
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("error type = %T (%v), want *ConflictError", err, err)
	}
	if cErr.Occurrence == nil || cErr.Occurrence.Index != 2 || cErr.Occurrence.Total != 4 {
		t.Fatalf("occurrence = %+v, want index 2 of 4", cErr.Occurrence)
	}
	if !strings.HasPrefix(cErr.Error(), "occurrence 3 of 4 on 2026-03-16: ") {
		t.Fatalf("error = %q", cErr.Error())
	}

	rows := f.activeInMarch()
	if len(rows) != 1 || rows[0].ID != blocker.ID {
		t.Fatalf("active appointments = %+v, want only the blocker", rows)
	}
}

func TestScenario_RecurringWeeklyCreatesEveryOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	endDate := at(monday, 9, 0).AddDate(0, 0, 21)
	out, err := f.svc.Create(ctx, CreateInput{
		DoctorID:          f.doctor.String(),
		PatientID:         f.patient.String(),
		StartTime:         at(monday, 9, 0),
		EndTime:           at(monday, 10, 0),
		Reason:            "physio",
		IsRecurring:       true,
		RecurrencePattern: "weekly",
		RecurrenceEndDate: &endDate,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
	seen := map[uuid.UUID]bool{}
	for i, a := range out {
		if want := at(monday, 9, 0).AddDate(0, 0, 7*i); !a.StartTime.Equal(want) {
			t.Fatalf("out[%d].StartTime = %s, want %s", i, a.StartTime, want)
		}
		if a.Status != domain.StatusScheduled {
			t.Fatalf("out[%d].Status = %s", i, a.Status)
		}
		seen[a.ID] = true
	}
	if len(seen) != 4 {
		t.Fatalf("occurrence ids are not distinct")
	}

	// occurrences are independent of each other
	if _, err := f.svc.Cancel(ctx, out[1].ID.String(), ""); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if got := len(f.activeInMarch()); got != 3 {
		t.Fatalf("active appointments = %d, want 3", got)
	}
}

func TestScenario_CancelThenRebook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.mustBook(at(monday, 9, 0), at(monday, 10, 0))
	if _, err := f.book(at(monday, 9, 0), at(monday, 10, 0)); err == nil {
		t.Fatalf("expected conflict before cancel")
	}

	cancelled, err := f.svc.Cancel(ctx, a.ID.String(), "staff-1")
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	again, err := f.svc.Cancel(ctx, a.ID.String(), "staff-1")
	if err != nil {
		t.Fatalf("second Cancel error: %v", err)
	}
	if again.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", again.Status)
	}

	f.mustBook(at(monday, 9, 0), at(monday, 10, 0))

	events, err := f.svc.ListEvents(ctx, a.ID.String())
	if err != nil {
		t.Fatalf("ListEvents error: %v", err)
	}
	if len(events) != 2 || events[0].Kind != domain.EventCreated || events[1].Kind != domain.EventCancelled {
		t.Fatalf("events = %+v, want created then cancelled", events)
	}
	if events[1].ActorID != "staff-1" || events[1].FromStatus != domain.StatusScheduled {
		t.Fatalf("cancel event = %+v", events[1])
	}
}

func TestScenario_StatusLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustBook(at(monday, 9, 0), at(monday, 10, 0))

	confirmed := domain.StatusConfirmed
	completed := domain.StatusCompleted

	got, err := f.svc.Update(ctx, a.ID.String(), UpdateInput{Status: &confirmed})
	if err != nil || got.Status != domain.StatusConfirmed {
		t.Fatalf("confirm = %+v, %v", got, err)
	}
	got, err = f.svc.Update(ctx, a.ID.String(), UpdateInput{Status: &completed})
	if err != nil || got.Status != domain.StatusCompleted {
		t.Fatalf("complete = %+v, %v", got, err)
	}

	var vErr *ValidationError
	if _, err := f.svc.Update(ctx, a.ID.String(), UpdateInput{Status: &confirmed}); !errors.As(err, &vErr) {
		t.Fatalf("completed -> confirmed error = %v, want *ValidationError", err)
	}
	if _, err := f.svc.Cancel(ctx, a.ID.String(), ""); !errors.As(err, &vErr) {
		t.Fatalf("cancel completed error = %v, want *ValidationError", err)
	}
	newStart, newEnd := at(monday, 13, 0), at(monday, 14, 0)
	if _, err := f.svc.Update(ctx, a.ID.String(), UpdateInput{StartTime: &newStart, EndTime: &newEnd}); !errors.As(err, &vErr) {
		t.Fatalf("reschedule completed error = %v, want *ValidationError", err)
	}
}

func TestScenario_Reschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustBook(at(monday, 9, 0), at(monday, 10, 0))
	f.mustBook(at(monday, 11, 0), at(monday, 12, 0))

	// overlapping its own old window is fine
	start, end := at(monday, 9, 30), at(monday, 10, 30)
	moved, err := f.svc.Update(ctx, a.ID.String(), UpdateInput{StartTime: &start, EndTime: &end})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if !moved.StartTime.Equal(start) || !moved.EndTime.Equal(end) {
		t.Fatalf("moved = %s-%s", moved.StartTime, moved.EndTime)
	}

	start, end = at(monday, 10, 30), at(monday, 11, 30)
	_, err = f.svc.Update(ctx, a.ID.String(), UpdateInput{StartTime: &start, EndTime: &end})
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("error type = %T (%v), want *ConflictError", err, err)
	}

	start = at(monday, 16, 30)
	end = at(monday, 17, 30)
	_, err = f.svc.Update(ctx, a.ID.String(), UpdateInput{StartTime: &start, EndTime: &end})
	if !errors.As(err, &cErr) || cErr.Code != ReasonOutsideHours {
		t.Fatalf("error = %v, want outside working hours", err)
	}

	notes := "bring x-rays"
	updated, err := f.svc.Update(ctx, a.ID.String(), UpdateInput{Notes: &notes})
	if err != nil || updated.Notes != notes {
		t.Fatalf("notes update = %+v, %v", updated, err)
	}

	events, err := f.svc.ListEvents(ctx, a.ID.String())
	if err != nil {
		t.Fatalf("ListEvents error: %v", err)
	}
	kinds := make([]domain.EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	want := []domain.EventKind{domain.EventCreated, domain.EventRescheduled, domain.EventUpdated}
	if len(kinds) != len(want) {
		t.Fatalf("event kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event kinds = %v, want %v", kinds, want)
		}
	}
}

func TestScenario_IdempotentCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := CreateInput{
		DoctorID:       f.doctor.String(),
		PatientID:      f.patient.String(),
		StartTime:      at(monday, 9, 0),
		EndTime:        at(monday, 10, 0),
		Reason:         "checkup",
		IdempotencyKey: "req-123",
	}

	first, err := f.svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	second, err := f.svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("replay error: %v", err)
	}
	if first[0].ID != second[0].ID {
		t.Fatalf("replay id = %s, want %s", second[0].ID, first[0].ID)
	}
	if got := len(f.activeInMarch()); got != 1 {
		t.Fatalf("active appointments = %d, want 1", got)
	}

	in.Reason = "something else"
	if _, err := f.svc.Create(ctx, in); !errors.Is(err, store.ErrIdempotencyConflict) {
		t.Fatalf("error = %v, want ErrIdempotencyConflict", err)
	}
}

func TestScenario_UnknownParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{
		DoctorID:  uuid.NewString(),
		PatientID: f.patient.String(),
		StartTime: at(monday, 9, 0),
		EndTime:   at(monday, 10, 0),
		Reason:    "checkup",
	})
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) || nfErr.Resource != "doctor" {
		t.Fatalf("error = %v, want doctor not found", err)
	}
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error should match store.ErrNotFound")
	}

	_, err = f.svc.Create(ctx, CreateInput{
		DoctorID:  f.doctor.String(),
		PatientID: uuid.NewString(),
		StartTime: at(monday, 9, 0),
		EndTime:   at(monday, 10, 0),
		Reason:    "checkup",
	})
	if !errors.As(err, &nfErr) || nfErr.Resource != "patient" {
		t.Fatalf("error = %v, want patient not found", err)
	}

	if _, err := f.svc.Cancel(ctx, uuid.NewString(), ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cancel unknown error = %v, want ErrNotFound", err)
	}
}

func TestScenario_OffsetTimestamps(t *testing.T) {
	// The clinic location does not apply to timestamps that carry an offset.
	f := newFixture(t, WithLocation(time.FixedZone("clinic", -5*3600)))
	ctx := context.Background()
	plus3 := time.FixedZone("+03:00", 3*3600)
	mon := func(hour, minute int) time.Time {
		return time.Date(2026, 3, 2, hour, minute, 0, 0, plus3)
	}

	// 09:00+03:00 is 06:00 UTC; bounds come from the caller's own day.
	res, err := f.svc.CheckAvailability(ctx, f.doctor.String(), mon(9, 0), mon(10, 0))
	if err != nil {
		t.Fatalf("CheckAvailability error: %v", err)
	}
	if !res.Available {
		t.Fatalf("result = %+v, want available", res)
	}

	res, err = f.svc.CheckAvailability(ctx, f.doctor.String(), mon(8, 30), mon(9, 30))
	if err != nil {
		t.Fatalf("CheckAvailability error: %v", err)
	}
	if want := "outside working hours: requested 08:30-09:30, allowed 09:00-17:00"; res.Reason != want {
		t.Fatalf("reason = %q, want %q", res.Reason, want)
	}
	if res.Allowed == nil || !res.Allowed.Start.Equal(mon(9, 0)) || !res.Allowed.End.Equal(mon(17, 0)) {
		t.Fatalf("allowed = %+v, want 09:00-17:00+03:00", res.Allowed)
	}

	a := f.mustBook(mon(9, 0), mon(10, 0))
	if a.StartTime.Location() != time.UTC || !a.StartTime.Equal(at(monday, 6, 0)) {
		t.Fatalf("stored start = %s, want 06:00 UTC", a.StartTime)
	}
	// 10:30+04:00 is 06:30 UTC, inside the first booking.
	plus4 := time.FixedZone("+04:00", 4*3600)
	_, err = f.book(time.Date(2026, 3, 2, 10, 30, 0, 0, plus4), time.Date(2026, 3, 2, 11, 0, 0, 0, plus4))
	var cErr *ConflictError
	if !errors.As(err, &cErr) || cErr.Code != ReasonOverlap || cErr.ConflictingID != a.ID {
		t.Fatalf("error = %v, want overlap with %s", err, a.ID)
	}

	// Monday 01:00+03:00 is Sunday 22:00 UTC: the Monday schedule applies.
	res, err = f.svc.CheckAvailability(ctx, f.doctor.String(), mon(1, 0), mon(2, 0))
	if err != nil {
		t.Fatalf("CheckAvailability error: %v", err)
	}
	if res.Code != ReasonOutsideHours {
		t.Fatalf("result = %+v, want outside hours on monday", res)
	}
	res, err = f.svc.CheckAvailability(ctx, f.doctor.String(), mon(1, 0).UTC(), mon(2, 0).UTC())
	if err != nil {
		t.Fatalf("CheckAvailability error: %v", err)
	}
	if res.Code != ReasonNoSchedule {
		t.Fatalf("result = %+v, want no schedule on sunday", res)
	}
}

func TestResolver_CheckUsesStartOffset(t *testing.T) {
	f := newFixture(t)
	r := NewResolver()
	ctx := context.Background()

	tests := []struct {
		name  string
		zone  *time.Location
		clock int
		want  ReasonCode
	}{
		{"utc inside hours", time.UTC, 9, ReasonNone},
		{"plus three inside hours", time.FixedZone("+03:00", 3*3600), 9, ReasonNone},
		{"minus eight inside hours", time.FixedZone("-08:00", -8*3600), 16, ReasonNone},
		{"plus three before opening", time.FixedZone("+03:00", 3*3600), 8, ReasonOutsideHours},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Date(2026, 3, 2, tt.clock, 0, 0, 0, tt.zone)
			res, err := r.Check(ctx, f.store, f.doctor, start, start.Add(time.Hour), uuid.Nil)
			if err != nil {
				t.Fatalf("Check error: %v", err)
			}
			if res.Code != tt.want || res.Available != (tt.want == ReasonNone) {
				t.Fatalf("result = %+v, want code %q", res, tt.want)
			}
		})
	}
}

func TestScenario_OutsideHoursCarriesAllowedWindow(t *testing.T) {
	f := newFixture(t)
	_, err := f.book(at(monday, 16, 30), at(monday, 17, 30))
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("error = %v, want ConflictError", err)
	}
	if cErr.Code != ReasonOutsideHours {
		t.Fatalf("code = %s, want %s", cErr.Code, ReasonOutsideHours)
	}
	if cErr.Allowed == nil || !cErr.Allowed.Start.Equal(at(monday, 9, 0)) || !cErr.Allowed.End.Equal(at(monday, 17, 0)) {
		t.Fatalf("allowed = %+v, want 09:00-17:00", cErr.Allowed)
	}
}

func TestScenario_AvailableSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustBook(at(monday, 9, 0), at(monday, 10, 0))
	f.mustBook(at(monday, 12, 15), at(monday, 12, 45))

	slots, err := f.svc.AvailableSlots(ctx, f.doctor.String(), monday, time.Hour)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	// 15 candidate starts from 09:00 to 16:00; 09:00 and 09:30 overlap the first
	// booking, 11:30, 12:00 and 12:30 overlap the second.
	if len(slots) != 10 {
		t.Fatalf("len(slots) = %d, want 10", len(slots))
	}
	if !slots[0].Start.Equal(at(monday, 10, 0)) {
		t.Fatalf("first slot = %s, want 10:00", slots[0].Start)
	}
	if last := slots[len(slots)-1]; !last.End.Equal(at(monday, 17, 0)) {
		t.Fatalf("last slot ends %s, want 17:00", last.End)
	}

	empty, err := f.svc.AvailableSlots(ctx, f.doctor.String(), monday.AddDate(0, 0, 2), time.Hour)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("unavailable day returned %d slots", len(empty))
	}
}

func TestScenario_ConcurrentBookingsOfSameSlot(t *testing.T) {
	f := newFixture(t)
	const workers = 8

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(context.Background(), CreateInput{
				DoctorID:  f.doctor.String(),
				PatientID: f.patient.String(),
				StartTime: at(monday, 9, 0),
				EndTime:   at(monday, 10, 0),
				Reason:    "checkup",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		var cErr *ConflictError
		switch {
		case err == nil:
			succeeded++
		case !errors.As(err, &cErr):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", succeeded)
	}
	if got := len(f.activeInMarch()); got != 1 {
		t.Fatalf("active appointments = %d, want 1", got)
	}
}
