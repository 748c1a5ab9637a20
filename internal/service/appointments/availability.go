package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/store"
)

type ReasonCode string

const (
	ReasonNone           ReasonCode = ""
	ReasonNoSchedule     ReasonCode = "no_schedule"
	ReasonDayUnavailable ReasonCode = "day_unavailable"
	ReasonOutsideHours   ReasonCode = "outside_hours"
	ReasonOverlap        ReasonCode = "overlap"
)

type Result struct {
	Available     bool
	Reason        string
	Code          ReasonCode
	Allowed       *Window
	ConflictingID uuid.UUID
	Conflicting   *Window
	Overlap       *Window
}

// Resolver decides whether a window fits a doctor's weekly schedule and is
// free of active appointments. The weekday and schedule bounds are taken in
// the location of start; all comparisons are between absolute instants.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

func (r *Resolver) Check(ctx context.Context, reader store.AvailabilityReader, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (Result, error) {
	loc := start.Location()
	schedule, err := reader.GetScheduleForDay(ctx, doctorID, domain.WeekdayOf(start))
	if errors.Is(err, store.ErrNotFound) {
		return Result{Code: ReasonNoSchedule, Reason: "no schedule for this day"}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if !schedule.IsAvailable {
		return Result{Code: ReasonDayUnavailable, Reason: "doctor not available this day"}, nil
	}

	dayStart, dayEnd := schedule.Bounds(start, loc)
	if start.Before(dayStart) || end.After(dayEnd) {
		reason := fmt.Sprintf("outside working hours: requested %s, allowed %s", span(start, end, loc), span(dayStart, dayEnd, loc))
		return Result{
			Code:    ReasonOutsideHours,
			Reason:  reason,
			Allowed: &Window{Start: dayStart.UTC(), End: dayEnd.UTC()},
		}, nil
	}

	existing, err := reader.ListActiveAppointments(ctx, doctorID, start, end, excludeID)
	if err != nil {
		return Result{}, err
	}
	if blocking, ok := firstConflict(existing, start, end, excludeID); ok {
		return overlapResult(blocking, start, end), nil
	}

	return Result{Available: true}, nil
}

func overlapResult(blocking domain.Appointment, start, end time.Time) Result {
	loc := start.Location()
	overlap := Window{Start: latest(start, blocking.StartTime).UTC(), End: earliest(end, blocking.EndTime).UTC()}
	reason := fmt.Sprintf("conflicts with existing appointment %s (overlap %s)",
		span(blocking.StartTime, blocking.EndTime, loc), span(overlap.Start, overlap.End, loc))
	return Result{
		Code:          ReasonOverlap,
		Reason:        reason,
		ConflictingID: blocking.ID,
		Conflicting:   &Window{Start: blocking.StartTime.UTC(), End: blocking.EndTime.UTC()},
		Overlap:       &overlap,
	}
}

func span(start, end time.Time, loc *time.Location) string {
	return start.In(loc).Format("15:04") + "-" + end.In(loc).Format("15:04")
}

// firstConflict re-applies the half-open overlap rule so readers that return
// a superset are still handled correctly.
func firstConflict(appts []domain.Appointment, start, end time.Time, excludeID uuid.UUID) (domain.Appointment, bool) {
	for _, a := range appts {
		if !a.Active() || (excludeID != uuid.Nil && a.ID == excludeID) {
			continue
		}
		if a.Overlaps(start, end) {
			return a, true
		}
	}
	return domain.Appointment{}, false
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func (res Result) conflict(occ *OccurrenceRef) *ConflictError {
	return &ConflictError{
		Reason:        res.Reason,
		Code:          res.Code,
		Allowed:       res.Allowed,
		ConflictingID: res.ConflictingID,
		Conflicting:   res.Conflicting,
		Overlap:       res.Overlap,
		Occurrence:    occ,
	}
}
