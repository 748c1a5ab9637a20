package appointments

import (
	"context"
	"errors"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/store"
)

type ScheduleService struct {
	repo store.ScheduleRepository
}

func NewScheduleService(repo store.ScheduleRepository) *ScheduleService {
	return &ScheduleService{repo: repo}
}

type ScheduleInput struct {
	DayOfWeek   int
	StartTime   string
	EndTime     string
	IsAvailable *bool
}

type ScheduleUpdate struct {
	DayOfWeek   *int
	StartTime   *string
	EndTime     *string
	IsAvailable *bool
}

func (s *ScheduleService) Create(ctx context.Context, doctorID string, in ScheduleInput) (domain.DoctorSchedule, error) {
	id, err := parseID("doctor_id", doctorID)
	if err != nil {
		return domain.DoctorSchedule{}, err
	}

	sched := domain.DoctorSchedule{DoctorID: id, IsAvailable: true}
	if in.IsAvailable != nil {
		sched.IsAvailable = *in.IsAvailable
	}
	if sched.DayOfWeek, err = parseWeekday(in.DayOfWeek); err != nil {
		return domain.DoctorSchedule{}, err
	}
	if sched.StartTime, err = parseClock("start_time", in.StartTime); err != nil {
		return domain.DoctorSchedule{}, err
	}
	if sched.EndTime, err = parseClock("end_time", in.EndTime); err != nil {
		return domain.DoctorSchedule{}, err
	}
	if err := validateScheduleWindow(sched); err != nil {
		return domain.DoctorSchedule{}, err
	}

	ok, err := s.repo.DoctorExists(ctx, id)
	if err != nil {
		return domain.DoctorSchedule{}, err
	}
	if !ok {
		return domain.DoctorSchedule{}, notFoundError("doctor")
	}

	created, err := s.repo.CreateSchedule(ctx, sched)
	if err != nil {
		return domain.DoctorSchedule{}, scheduleError(err, sched.DayOfWeek)
	}
	return created, nil
}

func (s *ScheduleService) Get(ctx context.Context, id string) (domain.DoctorSchedule, error) {
	schedID, err := parseID("schedule_id", id)
	if err != nil {
		return domain.DoctorSchedule{}, err
	}
	sched, err := s.repo.GetSchedule(ctx, schedID)
	if err != nil {
		return domain.DoctorSchedule{}, asNotFound(err, "schedule")
	}
	return sched, nil
}

func (s *ScheduleService) List(ctx context.Context, doctorID string) ([]domain.DoctorSchedule, error) {
	id, err := parseID("doctor_id", doctorID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSchedules(ctx, id)
}

func (s *ScheduleService) Update(ctx context.Context, id string, in ScheduleUpdate) (domain.DoctorSchedule, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.DoctorSchedule{}, err
	}

	next := current
	if in.DayOfWeek != nil {
		if next.DayOfWeek, err = parseWeekday(*in.DayOfWeek); err != nil {
			return domain.DoctorSchedule{}, err
		}
	}
	if in.StartTime != nil {
		if next.StartTime, err = parseClock("start_time", *in.StartTime); err != nil {
			return domain.DoctorSchedule{}, err
		}
	}
	if in.EndTime != nil {
		if next.EndTime, err = parseClock("end_time", *in.EndTime); err != nil {
			return domain.DoctorSchedule{}, err
		}
	}
	if in.IsAvailable != nil {
		next.IsAvailable = *in.IsAvailable
	}
	if err := validateScheduleWindow(next); err != nil {
		return domain.DoctorSchedule{}, err
	}

	updated, err := s.repo.UpdateSchedule(ctx, next)
	if err != nil {
		return domain.DoctorSchedule{}, scheduleError(err, next.DayOfWeek)
	}
	return updated, nil
}

func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	schedID, err := parseID("schedule_id", id)
	if err != nil {
		return err
	}
	return asNotFound(s.repo.DeleteSchedule(ctx, schedID), "schedule")
}

func parseWeekday(day int) (domain.Weekday, error) {
	d := domain.Weekday(day)
	if !d.Valid() {
		return 0, validationError("day_of_week must be between 0 (monday) and 6 (sunday)")
	}
	return d, nil
}

func parseClock(field, raw string) (domain.ClockTime, error) {
	if raw == "" {
		return domain.ClockTime{}, validationErrorf("%s is required", field)
	}
	c, err := domain.ParseClockTime(raw)
	if err != nil {
		return domain.ClockTime{}, validationErrorf("%s must be HH:MM or HH:MM:SS", field)
	}
	return c, nil
}

func validateScheduleWindow(s domain.DoctorSchedule) error {
	if !s.StartTime.Before(s.EndTime) {
		return validationError("end_time must be after start_time")
	}
	return nil
}

func scheduleError(err error, day domain.Weekday) error {
	if errors.Is(err, store.ErrDuplicateSchedule) {
		return &ConflictError{Reason: "schedule already exists for " + day.String()}
	}
	return asNotFound(err, "schedule")
}
