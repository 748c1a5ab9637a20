package store

import (
	"context"

	"github.com/google/uuid"

	"careslot/backend/internal/domain"
)

type ScheduleRepository interface {
	DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error)

	CreateSchedule(ctx context.Context, s domain.DoctorSchedule) (domain.DoctorSchedule, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (domain.DoctorSchedule, error)
	// ListSchedules returns the weekly windows of doctorID ordered by day of week.
	ListSchedules(ctx context.Context, doctorID uuid.UUID) ([]domain.DoctorSchedule, error)
	UpdateSchedule(ctx context.Context, s domain.DoctorSchedule) (domain.DoctorSchedule, error)
	DeleteSchedule(ctx context.Context, id uuid.UUID) error
}
