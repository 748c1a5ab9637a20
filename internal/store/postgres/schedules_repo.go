package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/store"
)

var _ store.ScheduleRepository = (*ScheduleRepo)(nil)

type ScheduleRepo struct {
	db *bun.DB
}

func NewScheduleRepo(db *bun.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

func (r *ScheduleRepo) DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	return bookingTx{tx: r.db}.DoctorExists(ctx, doctorID)
}

func (r *ScheduleRepo) CreateSchedule(ctx context.Context, s domain.DoctorSchedule) (domain.DoctorSchedule, error) {
	m := s
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.DoctorSchedule{}, scheduleWriteError(err)
	}
	return m, nil
}

func (r *ScheduleRepo) GetSchedule(ctx context.Context, id uuid.UUID) (domain.DoctorSchedule, error) {
	var s domain.DoctorSchedule
	err := r.db.NewSelect().
		Model(&s).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.DoctorSchedule{}, notFound(err)
	}
	return s, nil
}

func (r *ScheduleRepo) ListSchedules(ctx context.Context, doctorID uuid.UUID) ([]domain.DoctorSchedule, error) {
	var rows []domain.DoctorSchedule
	err := r.db.NewSelect().
		Model(&rows).
		Where("doctor_id = ?", doctorID).
		OrderExpr("day_of_week ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepo) UpdateSchedule(ctx context.Context, s domain.DoctorSchedule) (domain.DoctorSchedule, error) {
	m := s
	res, err := r.db.NewUpdate().
		Model(&m).
		Column("day_of_week", "start_time", "end_time", "is_available", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.DoctorSchedule{}, scheduleWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.DoctorSchedule{}, err
	}
	if affected == 0 {
		return domain.DoctorSchedule{}, store.ErrNotFound
	}
	return m, nil
}

func (r *ScheduleRepo) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.DoctorSchedule)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scheduleWriteError(err error) error {
	pgErr, ok := pgError(err)
	if !ok {
		return err
	}
	switch {
	case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintScheduleDay:
		return store.ErrDuplicateSchedule
	case pgErr.Code == codeForeignKeyViolation:
		return store.ErrNotFound
	}
	return err
}
