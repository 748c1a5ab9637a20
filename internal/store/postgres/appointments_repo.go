package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/store"
)

var (
	_ store.AppointmentRepository = (*AppointmentRepo)(nil)
	_ store.BookingTx             = bookingTx{}
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

// bookingTx runs queries on a transaction that already holds the doctor's
// advisory lock.
type bookingTx struct {
	tx bun.IDB
}

func (r *AppointmentRepo) InDoctorTransaction(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDoctorCalendar(ctx, tx, doctorID); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

func lockDoctorCalendar(ctx context.Context, tx bun.Tx, doctorID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", doctorID.String()).Exec(ctx)
	return err
}

func (r *AppointmentRepo) GetScheduleForDay(ctx context.Context, doctorID uuid.UUID, day domain.Weekday) (domain.DoctorSchedule, error) {
	return bookingTx{tx: r.db}.GetScheduleForDay(ctx, doctorID, day)
}

func (r *AppointmentRepo) ListActiveAppointments(ctx context.Context, doctorID uuid.UUID, windowStart, windowEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
	return bookingTx{tx: r.db}.ListActiveAppointments(ctx, doctorID, windowStart, windowEnd, excludeID)
}

func (r *AppointmentRepo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().
		Model(&a).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, notFound(err)
	}
	return a, nil
}

func (r *AppointmentRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return r.listInWindow(ctx, "doctor_id", doctorID, windowStart, windowEnd)
}

func (r *AppointmentRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return r.listInWindow(ctx, "patient_id", patientID, windowStart, windowEnd)
}

func (r *AppointmentRepo) listInWindow(ctx context.Context, column string, id uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("? = ?", bun.Ident(column), id).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]domain.AppointmentEvent, error) {
	var rows []domain.AppointmentEvent
	err := r.db.NewSelect().
		Model(&rows).
		Where("appointment_id = ?", appointmentID).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r bookingTx) DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	return r.tx.NewSelect().
		Model((*domain.Doctor)(nil)).
		Where("id = ?", doctorID).
		Exists(ctx)
}

func (r bookingTx) PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	return r.tx.NewSelect().
		Model((*domain.Patient)(nil)).
		Where("id = ?", patientID).
		Exists(ctx)
}

func (r bookingTx) GetScheduleForDay(ctx context.Context, doctorID uuid.UUID, day domain.Weekday) (domain.DoctorSchedule, error) {
	var s domain.DoctorSchedule
	err := r.tx.NewSelect().
		Model(&s).
		Where("doctor_id = ?", doctorID).
		Where("day_of_week = ?", day).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.DoctorSchedule{}, notFound(err)
	}
	return s, nil
}

func (r bookingTx) ListActiveAppointments(ctx context.Context, doctorID uuid.UUID, windowStart, windowEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.tx.NewSelect().
		Model(&rows).
		Where("doctor_id = ?", doctorID).
		Where("status <> ?", domain.StatusCancelled).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.OrderExpr("start_time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r bookingTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.tx.NewSelect().
		Model(&a).
		Where("id = ?", id).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, notFound(err)
	}
	return a, nil
}

func (r bookingTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		ID:        appt.ID,
		DoctorID:  appt.DoctorID,
		PatientID: appt.PatientID,
		StartTime: appt.StartTime.UTC(),
		EndTime:   appt.EndTime.UTC(),
		Status:    appt.Status,
		Reason:    appt.Reason,
		Notes:     appt.Notes,
		CreatedAt: appt.CreatedAt,
		UpdatedAt: appt.UpdatedAt,
	}

	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		pgErr, ok := pgError(err)
		if !ok {
			return domain.Appointment{}, err
		}
		switch {
		case pgErr.Code == codeExclusionViolation && pgErr.ConstraintName == constraintNoOverlap:
			return domain.Appointment{}, store.ErrConflict
		case pgErr.Code == codeForeignKeyViolation:
			return domain.Appointment{}, store.ErrNotFound
		case pgErr.Code == codeUniqueViolation:
			return r.replayedAppointment(ctx, appt, err)
		}
		return domain.Appointment{}, err
	}

	return m, nil
}

// replayedAppointment resolves a primary key collision on an idempotent insert.
func (r bookingTx) replayedAppointment(ctx context.Context, appt domain.Appointment, insertErr error) (domain.Appointment, error) {
	var existing domain.Appointment
	err := r.tx.NewSelect().
		Model(&existing).
		Where("id = ?", appt.ID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, insertErr
	}

	if existing.DoctorID != appt.DoctorID ||
		existing.PatientID != appt.PatientID ||
		existing.Reason != appt.Reason ||
		existing.Notes != appt.Notes ||
		!existing.StartTime.Equal(appt.StartTime) ||
		!existing.EndTime.Equal(appt.EndTime) {
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}
	return existing, nil
}

func (r bookingTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	m.StartTime = appt.StartTime.UTC()
	m.EndTime = appt.EndTime.UTC()

	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("start_time", "end_time", "status", "reason", "notes", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if pgErr, ok := pgError(err); ok && pgErr.Code == codeExclusionViolation && pgErr.ConstraintName == constraintNoOverlap {
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}

func (r bookingTx) RecordEvent(ctx context.Context, ev domain.AppointmentEvent) error {
	_, err := r.tx.NewInsert().Model(&ev).Exec(ctx)
	return err
}
