package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"careslot/backend/internal/domain"
)

// AvailabilityReader is the read side used to decide whether a window is bookable.
type AvailabilityReader interface {
	GetScheduleForDay(ctx context.Context, doctorID uuid.UUID, day domain.Weekday) (domain.DoctorSchedule, error)
	// ListActiveAppointments returns non-cancelled appointments of doctorID that
	// overlap [windowStart, windowEnd), skipping excludeID when it is set.
	ListActiveAppointments(ctx context.Context, doctorID uuid.UUID, windowStart, windowEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error)
}

// BookingTx is the unit of work for one doctor. Writes become visible only if
// the surrounding transaction callback returns nil.
type BookingTx interface {
	AvailabilityReader

	DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error)
	PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error)

	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	RecordEvent(ctx context.Context, ev domain.AppointmentEvent) error
}

type AppointmentRepository interface {
	AvailabilityReader

	InDoctorTransaction(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx BookingTx) error) error

	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]domain.AppointmentEvent, error)
}
