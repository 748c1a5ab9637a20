package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type EventKind string

const (
	EventCreated       EventKind = "created"
	EventRescheduled   EventKind = "rescheduled"
	EventStatusChanged EventKind = "status_changed"
	EventCancelled     EventKind = "cancelled"
	EventUpdated       EventKind = "updated"
)

// AppointmentEvent is an append-only audit record of one appointment change.
type AppointmentEvent struct {
	bun.BaseModel `bun:"table:appointment_events"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	AppointmentID uuid.UUID `bun:"appointment_id,notnull,type:uuid"`
	Kind          EventKind `bun:"kind,notnull"`
	FromStatus    Status    `bun:"from_status,nullzero"`
	ToStatus      Status    `bun:"to_status,notnull"`
	StartTime     time.Time `bun:"start_time,notnull"`
	EndTime       time.Time `bun:"end_time,notnull"`
	ActorID       string    `bun:"actor_id,nullzero"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func NewAppointmentEvent(kind EventKind, from Status, appt Appointment, actorID string) AppointmentEvent {
	return AppointmentEvent{
		AppointmentID: appt.ID,
		Kind:          kind,
		FromStatus:    from,
		ToStatus:      appt.Status,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
		ActorID:       actorID,
	}
}

func (e *AppointmentEvent) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if e.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}
