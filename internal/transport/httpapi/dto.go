package httpapi

import (
	"time"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/service/appointments"
)

type createAppointmentRequest struct {
	DoctorID          string     `json:"doctor_id" validate:"required,uuid"`
	PatientID         string     `json:"patient_id" validate:"required,uuid"`
	StartTime         timestamp  `json:"start_time"`
	EndTime           timestamp  `json:"end_time"`
	Reason            string     `json:"reason" validate:"required,max=500"`
	Notes             string     `json:"notes" validate:"max=2000"`
	IsRecurring       bool       `json:"is_recurring"`
	RecurrencePattern string     `json:"recurrence_pattern" validate:"omitempty,oneof=daily weekly monthly"`
	RecurrenceEndDate *timestamp `json:"recurrence_end_date"`
}

type updateAppointmentRequest struct {
	StartTime *timestamp `json:"start_time"`
	EndTime   *timestamp `json:"end_time"`
	Status    *string    `json:"status" validate:"omitempty,oneof=scheduled confirmed completed cancelled no_show"`
	Reason    *string    `json:"reason" validate:"omitempty,max=500"`
	Notes     *string    `json:"notes" validate:"omitempty,max=2000"`
}

type scheduleRequest struct {
	DayOfWeek   *int   `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	IsAvailable *bool  `json:"is_available"`
}

type scheduleUpdateRequest struct {
	DayOfWeek   *int    `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	IsAvailable *bool   `json:"is_available"`
}

type appointmentResponse struct {
	ID        string    `json:"id"`
	DoctorID  string    `json:"doctor_id"`
	PatientID string    `json:"patient_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:        a.ID.String(),
		DoctorID:  a.DoctorID.String(),
		PatientID: a.PatientID.String(),
		StartTime: a.StartTime.UTC(),
		EndTime:   a.EndTime.UTC(),
		Status:    string(a.Status),
		Reason:    a.Reason,
		Notes:     a.Notes,
		CreatedAt: a.CreatedAt.UTC(),
		UpdatedAt: a.UpdatedAt.UTC(),
	}
}

func toAppointmentResponses(in []domain.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(in))
	for _, a := range in {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type appointmentListResponse struct {
	Appointments []appointmentResponse `json:"appointments"`
}

type eventResponse struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	ActorID    string    `json:"actor_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type eventListResponse struct {
	Events []eventResponse `json:"events"`
}

func toEventResponses(in []domain.AppointmentEvent) []eventResponse {
	out := make([]eventResponse, 0, len(in))
	for _, ev := range in {
		out = append(out, eventResponse{
			ID:         ev.ID.String(),
			Kind:       string(ev.Kind),
			FromStatus: string(ev.FromStatus),
			ToStatus:   string(ev.ToStatus),
			StartTime:  ev.StartTime.UTC(),
			EndTime:    ev.EndTime.UTC(),
			ActorID:    ev.ActorID,
			CreatedAt:  ev.CreatedAt.UTC(),
		})
	}
	return out
}

type windowResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func toWindowResponse(w *appointments.Window) *windowResponse {
	if w == nil {
		return nil
	}
	return &windowResponse{Start: w.Start.UTC(), End: w.End.UTC()}
}

type availabilityResponse struct {
	Available     bool            `json:"available"`
	Reason        string          `json:"reason"`
	Code          string          `json:"code,omitempty"`
	AllowedWindow *windowResponse `json:"allowed_window,omitempty"`
	ConflictingID string          `json:"conflicting_appointment_id,omitempty"`
	Conflicting   *windowResponse `json:"conflicting_window,omitempty"`
	Overlap       *windowResponse `json:"overlap_window,omitempty"`
}

func toAvailabilityResponse(res appointments.Result) availabilityResponse {
	out := availabilityResponse{
		Available:     res.Available,
		Reason:        res.Reason,
		Code:          string(res.Code),
		AllowedWindow: toWindowResponse(res.Allowed),
		Conflicting:   toWindowResponse(res.Conflicting),
		Overlap:       toWindowResponse(res.Overlap),
	}
	if res.Conflicting != nil {
		out.ConflictingID = res.ConflictingID.String()
	}
	return out
}

type slotListResponse struct {
	Slots []windowResponse `json:"slots"`
}

func toSlotListResponse(slots []appointments.Slot) slotListResponse {
	out := slotListResponse{Slots: make([]windowResponse, 0, len(slots))}
	for _, s := range slots {
		out.Slots = append(out.Slots, windowResponse{Start: s.Start.UTC(), End: s.End.UTC()})
	}
	return out
}

type scheduleResponse struct {
	ID          string    `json:"id"`
	DoctorID    string    `json:"doctor_id"`
	DayOfWeek   int       `json:"day_of_week"`
	DayName     string    `json:"day_name"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toScheduleResponse(s domain.DoctorSchedule) scheduleResponse {
	return scheduleResponse{
		ID:          s.ID.String(),
		DoctorID:    s.DoctorID.String(),
		DayOfWeek:   int(s.DayOfWeek),
		DayName:     s.DayOfWeek.String(),
		StartTime:   s.StartTime.String(),
		EndTime:     s.EndTime.String(),
		IsAvailable: s.IsAvailable,
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

type scheduleListResponse struct {
	Schedules []scheduleResponse `json:"schedules"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Conflict *conflictDetail `json:"conflict,omitempty"`
}

type conflictDetail struct {
	ReasonCode      string          `json:"reason_code,omitempty"`
	AllowedWindow   *windowResponse `json:"allowed_window,omitempty"`
	ConflictingID   string          `json:"conflicting_appointment_id,omitempty"`
	Conflicting     *windowResponse `json:"conflicting_window,omitempty"`
	Overlap         *windowResponse `json:"overlap_window,omitempty"`
	OccurrenceIndex *int            `json:"occurrence_index,omitempty"`
	OccurrenceDate  string          `json:"occurrence_date,omitempty"`
}
