package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/service/appointments"
)

const IdempotencyKeyHeader = "Idempotency-Key"

const defaultSlotMinutes = 30

func (h *handler) checkAvailability(c echo.Context) error {
	loc := h.appts.Location()
	start, err := queryTime(c, "start", loc)
	if err != nil {
		return err
	}
	end, err := queryTime(c, "end", loc)
	if err != nil {
		return err
	}
	res, err := h.appts.CheckAvailability(c.Request().Context(), c.Param("doctor_id"), start, end)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAvailabilityResponse(res))
}

func (h *handler) listSlots(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("date"))
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	day, err := time.ParseInLocation("2006-01-02", raw, h.appts.Location())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	minutes := defaultSlotMinutes
	if v := strings.TrimSpace(c.QueryParam("duration_minutes")); v != "" {
		minutes, err = strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "duration_minutes must be a positive integer")
		}
	}

	slots, err := h.appts.AvailableSlots(c.Request().Context(), c.Param("doctor_id"), day, time.Duration(minutes)*time.Minute)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSlotListResponse(slots))
}

func (h *handler) createAppointment(c echo.Context) error {
	var req createAppointmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id must be a valid UUID")
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id must be a valid UUID")
	}
	p := principalFrom(c)
	if !p.canActOn(doctorID, patientID) {
		return errForbidden()
	}

	loc := h.appts.Location()
	created, err := h.appts.Create(c.Request().Context(), appointments.CreateInput{
		DoctorID:          req.DoctorID,
		PatientID:         req.PatientID,
		StartTime:         req.StartTime.In(loc),
		EndTime:           req.EndTime.In(loc),
		Reason:            req.Reason,
		Notes:             req.Notes,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.RecurrencePattern,
		RecurrenceEndDate: optionalIn(req.RecurrenceEndDate, loc),
		IdempotencyKey:    strings.TrimSpace(c.Request().Header.Get(IdempotencyKeyHeader)),
		ActorID:           p.Subject,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, appointmentListResponse{Appointments: toAppointmentResponses(created)})
}

// authorizedAppointment loads the appointment named by the :id parameter and
// checks the caller may act on it.
func (h *handler) authorizedAppointment(c echo.Context) (domain.Appointment, error) {
	appt, err := h.appts.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domain.Appointment{}, err
	}
	if !principalFrom(c).canActOn(appt.DoctorID, appt.PatientID) {
		return domain.Appointment{}, errForbidden()
	}
	return appt, nil
}

func (h *handler) getAppointment(c echo.Context) error {
	appt, err := h.authorizedAppointment(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

func (h *handler) updateAppointment(c echo.Context) error {
	var req updateAppointmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	appt, err := h.authorizedAppointment(c)
	if err != nil {
		return err
	}

	p := principalFrom(c)
	if p.Role == RolePatient && (req.StartTime != nil || req.EndTime != nil) {
		return errForbidden()
	}
	loc := h.appts.Location()
	in := appointments.UpdateInput{
		StartTime: optionalIn(req.StartTime, loc),
		EndTime:   optionalIn(req.EndTime, loc),
		Reason:    req.Reason,
		Notes:     req.Notes,
		ActorID:   p.Subject,
	}
	if req.Status != nil {
		st, err := domain.ParseStatus(*req.Status)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		// Patients may only cancel their own bookings.
		if p.Role == RolePatient && st != domain.StatusCancelled {
			return errForbidden()
		}
		in.Status = &st
	}

	updated, err := h.appts.Update(c.Request().Context(), appt.ID.String(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAppointmentResponse(updated))
}

func (h *handler) cancelAppointment(c echo.Context) error {
	appt, err := h.authorizedAppointment(c)
	if err != nil {
		return err
	}
	cancelled, err := h.appts.Cancel(c.Request().Context(), appt.ID.String(), principalFrom(c).Subject)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAppointmentResponse(cancelled))
}

func (h *handler) listAppointmentEvents(c echo.Context) error {
	appt, err := h.authorizedAppointment(c)
	if err != nil {
		return err
	}
	events, err := h.appts.ListEvents(c.Request().Context(), appt.ID.String())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, eventListResponse{Events: toEventResponses(events)})
}

func (h *handler) listDoctorAppointments(c echo.Context) error {
	doctorID, err := pathID(c, "doctor_id")
	if err != nil {
		return err
	}
	p := principalFrom(c)
	if !p.privileged() && !p.ownsDoctor(doctorID) {
		return errForbidden()
	}
	windowStart, windowEnd, err := queryWindow(c, h.appts.Location())
	if err != nil {
		return err
	}
	list, err := h.appts.ListByDoctor(c.Request().Context(), doctorID.String(), windowStart, windowEnd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appointmentListResponse{Appointments: toAppointmentResponses(list)})
}

func (h *handler) listPatientAppointments(c echo.Context) error {
	patientID, err := pathID(c, "patient_id")
	if err != nil {
		return err
	}
	p := principalFrom(c)
	if !p.privileged() && !p.ownsPatient(patientID) {
		return errForbidden()
	}
	windowStart, windowEnd, err := queryWindow(c, h.appts.Location())
	if err != nil {
		return err
	}
	list, err := h.appts.ListByPatient(c.Request().Context(), patientID.String(), windowStart, windowEnd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appointmentListResponse{Appointments: toAppointmentResponses(list)})
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be a valid UUID")
	}
	return id, nil
}

func queryTime(c echo.Context, name string, loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" is required")
	}
	ts, err := parseTimestamp(raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be an ISO-8601 timestamp")
	}
	return ts.In(loc), nil
}

func queryWindow(c echo.Context, loc *time.Location) (time.Time, time.Time, error) {
	start, err := queryTime(c, "window_start", loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := queryTime(c, "window_end", loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
