package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/service/appointments"
)

func (h *handler) createSchedule(c echo.Context) error {
	doctorID, err := pathID(c, "doctor_id")
	if err != nil {
		return err
	}
	if !principalFrom(c).canManageDoctor(doctorID) {
		return errForbidden()
	}
	var req scheduleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	s, err := h.schedules.Create(c.Request().Context(), doctorID.String(), appointments.ScheduleInput{
		DayOfWeek:   *req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toScheduleResponse(s))
}

func (h *handler) listSchedules(c echo.Context) error {
	list, err := h.schedules.List(c.Request().Context(), c.Param("doctor_id"))
	if err != nil {
		return err
	}
	out := scheduleListResponse{Schedules: make([]scheduleResponse, 0, len(list))}
	for _, s := range list {
		out.Schedules = append(out.Schedules, toScheduleResponse(s))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handler) getSchedule(c echo.Context) error {
	s, err := h.schedules.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *handler) authorizedSchedule(c echo.Context) (domain.DoctorSchedule, error) {
	s, err := h.schedules.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domain.DoctorSchedule{}, err
	}
	if !principalFrom(c).canManageDoctor(s.DoctorID) {
		return domain.DoctorSchedule{}, errForbidden()
	}
	return s, nil
}

func (h *handler) updateSchedule(c echo.Context) error {
	var req scheduleUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	current, err := h.authorizedSchedule(c)
	if err != nil {
		return err
	}

	s, err := h.schedules.Update(c.Request().Context(), current.ID.String(), appointments.ScheduleUpdate{
		DayOfWeek:   req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *handler) deleteSchedule(c echo.Context) error {
	current, err := h.authorizedSchedule(c)
	if err != nil {
		return err
	}
	if err := h.schedules.Delete(c.Request().Context(), current.ID.String()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
