package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/service/appointments"
)

type appointmentService interface {
	Location() *time.Location
	CheckAvailability(ctx context.Context, doctorID string, start, end time.Time) (appointments.Result, error)
	AvailableSlots(ctx context.Context, doctorID string, day time.Time, duration time.Duration) ([]appointments.Slot, error)
	Create(ctx context.Context, in appointments.CreateInput) ([]domain.Appointment, error)
	Get(ctx context.Context, id string) (domain.Appointment, error)
	Update(ctx context.Context, id string, in appointments.UpdateInput) (domain.Appointment, error)
	Cancel(ctx context.Context, id, actorID string) (domain.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListByPatient(ctx context.Context, patientID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListEvents(ctx context.Context, appointmentID string) ([]domain.AppointmentEvent, error)
}

type scheduleService interface {
	Create(ctx context.Context, doctorID string, in appointments.ScheduleInput) (domain.DoctorSchedule, error)
	Get(ctx context.Context, id string) (domain.DoctorSchedule, error)
	List(ctx context.Context, doctorID string) ([]domain.DoctorSchedule, error)
	Update(ctx context.Context, id string, in appointments.ScheduleUpdate) (domain.DoctorSchedule, error)
	Delete(ctx context.Context, id string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Appointments   appointmentService
	Schedules      scheduleService
	Health         Pinger
	Gatherer       prometheus.Gatherer
	Logger         zerolog.Logger
	Auth           AuthConfig
	RequestTimeout time.Duration
}

type handler struct {
	appts     appointmentService
	schedules scheduleService
	health    Pinger
}

// New builds the echo instance serving the scheduling API.
func New(cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = errorHandler(cfg.Logger)

	e.Use(RequestID())
	e.Use(Logger(cfg.Logger))
	e.Use(Recovery(cfg.Logger))
	e.Use(RequestTimeout(cfg.RequestTimeout))

	h := &handler{appts: cfg.Appointments, schedules: cfg.Schedules, health: cfg.Health}

	e.GET("/healthz", h.healthz)
	if cfg.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api/v1", Authenticate(cfg.Auth))

	api.GET("/doctors/:doctor_id/availability", h.checkAvailability)
	api.GET("/doctors/:doctor_id/slots", h.listSlots)
	api.GET("/doctors/:doctor_id/appointments", h.listDoctorAppointments)
	api.GET("/patients/:patient_id/appointments", h.listPatientAppointments)

	api.POST("/appointments", h.createAppointment)
	api.GET("/appointments/:id", h.getAppointment)
	api.PATCH("/appointments/:id", h.updateAppointment)
	api.DELETE("/appointments/:id", h.cancelAppointment)
	api.GET("/appointments/:id/events", h.listAppointmentEvents)

	api.POST("/doctors/:doctor_id/schedules", h.createSchedule)
	api.GET("/doctors/:doctor_id/schedules", h.listSchedules)
	api.GET("/schedules/:id", h.getSchedule)
	api.PUT("/schedules/:id", h.updateSchedule)
	api.DELETE("/schedules/:id", h.deleteSchedule)

	return e
}

func (h *handler) healthz(c echo.Context) error {
	if h.health != nil {
		if err := h.health.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
