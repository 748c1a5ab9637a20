package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"careslot/backend/internal/service/appointments"
	"careslot/backend/internal/store"
)

// errorHandler renders every handler error as an errorResponse. Unclassified
// errors are logged with their cause and reported as "internal error".
func errorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := classify(err)
		if status == http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Warn().Err(writeErr).Msg("write error response failed")
		}
	}
}

func classify(err error) (int, errorResponse) {
	var (
		vErr    *appointments.ValidationError
		cErr    *appointments.ConflictError
		nfErr   *appointments.NotFoundError
		httpErr *echo.HTTPError
	)
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, errorBody("invalid_argument", vErr.Error())
	case errors.As(err, &cErr):
		body := errorBody("conflict", cErr.Error())
		body.Error.Conflict = toConflictDetail(cErr)
		return http.StatusConflict, body
	case errors.Is(err, store.ErrIdempotencyConflict):
		return http.StatusConflict, errorBody("idempotency_conflict", "idempotency key was already used for a different request")
	case errors.As(err, &nfErr):
		return http.StatusNotFound, errorBody("not_found", nfErr.Error())
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, errorBody("not_found", "not found")
	case errors.As(err, &httpErr):
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return httpErr.Code, errorBody(httpCode(httpErr.Code), msg)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorBody("timeout", "request timed out")
	}
	return http.StatusInternalServerError, errorBody("internal", "internal error")
}

func errorBody(code, msg string) errorResponse {
	return errorResponse{Error: errorDetail{Code: code, Message: msg}}
}

func httpCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	}
	if status >= http.StatusInternalServerError {
		return "internal"
	}
	return "error"
}

func toConflictDetail(e *appointments.ConflictError) *conflictDetail {
	d := &conflictDetail{
		ReasonCode:    string(e.Code),
		AllowedWindow: toWindowResponse(e.Allowed),
		Conflicting:   toWindowResponse(e.Conflicting),
		Overlap:       toWindowResponse(e.Overlap),
	}
	if e.Conflicting != nil {
		d.ConflictingID = e.ConflictingID.String()
	}
	if e.Occurrence != nil {
		idx := e.Occurrence.Index
		d.OccurrenceIndex = &idx
		d.OccurrenceDate = e.Occurrence.Start.Format("2006-01-02")
	}
	return d
}
