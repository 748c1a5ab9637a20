package appointments

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"careslot/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

type Window struct {
	Start time.Time
	End   time.Time
}

// OccurrenceRef identifies one occurrence of a recurring request.
type OccurrenceRef struct {
	Index int
	Total int
	Start time.Time
}

// ConflictError reports a window that cannot be booked. Outside working hours
// it carries the allowed window; for overlaps it names the blocking
// appointment and the overlapping portion.
type ConflictError struct {
	Reason        string
	Code          ReasonCode
	Allowed       *Window
	ConflictingID uuid.UUID
	Conflicting   *Window
	Overlap       *Window
	Occurrence    *OccurrenceRef
}

func (e *ConflictError) Error() string {
	if e.Occurrence == nil {
		return e.Reason
	}
	return fmt.Sprintf("occurrence %d of %d on %s: %s",
		e.Occurrence.Index+1, e.Occurrence.Total, e.Occurrence.Start.Format("2006-01-02"), e.Reason)
}

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == store.ErrNotFound
}

func notFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}
