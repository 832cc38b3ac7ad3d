package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for business-rule violations. Callers branch on these with
// errors.Is; they are never wrapped into generic failures.
var (
	// ErrCapacityExceeded means a reservation would push places_booked past
	// places_available, or below the configuration's minimum quantity.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrCancellationWindowClosed means the calendar forbids cancellation,
	// either outright or because the booking is too close in time.
	ErrCancellationWindowClosed = errors.New("cancellation window closed")

	// ErrNotFound means the referenced calendar, slot or booking does not
	// exist for the caller's organization.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable wraps transient infrastructure failures. The
	// engine never retries these itself; the caller retries with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConfigurationConflict marks two configurations generating
	// overlapping instances. It is logged and resolved via the order
	// tie-break, never returned to callers as a failure.
	ErrConfigurationConflict = errors.New("configuration conflict")
)

// ValidationError is a caller-fixable input problem, surfaced verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
