package healthcheck

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record matches the given identity.
	ErrNotFound = errors.New("health check result not found")

	// ErrConcurrentModification is returned when the record changed between
	// the guard check and the commit. Callers should re-read and retry.
	ErrConcurrentModification = errors.New("health check result was modified concurrently")

	// ErrNotAuthorized is returned when the actor lacks approval authority.
	ErrNotAuthorized = errors.New("actor lacks approval authority")

	// ErrSurveyInviteFailed marks a survey that was stored but whose
	// invitation could not be delivered.
	ErrSurveyInviteFailed = errors.New("survey invite failed")
)

// ValidationError reports a missing or malformed input. It is raised before
// any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// InvalidTransitionError reports a command that is not legal from the
// record's current status.
type InvalidTransitionError struct {
	Current Status
	Command CommandKind
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s a health check result in status %s", e.Command, e.Current)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsInvalidTransition reports whether err is an *InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var t *InvalidTransitionError
	return errors.As(err, &t)
}

// WarningKind classifies a non-fatal side-effect failure.
type WarningKind string

const (
	WarningSurveyCreationFailed WarningKind = "SurveyCreationFailed"
	WarningNotificationFailed   WarningKind = "NotificationFailed"
)

// Warning is a side-effect failure reported alongside a committed transition.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}
