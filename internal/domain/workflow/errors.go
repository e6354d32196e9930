package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrStateConflict is returned when a case is not in the state a transition requires
	ErrStateConflict = errors.New("state conflict")

	// ErrValidation is returned when input required by a transition is missing or out of range
	ErrValidation = errors.New("validation failed")
)

// ConflictError describes a transition attempted against a case whose
// current status does not satisfy the transition's precondition.
type ConflictError struct {
	CaseID  int64
	Trigger Trigger
	Current State
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("state conflict: cannot %s return case %d in state %s", e.Trigger, e.CaseID, e.Current)
}

// Unwrap lets errors.Is match ErrStateConflict
func (e *ConflictError) Unwrap() error {
	return ErrStateConflict
}

// ValidationError names the offending field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsStateConflict reports whether err is a state conflict
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrStateConflict)
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
