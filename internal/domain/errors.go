package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidRole is returned when a role claim is not one of the
	// recognized roles.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidJobState is returned when a job state transition is not
	// permitted by the job state machine.
	ErrInvalidJobState = errors.New("invalid job state transition")
)
