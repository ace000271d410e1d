package services

import "errors"

var (
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrValidation is returned for input the collaborators refuse.
	ErrValidation = errors.New("validation failed")

	ErrTaskNotFound  = errors.New("task not found")
	ErrForbidden     = errors.New("task belongs to another user")
	ErrInvalidStatus = errors.New("invalid task status")
	// ErrConflict is returned when concurrent writers keep winning the conditional update.
	ErrConflict = errors.New("task was modified concurrently")
)
