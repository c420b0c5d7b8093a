package models

import "errors"

var (
	// ErrValidation signals a bad bug payload.
	ErrValidation = errors.New("validation failed")
	// ErrAccessDenied is returned when the actor is not a project member.
	ErrAccessDenied = errors.New("access denied")
	// ErrProjectNotFound signals a missing project.
	ErrProjectNotFound = errors.New("project not found")
	// ErrBugNotFound signals a missing bug, or one outside the requested project.
	ErrBugNotFound = errors.New("bug not found")
	// ErrInvalidState signals a transition whose precondition does not hold.
	ErrInvalidState = errors.New("invalid state")
)

// ValidationError reports the first offending field of a bug payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidStateError reports a close of a closed bug or a reopen of an open one.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string { return e.Message }

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }
