package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStateTransition indicates a walk lifecycle call that the state machine forbids.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrValidation indicates an entity field outside its allowed domain.
	ErrValidation = errors.New("validation failed")
)

// TransitionError describes a rejected walk lifecycle call.
type TransitionError struct {
	From   WalkStatus
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s walk in status %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
