package domain

import (
	"errors"
	"fmt"
)

// ErrWrongPayment is returned when a transaction is attached to a payment it
// does not belong to.
var ErrWrongPayment = errors.New("transaction belongs to a different payment")

// ValidationError rejects malformed input before any entity is constructed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StateError signals a transition requested from a state that forbids it.
// The entity is left untouched.
type StateError struct {
	Entity string
	From   string
	Op     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %q", e.Op, e.Entity, e.From)
}
