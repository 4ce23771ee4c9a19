// Package apperr defines the error taxonomy shared by handlers and services.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTransient       = errors.New("transient store error")
)

// NotFound wraps ErrNotFound with the missing entity kind and key.
func NotFound(entity, key string) error {
	return fmt.Errorf("%s %s: %w", entity, key, ErrNotFound)
}

// ConflictError reports a duplicate create. Existing carries the pre-existing
// record so callers can return it instead of a bare failure.
type ConflictError struct {
	Message  string
	Existing interface{}
}

func (e *ConflictError) Error() string { return e.Message }

// Is makes errors.Is(err, ErrConflict) match.
func (e *ConflictError) Unwrap() error { return ErrConflict }

// InvalidTransitionError reports an illegal lifecycle move with enough detail
// for a caller-facing message.
type InvalidTransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s: %s", e.From, e.To, e.Reason)
}

// Transient wraps an error as retryable.
func Transient(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
