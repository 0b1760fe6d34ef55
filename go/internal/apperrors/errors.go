// Package apperrors defines the error kinds surfaced by player-facing game operations.
//
// Every failed operation returns exactly one of:
//   - NotFoundError: session, round, answer or player does not exist
//   - ConflictError: the action is invalid for the current lifecycle state
//   - ValidationError: malformed input
//
// Infrastructure failures are wrapped with fmt.Errorf and are none of the above.
package apperrors

import (
	"errors"
	"fmt"
)

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFound creates a NotFoundError. id is formatted with %v.
func NewNotFound(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.ID)
}

// ConflictError reports an action that is not allowed in the current state.
type ConflictError struct {
	Reason string
}

// NewConflict creates a ConflictError.
func NewConflict(format string, args ...any) *ConflictError {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidation creates a ValidationError for field.
func NewValidation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err wraps a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsDomain reports whether err is one of the three player-facing kinds.
func IsDomain(err error) bool {
	return IsNotFound(err) || IsConflict(err) || IsValidation(err)
}
