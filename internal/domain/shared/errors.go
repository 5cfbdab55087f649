// Package shared contains common domain types, errors and events
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// ErrValidation marks malformed input (out-of-range score, empty topic, ...).
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an operation on a user/topic with no prior record.
	ErrNotFound = errors.New("entity not found")

	// ErrStorage marks a persistence layer failure.
	ErrStorage = errors.New("storage error")

	// ErrConcurrentModification is a storage failure raised when an
	// optimistic version check loses a race.
	ErrConcurrentModification = fmt.Errorf("%w: concurrent modification detected", ErrStorage)
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "mastery", "activity", "goal"
	Op      string // Operation that failed, e.g., "RecordAssessment"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ValidationError builds a validation failure.
func ValidationError(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrValidation, message)
}

// NotFoundError builds a not-found failure.
func NotFoundError(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrNotFound, message)
}

// StorageError wraps a persistence failure. Errors that already carry a
// domain kind are returned unchanged so a not-found from the store is not
// reported as a storage outage.
func StorageError(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return WrapError(domain, op, ErrStorage, "storage failure", err)
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStorage checks if the error is a storage failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
