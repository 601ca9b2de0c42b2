package application

import (
	"errors"
	"fmt"
)

// ErrDuplicatePending is returned by the repository when the unique pending
// index rejects an insert that raced past the service-level check.
var ErrDuplicatePending = errors.New("a pending application already exists for this listing")

// ValidationError is a caller mistake caught before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictError means the requested transition contradicts current state,
// e.g. a duplicate pending application or re-deciding a decided one.
// ExistingID names the conflicting record so the caller can self-correct.
type ConflictError struct {
	Message    string
	ExistingID string
	Status     string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// AuthorizationError means the caller is not allowed to act on this resource.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

// NotFoundError means the referenced record does not exist.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// DependencyError wraps a failure of an external collaborator on a path where
// that failure is fatal to the operation.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
