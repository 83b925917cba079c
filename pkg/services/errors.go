// Package services holds the business layer between the HTTP handlers and
// the engine, dispatcher and persistence.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors mapping to client-facing 4xx responses.
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrInvalidMode          = errors.New("invalid execution mode")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrUnknownNodeType      = errors.New("unknown node type")

	// Business logic conflicts (409 Conflict).
	ErrExecutionNotRunning   = errors.New("execution is not running")
	ErrExecutionNotRetryable = errors.New("execution cannot be retried")
	ErrDispatchUnavailable   = errors.New("asynchronous dispatch is not configured")
)

// ServiceError wraps a service-level failure with its operation.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError reports whether the error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrInvalidMode) ||
		errors.Is(err, ErrInvalidPriority) ||
		errors.Is(err, ErrUnknownNodeType)
}

// IsConflictError reports whether the error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrExecutionNotRunning) ||
		errors.Is(err, ErrExecutionNotRetryable) ||
		errors.Is(err, ErrDispatchUnavailable)
}

// NewValidationError creates a validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
