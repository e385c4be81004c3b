// Package errors defines the application error taxonomy shared by the
// store engine and the HTTP layer. Every error the engine surfaces is
// one of these types; the HTTP layer translates them into status codes.
package errors

import (
	"fmt"
	"strings"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "VALIDATION"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeConflict    ErrorType = "VERSION_CONFLICT"
	ErrorTypeUnsupported ErrorType = "UNSUPPORTED_OPERATION"
	ErrorTypeStore       ErrorType = "STORE"
)

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Message string
	Err     error

	// Violations carries the itemized report of a validation error.
	// All violations found during a single validation pass are
	// aggregated here, never just the first.
	Violations []string

	// Expected and Actual carry the version ids of an optimistic-lock
	// mismatch so the caller can re-fetch and resubmit.
	Expected string
	Actual   string
}

// Error implements the error interface
func (e *AppError) Error() string {
	switch {
	case len(e.Violations) > 0:
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, strings.Join(e.Violations, "; "))
	case e.Type == ErrorTypeConflict && e.Expected != "":
		if e.Actual == "" {
			return fmt.Sprintf("%s: %s (expected version %s)", e.Type, e.Message, e.Expected)
		}
		return fmt.Sprintf("%s: %s (expected version %s, found %s)", e.Type, e.Message, e.Expected, e.Actual)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewValidation creates a validation error carrying an itemized
// violation report.
func NewValidation(message string, violations ...string) error {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		Violations: violations,
	}
}

// NewNotFound creates a not found error for a resource and its id.
func NewNotFound(resource, id string) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// NewVersionConflict creates an optimistic-lock mismatch error. The
// engine never retries these; the caller must re-fetch and resubmit.
func NewVersionConflict(itemID, expected, actual string) error {
	return &AppError{
		Type:     ErrorTypeConflict,
		Message:  fmt.Sprintf("item '%s' was modified concurrently", itemID),
		Expected: expected,
		Actual:   actual,
	}
}

// NewConflict creates an optimistic-concurrency conflict that is not
// tied to one version pair, such as a multi-item capture losing a
// race. The caller retries the whole operation.
func NewConflict(message string) error {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewUnsupported creates an error for operations that do not exist on
// a resource, such as updating or deleting a baseline.
func NewUnsupported(operation string) error {
	return &AppError{
		Type:    ErrorTypeUnsupported,
		Message: fmt.Sprintf("operation not supported: %s", operation),
	}
}

// NewStore creates a store error wrapping the underlying substrate
// failure.
func NewStore(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeStore,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Type:       appErr.Type,
			Message:    fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:        appErr.Err,
			Violations: appErr.Violations,
			Expected:   appErr.Expected,
			Actual:     appErr.Actual,
		}
	}

	// Otherwise, treat it as a store failure
	return &AppError{
		Type:    ErrorTypeStore,
		Message: message,
		Err:     err,
	}
}

// Type checking functions

func isType(err error, t ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == t
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsVersionConflict checks if an error is an optimistic-lock mismatch
func IsVersionConflict(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsUnsupported checks if an error is an unsupported-operation error
func IsUnsupported(err error) bool {
	return isType(err, ErrorTypeUnsupported)
}

// IsStore checks if an error is a substrate/store failure
func IsStore(err error) bool {
	return isType(err, ErrorTypeStore)
}

// ViolationsOf returns the itemized violation report of a validation
// error, or nil for any other error.
func ViolationsOf(err error) []string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Violations
	}
	return nil
}
