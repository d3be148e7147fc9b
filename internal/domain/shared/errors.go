// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has no infrastructure dependencies.
package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrIncomplete      = errors.New("records incomplete")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// External service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "closing", "assessment", "result"
	Op      string // Operation that failed, e.g., "Find", "Submit"
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

// Is implements errors.Is() matching.
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

// NotFound builds a not-found error naming the missing id.
func NotFound(domain, op, entity, id string) *DomainError {
	return NewDomainError(domain, op, ErrNotFound, fmt.Sprintf("%s %q not found", entity, id))
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION ERROR
// ══════════════════════════════════════════════════════════════════════════════

// ValidationError is a recoverable, caller-facing failure. Fields maps an
// input field (or a checklist area) to the reason it was rejected.
type ValidationError struct {
	Domain  string
	Op      string
	Kind    error // ErrValidation unless a narrower kind applies
	Message string
	Fields  map[string]string
}

// NewValidationError creates a validation error with optional field reasons.
func NewValidationError(domain, op, message string, fields map[string]string) *ValidationError {
	return &ValidationError{
		Domain:  domain,
		Op:      op,
		Kind:    ErrValidation,
		Message: message,
		Fields:  fields,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s: %s", e.Domain, e.Op, e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s: %s", k, e.Fields[k])
		}
		b.WriteString(")")
	}
	return b.String()
}

// Is matches ErrValidation as well as the narrower kind.
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	return e.Kind != nil && errors.Is(e.Kind, target)
}

// WithKind returns a copy of the error carrying a narrower kind.
func (e *ValidationError) WithKind(kind error) *ValidationError {
	c := *e
	c.Kind = kind
	return &c
}

// Field returns the reason recorded for a field, if any.
func (e *ValidationError) Field(name string) (string, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// Assessment domain errors
var (
	ErrConfigNotFound   = NewDomainError("assessment", "FindConfig", ErrNotFound, "assessment config not found")
	ErrUnknownGradeType = NewDomainError("assessment", "StrategyFor", ErrInvalidInput, "unknown grade type")
)

// Academic directory errors
var (
	ErrClassGroupNotFound        = NewDomainError("academic", "FindClassGroup", ErrNotFound, "class group not found")
	ErrPeriodNotFound            = NewDomainError("academic", "FindPeriod", ErrNotFound, "period not found")
	ErrTeacherAssignmentNotFound = NewDomainError("academic", "FindTeacherAssignment", ErrNotFound, "teacher assignment not found")
)

// Closing domain errors
var (
	ErrClosingNotFound       = NewDomainError("closing", "Find", ErrNotFound, "period closing not found")
	ErrRectificationNotFound = NewDomainError("closing", "FindRectification", ErrNotFound, "rectification not found")
	ErrClosingStale          = NewDomainError("closing", "Save", ErrOptimisticLock, "period closing was modified concurrently")
)

// Result domain errors
var (
	ErrPeriodAverageNotFound = NewDomainError("result", "FindPeriodAverage", ErrNotFound, "period average not found")
	ErrFinalResultNotFound   = NewDomainError("result", "FindFinalResult", ErrNotFound, "final result not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrOptimisticLock)
}

// AsValidation extracts a *ValidationError from an error chain.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
