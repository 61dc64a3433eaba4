package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors. It is
// returned before any network interaction takes place.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Add records a failure on field.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns e when it holds errors and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// NewValidationError returns a validation error for a single field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	var ve ValidationError
	ve.Add(field, format, args...)
	return &ve
}

// ValidatePositive checks that a count parameter is at least one.
func ValidatePositive(field string, n int) error {
	if n <= 0 {
		return NewValidationError(field, "must be positive, got %d", n)
	}
	return nil
}

// ValidateGrowth checks an append request: the target size must exceed the
// current node count by at least minGrowth.
func ValidateGrowth(target, current, minGrowth int) error {
	var ve ValidationError
	if target <= 0 {
		ve.Add("target_size", "must be positive, got %d", target)
	} else if growth := target - current; growth < minGrowth {
		ve.Add("target_size", "must add at least %d nodes (current %d, target %d)", minGrowth, current, target)
	}
	return ve.OrNil()
}
