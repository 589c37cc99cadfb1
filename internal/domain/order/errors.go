package order

import (
	"errors"
	"strings"
)

var (
	ErrNotFound                 = errors.New("order: not found")
	ErrConflict                 = errors.New("order: conflict")
	ErrValidation               = errors.New("order: validation failed")
	ErrInvalidStatusTransition  = errors.New("order: invalid status transition")
	ErrInvalidPaymentTransition = errors.New("order: invalid payment status transition")
)

// FieldError is one offending input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every offending field instead of stopping at the first.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) Merge(other *ValidationError) {
	if other != nil {
		e.Fields = append(e.Fields, other.Fields...)
	}
}

// Err returns nil when nothing was collected, so callers can `return v.Err()`.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
