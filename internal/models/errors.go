package models

import (
	"errors"
	"fmt"
)

// Custom errors
var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateKey       = errors.New("duplicate key violation")
	ErrInvalidID          = errors.New("invalid ID format")
	ErrAuthoritativeLabel = errors.New("outcome already has authoritative ground truth")
	ErrStreamRequired     = errors.New("stream name is required")
)

// ValidationError describes a field-level validation failure on a domain
// entity.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for the given field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}
