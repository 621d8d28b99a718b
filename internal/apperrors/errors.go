// Package apperrors defines the error kinds surfaced to the presentation layer.
//
// Every failure returned by the service layer matches exactly one of the
// sentinel errors below under errors.Is.
package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrValidation          = errors.New("validation failed")
	ErrStorage             = errors.New("storage error")
	ErrNotFound            = errors.New("not found")
)

// ValidationError lists the offending fields of a rejected payload
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Denied reports a capability the session's role does not hold
func Denied(role, capability string) error {
	return fmt.Errorf("%w: role %q lacks %q", ErrAuthorizationDenied, role, capability)
}

// NotFound reports a missing row
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, entity, id)
}

// Storage classifies err as a storage failure unless it already carries
// one of the known kinds.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != "unknown" {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Kind returns a stable name for the error's category
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAuthorizationDenied):
		return "denied"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "unknown"
	}
}
