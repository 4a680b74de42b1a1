// Package service holds the business logic behind the HTTP handlers.
package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Sentinel errors mapped to HTTP status codes by the api package
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrTooManyAttempts = errors.New("too many attempts")
)

// ValidationError lists invalid fields
type ValidationError struct {
	Fields map[string]string
}

// Error joins field messages in a stable order
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrValidation
func (e *ValidationError) Unwrap() error { return ErrValidation }

// invalid builds a single field validation error
func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// notFound converts gorm's record-not-found into ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// isDuplicate reports unique constraint violations across drivers
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite, postgres
		strings.Contains(msg, "duplicate entry") || // mysql
		strings.Contains(msg, "duplicate key") // postgres
}
