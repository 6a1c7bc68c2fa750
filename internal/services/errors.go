// Package services holds the backend's business rules for the persisted
// tables: required fields, defaults, enum checks and the audit trail.
//
// Errors returned here are mapped to HTTP statuses by the handlers layer.
package services

import (
	"errors"

	"github.com/tbourn/miele-backoffice/internal/repo"
)

var (
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownTable is returned for a table name the service does not serve.
	ErrUnknownTable = errors.New("unknown table")

	// ErrNotFound and ErrDuplicate are the repository sentinels, re-exported
	// so handlers depend on one package.
	ErrNotFound  = repo.ErrNotFound
	ErrDuplicate = repo.ErrDuplicate
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Reason }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }
