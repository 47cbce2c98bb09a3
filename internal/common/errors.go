// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Tabular store errors.
	ErrStoreUnavailable = errors.New("tabular store unavailable")
	ErrSchemaMismatch   = errors.New("destination table schema mismatch")

	// Session and login errors.
	ErrSessionInvalid     = errors.New("session invalid")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// SchemaMismatchError reports the columns a destination table is missing.
type SchemaMismatchError struct {
	Table   string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%v: table %q is missing column(s) %s",
		ErrSchemaMismatch, e.Table, strings.Join(e.Missing, ", "))
}

func (e *SchemaMismatchError) Unwrap() error {
	return ErrSchemaMismatch
}

// StoreError wraps a failure talking to the tabular store so callers can
// tell "store unreachable" apart from "row not found".
func StoreError(op, table string, err error) error {
	return fmt.Errorf("%w: %s %q: %v", ErrStoreUnavailable, op, table, err)
}
