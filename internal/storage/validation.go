// Package storage provides the SQLite persistence layer for operator
// accounts and import history.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrNilParameter  = errors.New("parameter cannot be nil")
	ErrInvalidUser   = errors.New("invalid user")
	ErrInvalidImport = errors.New("invalid import record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateUser(user *model.User) error {
	if user == nil {
		return fmt.Errorf("%w: user", ErrNilParameter)
	}
	email := strings.TrimSpace(user.Email)
	if email == "" {
		return fmt.Errorf("%w: missing email", ErrInvalidUser)
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email %q has no domain", ErrInvalidUser, email)
	}
	if user.PasswordHash == "" {
		return fmt.Errorf("%w: missing password hash", ErrInvalidUser)
	}
	return nil
}

func validateImport(rec *service.ImportRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: import record", ErrNilParameter)
	}
	if strings.TrimSpace(rec.Kind) == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidImport)
	}
	if strings.TrimSpace(rec.Table) == "" {
		return fmt.Errorf("%w: missing table", ErrInvalidImport)
	}
	if strings.TrimSpace(rec.Identity) == "" {
		return fmt.Errorf("%w: missing identity", ErrInvalidImport)
	}
	if rec.Received < 0 || rec.Inserted < 0 || rec.Skipped < 0 || rec.Replaced < 0 || rec.Warnings < 0 {
		return fmt.Errorf("%w: negative counter", ErrInvalidImport)
	}
	return nil
}
