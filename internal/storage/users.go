package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// CreateUser inserts a new operator. The email is stored normalized.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateUser(user); err != nil {
		return err
	}

	user.Email = normalizeEmail(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, display_name, active, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.Email, user.PasswordHash, user.DisplayName, user.Active, user.CreatedAt)
	if isConstraintViolation(err) {
		return fmt.Errorf("user %q: %w", user.Email, common.ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser returns the operator with email, or common.ErrNotFound.
func (s *SQLiteStorage) GetUser(ctx context.Context, email string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(email, "email"); err != nil {
		return nil, err
	}

	return s.getUserTx(ctx, s.db, normalizeEmail(email))
}

func (s *SQLiteStorage) getUserTx(ctx context.Context, q queryable, email string) (*model.User, error) {
	var user model.User
	err := q.QueryRowContext(ctx, `
		SELECT email, password_hash, display_name, active, created_at
		FROM users
		WHERE email = ?
	`, email).Scan(
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Active,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", email, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// SetUserActive enables or disables an operator.
func (s *SQLiteStorage) SetUserActive(ctx context.Context, email string, active bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(email, "email"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `UPDATE users SET active = ? WHERE email = ?`, active, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %q: %w", normalizeEmail(email), common.ErrNotFound)
	}
	return nil
}

// SetPassword replaces an operator's password hash.
func (s *SQLiteStorage) SetPassword(ctx context.Context, email, passwordHash string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(email, "email"); err != nil {
		return err
	}
	if err := validateString(passwordHash, "passwordHash"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE email = ?`, passwordHash, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q: %w", normalizeEmail(email), common.ErrNotFound)
	}
	return nil
}

// ListUsers returns every operator ordered by email.
func (s *SQLiteStorage) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT email, password_hash, display_name, active, created_at
		FROM users
		ORDER BY email
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.Email, &user.PasswordHash, &user.DisplayName, &user.Active, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
