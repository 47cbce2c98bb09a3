package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// UserStore looks operators up by email.
type UserStore interface {
	GetUser(ctx context.Context, email string) (*model.User, error)
}

// Directory verifies secrets against bcrypt hashes kept in a UserStore.
type Directory struct {
	users  UserStore
	hasher *Hasher
	logger *slog.Logger
}

var _ service.CredentialDirectory = (*Directory)(nil)

// NewDirectory creates a Directory.
func NewDirectory(users UserStore, hasher *Hasher, logger *slog.Logger) *Directory {
	if hasher == nil {
		hasher = NewHasher(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{users: users, hasher: hasher, logger: logger}
}

// Verify reports whether secret is the password of an active operator.
// Unknown and disabled operators verify as false without an error.
func (d *Directory) Verify(ctx context.Context, identity, secret string) (bool, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" || secret == "" {
		return false, nil
	}

	user, err := d.users.GetUser(ctx, identity)
	if errors.Is(err, common.ErrNotFound) {
		d.logger.DebugContext(ctx, "Login for unknown identity", "identity", identity)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", identity, err)
	}

	if !user.Active {
		d.logger.InfoContext(ctx, "Login for disabled identity", "identity", identity)
		return false, nil
	}

	err = d.hasher.Compare(user.PasswordHash, secret)
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stored hash for %s is unusable: %w", identity, err)
	}
	return true, nil
}
