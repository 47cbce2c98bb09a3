package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/session"
)

// SessionStarter opens a preemptive session for an identity.
type SessionStarter interface {
	Register(ctx context.Context, identity string) (session.Session, error)
}

// Service runs the login flow: credential check, then session registration.
type Service struct {
	directory service.CredentialDirectory
	sessions  SessionStarter
	logger    *slog.Logger
}

// NewService creates a login Service.
func NewService(directory service.CredentialDirectory, sessions SessionStarter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{directory: directory, sessions: sessions, logger: logger}
}

// Login verifies the credentials and registers a new session, superseding
// any session the identity already had. Bad credentials return
// common.ErrInvalidCredentials and never touch the session table.
func (s *Service) Login(ctx context.Context, identity, secret string) (session.Session, error) {
	ok, err := s.directory.Verify(ctx, identity, secret)
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to verify credentials: %w", err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "Login rejected", "identity", session.NormalizeIdentity(identity))
		return session.Session{}, common.ErrInvalidCredentials
	}

	sess, err := s.sessions.Register(ctx, identity)
	if err != nil {
		return session.Session{}, fmt.Errorf("login for %s failed: %w", session.NormalizeIdentity(identity), err)
	}
	return sess, nil
}
