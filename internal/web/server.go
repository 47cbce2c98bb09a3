// Package web serves the JSON API used by the back-office front end.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Veraticus/the-books-must-balance/internal/ingest"
	"github.com/Veraticus/the-books-must-balance/internal/metrics"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/session"
)

// SessionCookie is the cookie carrying "identity:token" for browser clients.
const SessionCookie = "books_session"

const (
	defaultMaxUpload      = 32 << 20
	defaultRequestTimeout = 60 * time.Second
)

// Authenticator runs the login flow.
type Authenticator interface {
	Login(ctx context.Context, identity, secret string) (session.Session, error)
}

// Sessions is the part of the session registry the API needs.
type Sessions interface {
	Check(ctx context.Context, identity, token string) (session.Session, error)
	Refresh(ctx context.Context, identity string) error
	Revoke(ctx context.Context, identity string) error
}

// Publisher writes parsed report batches to their destination table.
type Publisher interface {
	Publish(ctx context.Context, schema *reconcile.Schema, rows []model.Row) (reconcile.Summary, error)
}

// Deps are the collaborators behind the API. History and Metrics are
// optional.
type Deps struct {
	Auth      Authenticator
	Sessions  Sessions
	Catalog   *reconcile.Catalog
	Loader    *ingest.Loader
	Publisher Publisher
	History   service.ImportHistory
	Metrics   *metrics.Metrics
}

// Config tunes the HTTP server.
type Config struct {
	Address        string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	SecureCookies  bool
}

// Server is the HTTP API server.
type Server struct {
	deps   Deps
	cfg    Config
	router *chi.Mux
	server *http.Server
}

// NewServer creates a Server with its routes mounted.
func NewServer(deps Deps, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	s := &Server{
		deps:   deps,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(s.observe)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
}

func (s *Server) setupRoutes() {
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/logout", s.handleLogout)
			r.Post("/heartbeat", s.handleHeartbeat)
			r.Get("/session", s.handleSession)
			r.Post("/reports/{kind}", s.handleReport)
			r.Get("/imports", s.handleImports)
		})
	})
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("Starting server", "address", s.cfg.Address)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(r, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
