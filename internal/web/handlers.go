package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/logging"
	"github.com/Veraticus/the-books-must-balance/internal/metrics"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/session"
)

type loginRequest struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

type loginResponse struct {
	CreatedAt time.Time `json:"created_at"`
	Identity  string    `json:"identity"`
	Token     string    `json:"token"`
}

// ImportResponse is returned after a report upload.
type ImportResponse struct {
	Summary        reconcile.Summary `json:"summary"`
	Source         string            `json:"source"`
	Format         string            `json:"format"`
	MissingColumns []string          `json:"missing_columns,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		respondError(w, r, common.NewUserError("invalid login request", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Identity) == "" || req.Secret == "" {
		respondError(w, r, common.NewUserError("identity and secret are required", nil), http.StatusBadRequest)
		return
	}

	sess, err := s.deps.Auth.Login(r.Context(), req.Identity, req.Secret)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusUnauthorized {
			s.deps.Metrics.Login(metrics.ResultRejected)
		} else {
			s.deps.Metrics.Login(metrics.ResultError)
		}
		respondError(w, r, err, status)
		return
	}
	s.deps.Metrics.Login(metrics.ResultOK)

	logging.FromContext(r.Context()).Info("Login succeeded", "identity", sess.Identity)

	http.SetCookie(w, sessionCookie(sess, s.cfg.SecureCookies))
	writeJSON(w, http.StatusOK, loginResponse{
		Identity:  sess.Identity,
		Token:     sess.Token,
		CreatedAt: sess.CreatedAt,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	if err := s.deps.Sessions.Revoke(r.Context(), sess.Identity); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	http.SetCookie(w, clearedCookie(s.cfg.SecureCookies))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	if err := s.deps.Sessions.Refresh(r.Context(), sess.Identity); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	writeJSON(w, http.StatusOK, sess)
}

// handleReport ingests one uploaded export and publishes it.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseReportKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, common.NewUserError(err.Error(), nil), http.StatusNotFound)
		return
	}
	schema, ok := s.deps.Catalog.Schema(kind)
	if !ok {
		respondError(w, r, common.NewUserError(fmt.Sprintf("report kind %s is not configured", kind), nil), http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		respondError(w, r, common.NewUserError("file too large or invalid form", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, common.NewUserError("no file provided", err), http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	batch, err := s.deps.Loader.Load(r.Context(), schema, header.Filename, file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	summary, err := s.deps.Publisher.Publish(r.Context(), schema, batch.Rows)
	s.deps.Metrics.Publish(string(kind), summary, err)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	sess, _ := session.FromContext(r.Context())
	s.recordImport(r, sess.Identity, kind, batch.Source, summary)

	writeJSON(w, http.StatusOK, ImportResponse{
		Summary:        summary,
		Source:         batch.Source,
		Format:         batch.Format,
		MissingColumns: batch.Mapping.Missing,
	})
}

// recordImport appends to the audit trail. The publish already happened,
// so a failure here is logged and not reported to the client.
func (s *Server) recordImport(r *http.Request, identity string, kind model.ReportKind, source string, summary reconcile.Summary) {
	if s.deps.History == nil {
		return
	}

	rec := &service.ImportRecord{
		Kind:       string(kind),
		Table:      summary.Table,
		Identity:   identity,
		SourceFile: source,
		Received:   summary.Received,
		Inserted:   summary.Inserted,
		Skipped:    summary.Skipped,
		Replaced:   summary.Replaced,
		Warnings:   len(summary.Warnings),
	}
	if err := s.deps.History.RecordImport(r.Context(), rec); err != nil {
		logging.FromContext(r.Context()).Warn("Failed to record import", "table", summary.Table, "error", err)
	}
}

func (s *Server) handleImports(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusOK, []service.ImportRecord{})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, r, common.NewUserError("limit must be a non-negative integer", err), http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.deps.History.ListImports(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if records == nil {
		records = []service.ImportRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
