package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/logging"
	"github.com/Veraticus/the-books-must-balance/internal/metrics"
	"github.com/Veraticus/the-books-must-balance/internal/session"
)

// requestLogger logs one line per request with its status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		logging.FromContext(r.Context()).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
		)
	})
}

// observe records request counts and latency by route pattern, so that
// path parameters do not create one series per report kind.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.deps.Metrics.ObserveRequest(r.Method, route, strconv.Itoa(ww.status), time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// requireSession admits only requests carrying the identity's current
// token. A store failure answers 503 so that an outage never reads as a
// valid session.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, token, ok := credentials(r)
		if !ok {
			s.deps.Metrics.SessionCheck(metrics.ResultInvalid)
			respondError(w, r, common.ErrSessionInvalid, http.StatusUnauthorized)
			return
		}

		sess, err := s.deps.Sessions.Check(r.Context(), identity, token)
		switch {
		case err == nil:
			s.deps.Metrics.SessionCheck(metrics.ResultOK)
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		case errors.Is(err, common.ErrSessionInvalid):
			s.deps.Metrics.SessionCheck(metrics.ResultInvalid)
			respondError(w, r, err, http.StatusUnauthorized)
		default:
			s.deps.Metrics.SessionCheck(metrics.ResultUnavailable)
			respondError(w, r, err, http.StatusServiceUnavailable)
		}
	})
}

// credentials reads "identity:token" from a Bearer header or the session
// cookie, in that order.
func credentials(r *http.Request) (string, string, bool) {
	var raw string
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return "", "", false
		}
		raw = strings.TrimSpace(value)
	} else if c, err := r.Cookie(SessionCookie); err == nil {
		raw = c.Value
	}

	i := strings.LastIndex(raw, ":")
	if i <= 0 || i == len(raw)-1 {
		return "", "", false
	}
	return raw[:i], raw[i+1:], true
}

func sessionCookie(sess session.Session, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Identity + ":" + sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func clearedCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
