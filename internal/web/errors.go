package web

import (
	"errors"
	"net/http"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/ingest"
	"github.com/Veraticus/the-books-must-balance/internal/logging"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Missing []string `json:"missing_columns,omitempty"`
}

// respondError logs err with the request id and writes a client-safe body.
// Store and internal failures never leak their detail to the client.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	resp := ErrorResponse{Code: errorCode(err, status)}

	var mismatch *common.SchemaMismatchError
	var userErr *common.UserError
	switch {
	case errors.As(err, &mismatch):
		resp.Error = mismatch.Error()
		resp.Missing = mismatch.Missing
	case errors.As(err, &userErr):
		resp.Error = userErr.UserMessage
	case status == http.StatusUnauthorized:
		resp.Error = "not authenticated"
	case status == http.StatusServiceUnavailable:
		resp.Error = "storage temporarily unavailable"
	case status >= http.StatusInternalServerError:
		resp.Error = "internal error"
	default:
		resp.Error = err.Error()
	}

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		logger.Info("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	writeJSON(w, status, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials), errors.Is(err, common.ErrSessionInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrUnrecognizedLayout),
		errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrMalformedFile):
		return http.StatusBadRequest
	}

	var userErr *common.UserError
	if errors.As(err, &userErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func errorCode(err error, status int) string {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	case errors.Is(err, common.ErrSessionInvalid):
		return "SESSION_INVALID"
	case errors.Is(err, common.ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	case errors.Is(err, common.ErrSchemaMismatch):
		return "SCHEMA_MISMATCH"
	case errors.Is(err, ingest.ErrUnrecognizedLayout):
		return "UNRECOGNIZED_LAYOUT"
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return "UNSUPPORTED_FORMAT"
	case errors.Is(err, ingest.ErrMalformedFile):
		return "MALFORMED_FILE"
	}

	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusUnauthorized:
		return "SESSION_INVALID"
	case http.StatusServiceUnavailable:
		return "STORE_UNAVAILABLE"
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	default:
		return "INTERNAL"
	}
}
