package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// Error codes carried in error bodies.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeNotInitialized     = "PROFILE_NOT_INITIALIZED"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusFromError maps engine errors to HTTP status codes and error codes.
func StatusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrInvalidArgument), errors.Is(err, types.ErrInsufficientInput):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, types.ErrProfileNotInitialized):
		return http.StatusConflict, ErrCodeNotInitialized
	case errors.Is(err, types.ErrConflict):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, types.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	case errors.Is(err, types.ErrProfileNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	default:
		return http.StatusInternalServerError, ErrCodeInternalServer
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

// handleError logs server-side failures and writes the mapped status.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFromError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	}
	writeError(w, r, status, code, err.Error())
}
