// Package api provides HTTP handlers for the health journal API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/healthjournal/internal/auth"
	"github.com/ashureev/healthjournal/internal/conversation"
	"github.com/ashureev/healthjournal/internal/insights"
	"github.com/ashureev/healthjournal/internal/records"
)

const maxBodySize = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into v. It writes the error response itself and
// reports whether decoding succeeded.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fail maps a service error to its HTTP status. Store and provider failures
// carry their message through so the client can show it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *records.ValidationError
	switch {
	case errors.As(err, &verr):
		JSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, conversation.ErrInvalidView):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthenticated):
		Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, conversation.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, conversation.ErrClosed):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrUnsupported):
		Error(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, records.ErrStore),
		errors.Is(err, insights.ErrStore),
		errors.Is(err, auth.ErrProvider):
		h.logger.Error("Upstream failure", "error", err, "path", r.URL.Path)
		Error(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("Request failed", "error", err, "path", r.URL.Path)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}
