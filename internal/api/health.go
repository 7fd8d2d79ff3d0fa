package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AssistantStatus reports the reply backend state.
type AssistantStatus interface {
	Mode() string
	BreakerState() string
}

// HealthHandler reports readiness of the database and assistant.
type HealthHandler struct {
	*Handler
	db        Pinger
	assistant AssistantStatus
}

// NewHealthHandler creates a health handler. assistant may be nil.
func NewHealthHandler(base *Handler, db Pinger, assistant AssistantStatus) *HealthHandler {
	return &HealthHandler{Handler: base, db: db, assistant: assistant}
}

// RegisterRoutes registers the health route.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
}

// Health returns 200 when the database answers, 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	resp := map[string]interface{}{"status": "ok", "database": "ok"}
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Health check failed", "error", err)
		status = http.StatusServiceUnavailable
		resp["status"] = "degraded"
		resp["database"] = err.Error()
	}
	if h.assistant != nil {
		a := map[string]string{"mode": h.assistant.Mode()}
		if state := h.assistant.BreakerState(); state != "" {
			a["breaker"] = state
		}
		resp["assistant"] = a
	}
	JSON(w, status, resp)
}
