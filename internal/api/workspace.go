package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/healthjournal/internal/conversation"
	"github.com/ashureev/healthjournal/internal/identity"
	"github.com/go-chi/chi/v5"
)

// WorkspaceHandler exposes a user's conversations.
type WorkspaceHandler struct {
	*Handler
	registry *conversation.Registry
	limiter  func(http.Handler) http.Handler
}

// NewWorkspaceHandler creates a workspace handler. limiter, when non-nil,
// wraps the message route.
func NewWorkspaceHandler(base *Handler, registry *conversation.Registry, limiter func(http.Handler) http.Handler) *WorkspaceHandler {
	return &WorkspaceHandler{Handler: base, registry: registry, limiter: limiter}
}

// RegisterRoutes registers the workspace and conversation routes.
func (h *WorkspaceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/workspace", h.GetWorkspace)
	r.Put("/api/workspace/view", h.SetView)

	r.Route("/api/conversations", func(r chi.Router) {
		r.Post("/", h.CreateConversation)
		r.Put("/{id}/active", h.SelectConversation)
		r.Delete("/{id}", h.DeleteConversation)
		r.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(h.limiter)
			}
			r.Post("/active/messages", h.SendMessage)
		})
	})
}

// withManager runs fn against the caller's workspace. A workspace evicted
// between lookup and use is replaced once.
func (h *WorkspaceHandler) withManager(r *http.Request, fn func(*conversation.Manager) error) error {
	userID := identity.UserIDFromContext(r.Context())
	err := fn(h.registry.Get(userID))
	if errors.Is(err, conversation.ErrClosed) {
		err = fn(h.registry.Get(userID))
	}
	return err
}

// GetWorkspace returns the caller's workspace snapshot.
func (h *WorkspaceHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	JSON(w, http.StatusOK, h.registry.Get(userID).Snapshot())
}

// SetView switches between chat and tracker.
func (h *WorkspaceHandler) SetView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		View conversation.View `json:"view"`
	}
	if !decode(w, r, &req) {
		return
	}
	err := h.withManager(r, func(m *conversation.Manager) error {
		return m.SetView(req.View)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]conversation.View{"view": req.View})
}

// CreateConversation starts a new conversation and makes it active.
func (h *WorkspaceHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var created interface{}
	err := h.withManager(r, func(m *conversation.Manager) error {
		conv, err := m.Create()
		created = conv
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, created)
}

// SelectConversation makes a conversation active.
func (h *WorkspaceHandler) SelectConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.withManager(r, func(m *conversation.Manager) error {
		return m.Select(id)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"active_id": id})
}

// DeleteConversation removes a conversation.
func (h *WorkspaceHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.withManager(r, func(m *conversation.Manager) error {
		return m.Delete(id)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	h.logger.Info("Conversation deleted", "user_id", userID, "conversation_id", id)
	JSON(w, http.StatusOK, map[string]string{
		"status":    "deleted",
		"active_id": h.registry.Get(userID).Snapshot().ActiveID,
	})
}

type sendRequest struct {
	Content string `json:"content"`
}

// SendMessage posts a user message to the active conversation. The reply
// arrives later on the event stream.
func (h *WorkspaceHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decode(w, r, &req) {
		return
	}
	var sent interface{}
	err := h.withManager(r, func(m *conversation.Manager) error {
		msg, err := m.Send(req.Content)
		sent = msg
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusAccepted, map[string]interface{}{"message": sent})
}
