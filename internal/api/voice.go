package api

import (
	"net/http"
	"strings"

	"github.com/ashureev/healthjournal/internal/conversation"
	"github.com/ashureev/healthjournal/internal/identity"
	"github.com/ashureev/healthjournal/internal/voice"
	"github.com/go-chi/chi/v5"
)

// VoiceHandler accepts browser speech transcripts.
type VoiceHandler struct {
	*Handler
	workspace *WorkspaceHandler
	settings  *SettingsHandler
}

// NewVoiceHandler creates a voice handler. Transcripts are forwarded through
// workspace and their language is remembered through settings; either may
// be nil.
func NewVoiceHandler(base *Handler, workspace *WorkspaceHandler, settings *SettingsHandler) *VoiceHandler {
	return &VoiceHandler{Handler: base, workspace: workspace, settings: settings}
}

// RegisterRoutes registers the voice routes.
func (h *VoiceHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.workspace != nil && h.workspace.limiter != nil {
			r.Use(h.workspace.limiter)
		}
		r.Post("/api/voice/transcriptions", h.Transcribe)
	})
}

type transcriptionRequest struct {
	Text string `json:"text"`
	Send bool   `json:"send"`
}

// Transcribe tags a transcript with its language and optionally sends it to
// the active conversation.
func (h *VoiceHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	var req transcriptionRequest
	if !decode(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		Error(w, http.StatusBadRequest, "transcript is empty")
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	transcript := voice.NewTranscript(text)

	if h.settings != nil {
		name := voice.LanguageName(transcript.Language)
		if err := h.settings.recordSpokenLanguage(r.Context(), userID, name); err != nil {
			h.logger.Warn("Failed to record spoken language", "error", err, "user_id", userID)
		}
	}

	resp := map[string]interface{}{"transcript": transcript}
	if req.Send && h.workspace != nil {
		err := h.workspace.withManager(r, func(m *conversation.Manager) error {
			msg, err := m.Send(transcript.Text)
			resp["message"] = msg
			return err
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		JSON(w, http.StatusAccepted, resp)
		return
	}
	JSON(w, http.StatusOK, resp)
}
