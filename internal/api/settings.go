package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/ashureev/healthjournal/internal/identity"
	"github.com/ashureev/healthjournal/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// settingsInput mirrors the choices offered by the settings dialog. The
// spoken language is not user-editable; it follows voice input.
type settingsInput struct {
	Model               string `json:"model" validate:"required,max=64"`
	Theme               string `json:"theme" validate:"required,oneof=System Light Dark"`
	Language            string `json:"language" validate:"required,oneof=Auto-detect English Spanish French German"`
	Voice               string `json:"voice" validate:"required,oneof=Ember Alloy Echo Fable Nova"`
	FollowUpSuggestions bool   `json:"follow_up_suggestions"`
}

// SettingsHandler reads and writes per-user preferences.
type SettingsHandler struct {
	*Handler
	store    store.SettingsStore
	validate *validator.Validate
	now      func() time.Time
}

// NewSettingsHandler creates a settings handler.
func NewSettingsHandler(base *Handler, s store.SettingsStore) *SettingsHandler {
	return &SettingsHandler{
		Handler:  base,
		store:    s,
		validate: validator.New(),
		now:      time.Now,
	}
}

// RegisterRoutes registers the settings routes.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/settings", h.GetSettings)
	r.Put("/api/settings", h.UpdateSettings)
}

func (h *SettingsHandler) load(ctx context.Context, userID string) (domain.Settings, error) {
	st, err := h.store.GetSettings(ctx, userID)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	if st == nil {
		return domain.DefaultSettings(userID), nil
	}
	return *st, nil
}

// GetSettings returns the caller's settings, or the defaults.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.load(r.Context(), identity.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, st)
}

// UpdateSettings replaces the caller's settings.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in settingsInput
	if !decode(w, r, &in) {
		return
	}
	in.Model = strings.TrimSpace(in.Model)
	if err := h.validate.Struct(in); err != nil {
		Error(w, http.StatusBadRequest, "invalid settings: "+err.Error())
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	st, err := h.load(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st.Model = in.Model
	st.Theme = in.Theme
	st.Language = in.Language
	st.Voice = in.Voice
	st.FollowUpSuggestions = in.FollowUpSuggestions
	st.UpdatedAt = h.now().UTC()

	if err := h.store.UpsertSettings(r.Context(), &st); err != nil {
		h.fail(w, r, fmt.Errorf("save settings: %w", err))
		return
	}
	JSON(w, http.StatusOK, st)
}

// recordSpokenLanguage stores the language last detected from speech.
func (h *SettingsHandler) recordSpokenLanguage(ctx context.Context, userID, language string) error {
	st, err := h.load(ctx, userID)
	if err != nil {
		return err
	}
	if st.SpokenLanguage == language {
		return nil
	}
	st.SpokenLanguage = language
	st.UpdatedAt = h.now().UTC()
	if err := h.store.UpsertSettings(ctx, &st); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
