package api

import (
	"net/http"

	"github.com/ashureev/healthjournal/internal/auth"
	"github.com/ashureev/healthjournal/internal/identity"
	"github.com/go-chi/chi/v5"
)

// AuthHandler handles sign-in, sign-up and password reset.
type AuthHandler struct {
	*Handler
	provider auth.Provider
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(base *Handler, provider auth.Provider) *AuthHandler {
	return &AuthHandler{Handler: base, provider: provider}
}

// RegisterPublicRoutes registers routes reachable without a session.
func (h *AuthHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/api/auth/signin", h.SignIn)
	r.Post("/api/auth/signup", h.SignUp)
	r.Post("/api/auth/reset", h.ResetPassword)
	r.Post("/api/auth/reset/confirm", h.ConfirmReset)
	r.Get("/api/auth/oauth/{provider}", h.OAuth)
}

// RegisterRoutes registers routes that require a session.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/auth/signout", h.SignOut)
	r.Get("/api/me", h.GetMe)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn exchanges an email and password for a session.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	sess, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("User signed in", "user_id", sess.User.ID)
	JSON(w, http.StatusOK, sess)
}

// SignUp creates an account. Providers that require email confirmation
// return a session without a token.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpInput
	if !decode(w, r, &req) {
		return
	}

	sess, err := h.provider.SignUp(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := map[string]interface{}{"session": sess}
	if sess.Token == "" {
		resp["message"] = "Check your email to confirm your account."
	}
	JSON(w, http.StatusCreated, resp)
}

// ResetPassword starts a password reset.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.provider.ResetPassword(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusAccepted, map[string]string{"message": "If the account exists, reset instructions have been sent."})
}

// ConfirmReset sets a new password with a reset token.
func (h *AuthHandler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	confirmer, ok := h.provider.(auth.ResetConfirmer)
	if !ok {
		h.fail(w, r, auth.ErrUnsupported)
		return
	}

	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := confirmer.ConfirmReset(r.Context(), req.Token, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
}

// OAuth returns the provider's authorization URL.
func (h *AuthHandler) OAuth(w http.ResponseWriter, r *http.Request) {
	url, err := h.provider.OAuthURL(r.Context(), chi.URLParam(r, "provider"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"url": url})
}

// SignOut ends the current session.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	sess := identity.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.provider.SignOut(r.Context(), sess.Token); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("User signed out", "user_id", sess.UserID())
	w.WriteHeader(http.StatusNoContent)
}

// GetMe returns the current user.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	sess := identity.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"user":         sess.User,
		"display_name": sess.User.DisplayName(),
	})
}
