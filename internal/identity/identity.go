// Package identity resolves bearer tokens to the authenticated session that
// every request handler reads its user from.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/healthjournal/internal/auth"
	"github.com/ashureev/healthjournal/internal/domain"
)

// TokenQueryParam carries the token on websocket upgrades, where browsers
// cannot set an Authorization header.
const TokenQueryParam = "access_token"

type contextKey int

const sessionKey contextKey = iota

// Session is the authenticated user of a request together with its token.
type Session struct {
	User  domain.User
	Token string
}

// UserID returns the session user's id.
func (s *Session) UserID() string {
	return s.User.ID
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the request's session, or nil when unauthenticated.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey).(*Session); ok {
		return s
	}
	return nil
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if s := FromContext(ctx); s != nil {
		return s.User.ID
	}
	return ""
}

// TokenFromRequest reads a bearer token from the Authorization header. The
// access_token query parameter is only honoured on websocket upgrades.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if !isUpgrade(r) {
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get(TokenQueryParam))
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// StripQueryToken removes the access_token query parameter before the
// request reaches access logging. On a websocket upgrade without an
// Authorization header the token is moved into that header so Middleware
// still sees it; on any other request it is dropped.
func StripQueryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if !q.Has(TokenQueryParam) {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(q.Get(TokenQueryParam))
		q.Del(TokenQueryParam)

		r2 := r.Clone(r.Context())
		r2.URL.RawQuery = q.Encode()
		r2.RequestURI = r2.URL.RequestURI()
		if token != "" && isUpgrade(r) && r.Header.Get("Authorization") == "" {
			r2.Header.Set("Authorization", "Bearer "+token)
		}
		next.ServeHTTP(w, r2)
	})
}

// Middleware rejects requests without a valid token and injects the
// resolved session into the request context.
func Middleware(provider auth.Provider, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			user, err := provider.CurrentUser(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					writeError(w, http.StatusUnauthorized, "invalid or expired session")
					return
				}
				logger.Error("Failed to resolve session", "error", err)
				writeError(w, http.StatusBadGateway, "failed to verify session")
				return
			}

			ctx := WithSession(r.Context(), &Session{User: *user, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
