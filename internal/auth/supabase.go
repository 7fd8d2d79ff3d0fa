package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// SupabaseProvider authenticates through a Supabase project's GoTrue API.
type SupabaseProvider struct {
	client      gotrue.Client
	redirectURL string
}

// NewSupabaseProvider creates a provider over an auth client, usually the
// Auth field of a supabase-go client. redirectURL is where OAuth flows
// return to.
func NewSupabaseProvider(client gotrue.Client, redirectURL string) *SupabaseProvider {
	return &SupabaseProvider{client: client, redirectURL: redirectURL}
}

func isClientError(err error) bool {
	msg := err.Error()
	for _, code := range []string{"status code 400", "status code 401", "status code 403", "status code 422"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

func fromSupabaseUser(u types.User) domain.User {
	user := domain.User{
		ID:        u.ID.String(),
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if v, ok := u.UserMetadata["first_name"].(string); ok {
		user.FirstName = v
	}
	if v, ok := u.UserMetadata["last_name"].(string); ok {
		user.LastName = v
	}
	return user
}

func fromSupabaseSession(s types.Session) *Session {
	out := &Session{User: fromSupabaseUser(s.User), Token: s.AccessToken}
	if s.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	}
	return out
}

// SignIn implements Provider.
func (p *SupabaseProvider) SignIn(_ context.Context, email, password string) (*Session, error) {
	resp, err := p.client.SignInWithEmailPassword(normalizeEmail(email), password)
	if err != nil {
		if isClientError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: sign in: %w", ErrProvider, err)
	}
	return fromSupabaseSession(resp.Session), nil
}

// SignUp implements Provider. Projects with email confirmation enabled
// return a session without a token.
func (p *SupabaseProvider) SignUp(_ context.Context, in SignUpInput) (*Session, error) {
	if len(in.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	resp, err := p.client.Signup(types.SignupRequest{
		Email:    normalizeEmail(in.Email),
		Password: in.Password,
		Data: map[string]interface{}{
			"first_name": strings.TrimSpace(in.FirstName),
			"last_name":  strings.TrimSpace(in.LastName),
		},
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already registered") {
			return nil, ErrEmailTaken
		}
		if isClientError(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("%w: sign up: %w", ErrProvider, err)
	}

	if resp.AccessToken != "" {
		return fromSupabaseSession(resp.Session), nil
	}
	return &Session{User: fromSupabaseUser(resp.User)}, nil
}

// ResetPassword implements Provider. Supabase emails the reset link.
func (p *SupabaseProvider) ResetPassword(_ context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if err := p.client.Recover(types.RecoverRequest{Email: email}); err != nil {
		return fmt.Errorf("%w: recover: %w", ErrProvider, err)
	}
	return nil
}

// OAuthURL implements Provider.
func (p *SupabaseProvider) OAuthURL(_ context.Context, provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return "", fmt.Errorf("%w: provider is required", ErrInvalidInput)
	}

	resp, err := p.client.Authorize(types.AuthorizeRequest{Provider: types.Provider(provider)})
	if err != nil {
		return "", fmt.Errorf("%w: authorize %s: %w", ErrProvider, provider, err)
	}
	if p.redirectURL == "" {
		return resp.AuthorizationURL, nil
	}
	return appendRedirect(resp.AuthorizationURL, p.redirectURL), nil
}

func appendRedirect(authURL, redirect string) string {
	sep := "?"
	if strings.Contains(authURL, "?") {
		sep = "&"
	}
	return authURL + sep + "redirect_to=" + url.QueryEscape(redirect)
}

// CurrentUser implements Provider.
func (p *SupabaseProvider) CurrentUser(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	resp, err := p.client.WithToken(token).GetUser()
	if err != nil {
		if isClientError(err) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: get user: %w", ErrProvider, err)
	}
	user := fromSupabaseUser(resp.User)
	return &user, nil
}

// SignOut implements Provider.
func (p *SupabaseProvider) SignOut(_ context.Context, token string) error {
	if token == "" {
		return ErrUnauthenticated
	}
	if err := p.client.WithToken(token).Logout(); err != nil {
		if isClientError(err) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("%w: logout: %w", ErrProvider, err)
	}
	return nil
}
