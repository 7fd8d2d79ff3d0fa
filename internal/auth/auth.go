// Package auth provides the authentication providers behind sign-in, sign-up,
// password reset and session lookup.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/healthjournal/internal/domain"
)

var (
	// ErrInvalidCredentials is returned when an email and password do not match.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated is returned for missing, expired or revoked tokens.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrUnsupported is returned for capabilities a provider does not offer.
	ErrUnsupported = errors.New("not supported by this auth provider")
	// ErrInvalidInput is returned for malformed sign-up or reset submissions.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrProvider marks failures of the identity backend itself.
	ErrProvider = errors.New("auth provider failure")
)

// MinPasswordLength matches the managed provider's default policy.
const MinPasswordLength = 6

// Session is an authenticated user together with the bearer token that
// proves it. Token is empty when the provider still awaits email
// confirmation.
type Session struct {
	User      domain.User `json:"user"`
	Token     string      `json:"access_token,omitempty"`
	ExpiresAt time.Time   `json:"expires_at,omitempty"`
}

// SignUpInput is a new account submission.
type SignUpInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Provider is an identity backend.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, in SignUpInput) (*Session, error)
	ResetPassword(ctx context.Context, email string) error
	OAuthURL(ctx context.Context, provider string) (string, error)
	CurrentUser(ctx context.Context, token string) (*domain.User, error)
	SignOut(ctx context.Context, token string) error
}

// ResetConfirmer is implemented by providers that complete password resets
// themselves instead of through an emailed link.
type ResetConfirmer interface {
	ConfirmReset(ctx context.Context, token, newPassword string) error
}
