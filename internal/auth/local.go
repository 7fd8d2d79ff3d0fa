package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/ashureev/healthjournal/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// LocalConfig configures a LocalProvider.
type LocalConfig struct {
	Secret   string
	TokenTTL time.Duration
	ResetTTL time.Duration
}

// LocalOption configures a LocalProvider.
type LocalOption func(*LocalProvider)

// WithRevocations replaces the in-memory revocation list.
func WithRevocations(r RevocationStore) LocalOption {
	return func(p *LocalProvider) { p.revocations = r }
}

// WithNotifier replaces the log notifier used for reset tokens.
func WithNotifier(n Notifier) LocalOption {
	return func(p *LocalProvider) { p.notifier = n }
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) LocalOption {
	return func(p *LocalProvider) { p.cost = cost }
}

// WithLocalClock overrides time.Now for users and tokens.
func WithLocalClock(now func() time.Time) LocalOption {
	return func(p *LocalProvider) {
		p.now = now
		p.tokens.now = now
	}
}

// LocalProvider authenticates against users in the local store with bcrypt
// password hashes and signed JWT access tokens.
type LocalProvider struct {
	users       store.UserStore
	tokens      *TokenService
	revocations RevocationStore
	notifier    Notifier
	validate    *validator.Validate
	tokenTTL    time.Duration
	resetTTL    time.Duration
	cost        int
	now         func() time.Time
	logger      *slog.Logger
}

// NewLocalProvider creates a provider over users.
func NewLocalProvider(users store.UserStore, cfg LocalConfig, logger *slog.Logger, opts ...LocalOption) *LocalProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &LocalProvider{
		users:       users,
		tokens:      NewTokenService(cfg.Secret),
		revocations: NewMemoryRevocations(),
		notifier:    NewLogNotifier(logger),
		validate:    validator.New(),
		tokenTTL:    cfg.TokenTTL,
		resetTTL:    cfg.ResetTTL,
		cost:        bcrypt.DefaultCost,
		now:         time.Now,
		logger:      logger,
	}
	if p.tokenTTL <= 0 {
		p.tokenTTL = 24 * time.Hour
	}
	if p.resetTTL <= 0 {
		p.resetTTL = 30 * time.Minute
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *LocalProvider) checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	return nil
}

func (p *LocalProvider) issueSession(user *domain.User) (*Session, error) {
	token, claims, err := p.tokens.Issue(user.ID, user.Email, PurposeAccess, p.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Session{User: *user, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// SignIn implements Provider.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := p.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("%w: look up user: %w", ErrProvider, err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p.issueSession(user)
}

// SignUp implements Provider. A new account is signed in immediately.
func (p *LocalProvider) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	if err := p.validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if err := p.checkPassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := p.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: create user: %w", ErrProvider, err)
	}

	p.logger.Info("User signed up", "user_id", user.ID)
	return p.issueSession(user)
}

// ResetPassword implements Provider. Unknown emails succeed silently so the
// endpoint cannot be used to probe for accounts.
func (p *LocalProvider) ResetPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	user, err := p.users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: look up user: %w", ErrProvider, err)
	}
	if user == nil {
		p.logger.Debug("Password reset for unknown email")
		return nil
	}

	token, claims, err := p.tokens.Issue(user.ID, user.Email, PurposeReset, p.resetTTL)
	if err != nil {
		return err
	}
	if err := p.notifier.SendPasswordReset(ctx, *user, token, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("%w: send reset: %w", ErrProvider, err)
	}
	return nil
}

// ConfirmReset implements ResetConfirmer. Reset tokens are single use.
func (p *LocalProvider) ConfirmReset(ctx context.Context, token, newPassword string) error {
	claims, err := p.verify(ctx, token, PurposeReset)
	if err != nil {
		return err
	}
	if err := p.checkPassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := p.users.UpdatePassword(ctx, claims.Subject, string(hash)); err != nil {
		return fmt.Errorf("%w: update password: %w", ErrProvider, err)
	}
	if err := p.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}

	p.logger.Info("Password reset completed", "user_id", claims.Subject)
	return nil
}

// OAuthURL implements Provider. Local accounts have no OAuth providers.
func (p *LocalProvider) OAuthURL(context.Context, string) (string, error) {
	return "", ErrUnsupported
}

func (p *LocalProvider) verify(ctx context.Context, token, purpose string) (*Claims, error) {
	claims, err := p.tokens.Parse(token, purpose)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	revoked, err := p.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if revoked {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// CurrentUser implements Provider.
func (p *LocalProvider) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	claims, err := p.verify(ctx, token, PurposeAccess)
	if err != nil {
		return nil, err
	}
	user, err := p.users.GetUser(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: look up user: %w", ErrProvider, err)
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// SignOut implements Provider by revoking the token's id.
func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	claims, err := p.verify(ctx, token, PurposeAccess)
	if err != nil {
		return err
	}
	if err := p.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return nil
}
