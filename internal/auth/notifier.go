package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/healthjournal/internal/domain"
)

// Notifier delivers password reset tokens to users.
type Notifier interface {
	SendPasswordReset(ctx context.Context, user domain.User, token string, expires time.Time) error
}

// LogNotifier writes reset tokens to the structured log. It is meant for
// local development where no mail service is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier writing to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendPasswordReset implements Notifier.
func (n *LogNotifier) SendPasswordReset(ctx context.Context, user domain.User, token string, expires time.Time) error {
	n.logger.InfoContext(ctx, "Password reset requested",
		"user_id", user.ID,
		"email", user.Email,
		"reset_token", token,
		"expires_at", expires.Format(time.RFC3339),
	)
	return nil
}
