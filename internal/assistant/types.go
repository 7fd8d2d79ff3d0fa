// Package assistant implements the backends that answer chat messages.
package assistant

import (
	"context"
	"errors"

	"github.com/ashureev/healthjournal/internal/domain"
)

// ErrUnavailable is returned when a remote backend refuses work, for example
// while its circuit breaker is open.
var ErrUnavailable = errors.New("assistant unavailable")

// Request is one reply to produce. History holds every message of the
// conversation in display order, including the message being answered.
type Request struct {
	UserID         string
	ConversationID string
	Text           string
	History        []domain.Message
}

// Replier produces the assistant's answer to a user message. Implementations
// must return promptly once ctx is cancelled.
type Replier interface {
	Reply(ctx context.Context, req Request) (string, error)
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, req Request) (string, error)

// Reply calls f.
func (f ReplierFunc) Reply(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
