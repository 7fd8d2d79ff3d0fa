package assistant

import (
	"context"
	"fmt"
	"time"
)

// DefaultEchoDelay is how long the placeholder assistant "thinks".
const DefaultEchoDelay = time.Second

// EchoReplier answers every message by quoting it back after a fixed delay.
type EchoReplier struct {
	Delay time.Duration
}

// NewEchoReplier returns an EchoReplier. A negative delay is treated as zero.
func NewEchoReplier(delay time.Duration) *EchoReplier {
	if delay < 0 {
		delay = 0
	}
	return &EchoReplier{Delay: delay}
}

// Reply waits for the delay and returns the quoted message.
func (e *EchoReplier) Reply(ctx context.Context, req Request) (string, error) {
	if e.Delay > 0 {
		timer := time.NewTimer(e.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return "", err
	}
	return EchoText(req.Text), nil
}

// EchoText formats the placeholder reply for text.
func EchoText(text string) string {
	return fmt.Sprintf("This is a response to: \"%s\"", text)
}
