package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// BreakerConfig holds configuration for the circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the named backend.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Breaker stops calling a failing backend for a while instead of letting
// every chat message wait for it to time out.
type Breaker struct {
	next Replier
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next in a circuit breaker.
func NewBreaker(next Replier, cfg BreakerConfig) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Assistant circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		// Cancelled replies do not count against the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled
		},
	})
	return &Breaker{next: next, cb: cb}
}

// Reply forwards to the wrapped replier unless the breaker is open.
func (b *Breaker) Reply(ctx context.Context, req Request) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Reply(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state for health output.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Close closes the wrapped replier when it holds resources.
func (b *Breaker) Close() error {
	if c, ok := b.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
