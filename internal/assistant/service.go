package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/healthjournal/internal/config"
)

// Service provides chat replies using the configured backend.
type Service struct {
	replier Replier
	mode    string
}

// NewServiceWithReplier creates a service around an existing replier.
func NewServiceWithReplier(mode string, replier Replier) *Service {
	return &Service{replier: replier, mode: mode}
}

// NewService builds the backend selected by cfg. Remote backends are wrapped
// in a circuit breaker.
func NewService(cfg config.AssistantConfig, logger *slog.Logger) (*Service, error) {
	switch cfg.Mode {
	case config.AssistantLLM:
		llm, err := NewLLMReplier(cfg.LLMBaseURL, cfg.LLMToken, cfg.LLMModel, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return NewServiceWithReplier(cfg.Mode, NewBreaker(llm, DefaultBreakerConfig("llm"))), nil
	case config.AssistantGRPC:
		gcfg := DefaultGrpcReplierConfig(cfg.GRPCAddr)
		if cfg.Timeout > 0 {
			gcfg.RequestTimeout = cfg.Timeout
		}
		g, err := NewGrpcReplier(gcfg, logger)
		if err != nil {
			return nil, err
		}
		return NewServiceWithReplier(cfg.Mode, NewBreaker(g, DefaultBreakerConfig("grpc"))), nil
	case config.AssistantEcho, "":
		return NewServiceWithReplier(config.AssistantEcho, NewEchoReplier(cfg.ReplyDelay)), nil
	default:
		return nil, fmt.Errorf("unknown assistant mode %q", cfg.Mode)
	}
}

// Reply produces the answer to req.
func (s *Service) Reply(ctx context.Context, req Request) (string, error) {
	return s.replier.Reply(ctx, req)
}

// Mode names the active backend.
func (s *Service) Mode() string {
	return s.mode
}

// BreakerState reports the circuit breaker state, or "" for local backends.
func (s *Service) BreakerState() string {
	if b, ok := s.replier.(*Breaker); ok {
		return b.State()
	}
	return ""
}

// Close releases resources.
func (s *Service) Close() {
	c, ok := s.replier.(interface{ Close() error })
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		slog.Warn("failed to close assistant backend", "mode", s.mode, "error", err)
	}
}
