package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReplyMethod is the full gRPC method name of the remote assistant.
const ReplyMethod = "/healthjournal.assistant.v1.Assistant/Reply"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errReplyResponse            = errors.New("reply response returned error")
	errEmptyReply               = errors.New("reply response was empty")
)

// GrpcReplierConfig holds configuration for the gRPC replier.
type GrpcReplierConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcReplierConfig returns default configuration for addr.
func DefaultGrpcReplierConfig(addr string) GrpcReplierConfig {
	return GrpcReplierConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   30 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcReplier asks a remote assistant service for replies. Requests and
// responses are google.protobuf.Struct messages so no generated stubs are
// needed on either side.
type GrpcReplier struct {
	conn   *grpc.ClientConn
	cfg    GrpcReplierConfig
	logger *slog.Logger
}

// NewGrpcReplier connects to the assistant service and waits until the
// connection is ready, failing fast on a bad endpoint.
func NewGrpcReplier(cfg GrpcReplierConfig, logger *slog.Logger, opts ...grpc.DialOption) (*GrpcReplier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, opts...)

	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("create assistant client for %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("assistant at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to assistant service", "address", cfg.Address)

	return &GrpcReplier{conn: conn, cfg: cfg, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Reply sends the message and history to the remote service.
func (g *GrpcReplier) Reply(ctx context.Context, req Request) (string, error) {
	in, err := encodeRequest(req)
	if err != nil {
		return "", err
	}

	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}

	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, ReplyMethod, in, out); err != nil {
		// A cancelled caller is not a backend failure.
		if status.Code(err) == codes.Canceled && ctx.Err() != nil {
			return "", ctx.Err()
		}
		g.logger.Warn("assistant reply failed", "error", err, "user_id", req.UserID, "conversation_id", req.ConversationID)
		return "", fmt.Errorf("reply request failed: %w", err)
	}

	fields := out.GetFields()
	if msg := fields["error"].GetStringValue(); msg != "" {
		return "", fmt.Errorf("%w: %s", errReplyResponse, msg)
	}
	reply := fields["reply"].GetStringValue()
	if strings.TrimSpace(reply) == "" {
		return "", errEmptyReply
	}
	return reply, nil
}

// Close closes the gRPC connection.
func (g *GrpcReplier) Close() error {
	if g.conn == nil {
		return nil
	}
	if err := g.conn.Close(); err != nil {
		return fmt.Errorf("close assistant connection: %w", err)
	}
	return nil
}

func encodeRequest(req Request) (*structpb.Struct, error) {
	history := make([]interface{}, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, map[string]interface{}{
			"content":   m.Content,
			"is_user":   m.IsUser,
			"timestamp": m.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	s, err := structpb.NewStruct(map[string]interface{}{
		"user_id":         req.UserID,
		"conversation_id": req.ConversationID,
		"text":            req.Text,
		"history":         history,
	})
	if err != nil {
		return nil, fmt.Errorf("encode reply request: %w", err)
	}
	return s, nil
}
