package assistant

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/healthjournal/internal/config"
	"github.com/ashureev/healthjournal/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type assistantServer interface {
	Reply(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type fakeAssistant struct {
	last  *structpb.Struct
	fail  string
	empty bool
}

func (f *fakeAssistant) Reply(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.last = in
	if f.fail != "" {
		return structpb.NewStruct(map[string]interface{}{"error": f.fail})
	}
	if f.empty {
		return structpb.NewStruct(map[string]interface{}{})
	}
	text := in.GetFields()["text"].GetStringValue()
	return structpb.NewStruct(map[string]interface{}{"reply": "noted: " + text})
}

var assistantServiceDesc = grpc.ServiceDesc{
	ServiceName: "healthjournal.assistant.v1.Assistant",
	HandlerType: (*assistantServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Reply",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				return srv.(assistantServer).Reply(ctx, in)
			},
		},
	},
	Streams: []grpc.StreamDesc{},
}

func startFakeAssistant(t *testing.T, impl *fakeAssistant) *GrpcReplier {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&assistantServiceDesc, impl)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cfg := DefaultGrpcReplierConfig("passthrough:///bufnet")
	cfg.ConnectTimeout = 2 * time.Second
	r, err := NewGrpcReplier(cfg, nil, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("NewGrpcReplier failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestGrpcReplierRoundTrip(t *testing.T) {
	t.Parallel()

	impl := &fakeAssistant{}
	r := startFakeAssistant(t, impl)

	got, err := r.Reply(context.Background(), Request{
		UserID:         "user-1",
		ConversationID: "conv-1",
		Text:           "tired",
		History:        []domain.Message{{Content: "tired", IsUser: true, Timestamp: time.Unix(0, 0)}},
	})
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if got != "noted: tired" {
		t.Fatalf("unexpected reply %q", got)
	}

	fields := impl.last.GetFields()
	if fields["conversation_id"].GetStringValue() != "conv-1" {
		t.Fatalf("conversation id not sent: %v", fields)
	}
	if n := len(fields["history"].GetListValue().GetValues()); n != 1 {
		t.Fatalf("expected one history entry, got %d", n)
	}
}

func TestGrpcReplierSurfacesRemoteError(t *testing.T) {
	t.Parallel()

	r := startFakeAssistant(t, &fakeAssistant{fail: "model overloaded"})

	_, err := r.Reply(context.Background(), Request{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestGrpcReplierEmptyReplyIsError(t *testing.T) {
	t.Parallel()

	r := startFakeAssistant(t, &fakeAssistant{empty: true})

	if _, err := r.Reply(context.Background(), Request{Text: "x"}); !errors.Is(err, errEmptyReply) {
		t.Fatalf("expected errEmptyReply, got %v", err)
	}
}

func TestGrpcCancellationDoesNotTripBreaker(t *testing.T) {
	t.Parallel()

	b := NewBreaker(startFakeAssistant(t, &fakeAssistant{}), DefaultBreakerConfig("grpc"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 10; i++ {
		_, err := b.Reply(ctx, Request{Text: "x"})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("attempt %d: expected context.Canceled, got %v", i, err)
		}
	}
	if b.State() != "closed" {
		t.Fatalf("cancelled replies tripped the breaker: %s", b.State())
	}

	got, err := b.Reply(context.Background(), Request{Text: "still here"})
	if err != nil || got != "noted: still here" {
		t.Fatalf("breaker should pass live requests: %q, %v", got, err)
	}
}

func configForEcho() config.AssistantConfig {
	return config.AssistantConfig{Mode: config.AssistantEcho, ReplyDelay: 0}
}
