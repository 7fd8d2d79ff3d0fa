package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/healthjournal/internal/conversation"
	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/ashureev/healthjournal/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestHubPublishRoutesByUser(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	a := h.Register("u1", "tab-1", nil)
	b := h.Register("u2", "tab-1", nil)

	h.Publish(conversation.Event{Type: conversation.EventConversationCreated, UserID: "u1", ConversationID: "c1"})

	select {
	case e := <-a.Events():
		if e.ConversationID != "c1" {
			t.Fatalf("unexpected event %+v", e)
		}
	default:
		t.Fatal("expected event for u1")
	}
	select {
	case e := <-b.Events():
		t.Fatalf("u2 received u1's event %+v", e)
	default:
	}
}

func TestHubRegisterReplacesSameSession(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	first := h.Register("u1", "tab-1", nil)
	second := h.Register("u1", "tab-1", nil)

	select {
	case <-first.Done():
	default:
		t.Fatal("replaced subscription should be closed")
	}

	// A stale unregister must not remove the replacement.
	h.Unregister("u1", "tab-1", first)
	if h.Connections("u1") != 1 {
		t.Fatalf("expected replacement to stay registered, got %d", h.Connections("u1"))
	}
	h.Unregister("u1", "tab-1", second)
	if h.Connections("u1") != 0 {
		t.Fatal("expected no connections")
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	slow := h.Register("u1", "tab-1", nil)
	for i := 0; i <= sendBuffer; i++ {
		h.Publish(conversation.Event{Type: conversation.EventViewChanged, UserID: "u1"})
	}

	select {
	case <-slow.Done():
	default:
		t.Fatal("expected overflowing subscriber to be dropped")
	}
	if h.Connections("u1") != 0 {
		t.Fatal("dropped subscriber still registered")
	}
}

func TestHubCloseUser(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	a := h.Register("u1", "tab-1", nil)
	b := h.Register("u1", "tab-2", nil)
	other := h.Register("u2", "tab-1", nil)

	h.CloseUser("u1")

	for _, sub := range []*Subscription{a, b} {
		select {
		case <-sub.Done():
		default:
			t.Fatal("expected subscription to be closed")
		}
	}
	select {
	case <-other.Done():
		t.Fatal("other user's stream should stay open")
	default:
	}
}

func withUser(userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := identity.WithSession(r.Context(), &identity.Session{User: domain.User{ID: userID}})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TestWebSocketStreamsSnapshotThenEvents(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	snapshot := func(userID string) any { return map[string]string{"user": userID} }
	srv := httptest.NewServer(withUser("u1", NewWebSocketHandler(hub, snapshot, "*", true, nil)))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?session_id=tab-1"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	var first struct {
		Type      string            `json:"type"`
		Workspace map[string]string `json:"workspace"`
	}
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != SnapshotEvent || first.Workspace["user"] != "u1" {
		t.Fatalf("unexpected first message %+v", first)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Connections("u1") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	hub.Publish(conversation.Event{Type: conversation.EventReplyFailed, UserID: "u1", ConversationID: "c1", Error: "assistant unavailable"})

	var ev conversation.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != conversation.EventReplyFailed || ev.ConversationID != "c1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	t.Parallel()

	h := NewWebSocketHandler(NewHub(nil), nil, "https://journal.example.com", false, nil)
	req := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	withUser("u1", h).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
