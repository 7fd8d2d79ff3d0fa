// Package realtime streams workspace events to connected browsers over
// WebSockets.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/ashureev/healthjournal/internal/conversation"
	"github.com/coder/websocket"
)

// sendBuffer is how many events may queue for one connection before it is
// considered too slow and dropped.
const sendBuffer = 32

// Subscription is one connection's queue of pending events.
type Subscription struct {
	conn *websocket.Conn
	send chan conversation.Event
	done chan struct{}
	once sync.Once
}

func newSubscription(conn *websocket.Conn) *Subscription {
	return &Subscription{
		conn: conn,
		send: make(chan conversation.Event, sendBuffer),
		done: make(chan struct{}),
	}
}

// Events delivers queued events.
func (s *Subscription) Events() <-chan conversation.Event { return s.send }

// Done is closed when the subscription was replaced, dropped or closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) close(code websocket.StatusCode, reason string) {
	s.once.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close(code, reason)
		}
	})
}

// Hub tracks event subscriptions per user and browser tab.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*Subscription
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		active: make(map[string]map[string]*Subscription),
		logger: logger,
	}
}

// Register adds a connection for a user/session. A previous connection of
// the same session is closed.
func (h *Hub) Register(userID, sessionID string, conn *websocket.Conn) *Subscription {
	sub := newSubscription(conn)

	h.mu.Lock()
	if _, exists := h.active[userID]; !exists {
		h.active[userID] = make(map[string]*Subscription)
	}
	existing := h.active[userID][sessionID]
	h.active[userID][sessionID] = sub
	h.mu.Unlock()

	if existing != nil {
		existing.close(websocket.StatusNormalClosure, "session replaced")
	}
	h.logger.Info("Event stream registered", "user_id", userID, "session_id", sessionID)
	return sub
}

// Unregister removes sub if it is still the session's current subscription.
func (h *Hub) Unregister(userID, sessionID string, sub *Subscription) {
	h.mu.Lock()
	removed := false
	if sessions, ok := h.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == sub {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(h.active, userID)
			}
			removed = true
		}
	}
	h.mu.Unlock()

	if removed {
		h.logger.Info("Event stream unregistered", "user_id", userID, "session_id", sessionID)
	}
}

// Publish implements conversation.Publisher. It never blocks: a connection
// whose queue is full is dropped.
func (h *Hub) Publish(e conversation.Event) {
	var slow []string

	h.mu.RLock()
	for sid, sub := range h.active[e.UserID] {
		select {
		case sub.send <- e:
		default:
			slow = append(slow, sid)
		}
	}
	h.mu.RUnlock()

	for _, sid := range slow {
		h.drop(e.UserID, sid)
	}
}

func (h *Hub) drop(userID, sessionID string) {
	h.mu.Lock()
	sub := h.active[userID][sessionID]
	if sub != nil {
		delete(h.active[userID], sessionID)
		if len(h.active[userID]) == 0 {
			delete(h.active, userID)
		}
	}
	h.mu.Unlock()

	if sub != nil {
		sub.close(websocket.StatusPolicyViolation, "event queue overflow")
		h.logger.Warn("Dropped slow event stream", "user_id", userID, "session_id", sessionID)
	}
}

// CloseUser terminates every stream of a user.
func (h *Hub) CloseUser(userID string) {
	h.mu.Lock()
	sessions := h.active[userID]
	delete(h.active, userID)
	h.mu.Unlock()

	for sid, sub := range sessions {
		sub.close(websocket.StatusNormalClosure, "session closed")
		h.logger.Info("Event stream closed", "user_id", userID, "session_id", sid)
	}
}

// Connections returns the number of open streams of a user.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[userID])
}
