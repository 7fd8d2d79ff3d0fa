package conversation

import (
	"time"

	"github.com/ashureev/healthjournal/internal/domain"
)

// EventType names a workspace state change.
type EventType string

const (
	EventConversationCreated  EventType = "conversation.created"
	EventConversationSelected EventType = "conversation.selected"
	EventConversationDeleted  EventType = "conversation.deleted"
	EventMessageAppended      EventType = "message.appended"
	EventReplyFailed          EventType = "reply.failed"
	EventViewChanged          EventType = "view.changed"
)

// Event describes one state change of a user's workspace.
type Event struct {
	Type           EventType       `json:"type"`
	UserID         string          `json:"-"`
	ConversationID string          `json:"conversation_id,omitempty"`
	ActiveID       string          `json:"active_id,omitempty"`
	Title          string          `json:"title,omitempty"`
	Message        *domain.Message `json:"message,omitempty"`
	View           View            `json:"view,omitempty"`
	Error          string          `json:"error,omitempty"`
	At             time.Time       `json:"at"`
}

// Publisher receives workspace events. Publish must not block for long: it is
// called outside the manager lock but on the caller's goroutine.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish calls f.
func (f PublisherFunc) Publish(e Event) { f(e) }

// Publishers fans an event out to several publishers in order.
type Publishers []Publisher

// Publish forwards e to every publisher.
func (ps Publishers) Publish(e Event) {
	for _, p := range ps {
		if p != nil {
			p.Publish(e)
		}
	}
}

type discard struct{}

func (discard) Publish(Event) {}
