// Package conversation keeps each user's in-memory chat workspace: the list
// of conversations, which one is active, and the replies still in flight.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/healthjournal/internal/assistant"
	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for an unknown conversation id.
	ErrNotFound = errors.New("conversation not found")
	// ErrEmptyMessage is returned when a message has no visible content.
	ErrEmptyMessage = errors.New("message content is empty")
	// ErrInvalidView is returned for a view other than chat or tracker.
	ErrInvalidView = errors.New("invalid view")
	// ErrClosed is returned once the workspace has been closed.
	ErrClosed = errors.New("workspace closed")
)

// View selects what the main panel shows.
type View string

const (
	ViewChat    View = "chat"
	ViewTracker View = "tracker"
)

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	return v == ViewChat || v == ViewTracker
}

// Workspace is a point-in-time copy of a manager's state.
type Workspace struct {
	Conversations []domain.Conversation `json:"conversations"`
	ActiveID      string                `json:"active_id"`
	View          View                  `json:"view"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher sets where events are sent.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.pub = p
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides uuid.NewString for conversation and message ids.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// WithLogger sets the logger used for reply failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

type replyScope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Manager owns one user's conversations. All methods are safe for concurrent use.
type Manager struct {
	userID  string
	replier assistant.Replier
	pub     Publisher
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger

	mu            sync.Mutex
	conversations []*domain.Conversation // newest first
	activeID      string
	view          View
	lastActive    time.Time
	replyCtx      map[string]replyScope // conversation id -> scope of its replies
	root          context.Context
	cancelRoot    context.CancelFunc
	closed        bool

	wg sync.WaitGroup
}

// NewManager creates a workspace with one empty, active conversation.
func NewManager(userID string, replier assistant.Replier, opts ...Option) *Manager {
	m := &Manager{
		userID:   userID,
		replier:  replier,
		pub:      discard{},
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   slog.Default(),
		view:     ViewChat,
		replyCtx: make(map[string]replyScope),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.root, m.cancelRoot = context.WithCancel(context.Background())

	conv := m.newConversationLocked()
	m.conversations = []*domain.Conversation{conv}
	m.activeID = conv.ID
	m.lastActive = m.now()
	return m
}

// UserID returns the owner of the workspace.
func (m *Manager) UserID() string { return m.userID }

// Create prepends a new empty conversation and makes it active.
func (m *Manager) Create() (domain.Conversation, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.Conversation{}, ErrClosed
	}
	conv := m.newConversationLocked()
	m.conversations = append([]*domain.Conversation{conv}, m.conversations...)
	m.activeID = conv.ID
	m.touchLocked()
	out := conv.Clone()
	m.mu.Unlock()

	m.publish(Event{Type: EventConversationCreated, ConversationID: out.ID, ActiveID: out.ID, Title: out.Title})
	return out, nil
}

// Select makes an existing conversation active.
func (m *Manager) Select(id string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.indexLocked(id) < 0 {
		m.mu.Unlock()
		return fmt.Errorf("select %s: %w", id, ErrNotFound)
	}
	m.activeID = id
	m.touchLocked()
	m.mu.Unlock()

	m.publish(Event{Type: EventConversationSelected, ConversationID: id, ActiveID: id})
	return nil
}

// Delete removes a conversation and cancels its pending replies. The list is
// never left empty: deleting the last conversation creates a fresh one.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	idx := m.indexLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	if rs, ok := m.replyCtx[id]; ok {
		rs.cancel()
		delete(m.replyCtx, id)
	}
	m.conversations = append(m.conversations[:idx], m.conversations[idx+1:]...)

	var created *domain.Conversation
	switch {
	case len(m.conversations) == 0:
		created = m.newConversationLocked()
		m.conversations = []*domain.Conversation{created}
		m.activeID = created.ID
	case m.activeID == id:
		m.activeID = m.conversations[0].ID
	}
	activeID := m.activeID
	m.touchLocked()
	m.mu.Unlock()

	m.publish(Event{Type: EventConversationDeleted, ConversationID: id, ActiveID: activeID})
	if created != nil {
		m.publish(Event{Type: EventConversationCreated, ConversationID: created.ID, ActiveID: activeID, Title: created.Title})
	}
	return nil
}

// Send appends a user message to the active conversation and starts the
// assistant reply in the background. The reply lands in the same
// conversation even if another one has been selected meanwhile.
func (m *Manager) Send(content string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, ErrEmptyMessage
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.Message{}, ErrClosed
	}
	conv := m.conversations[m.indexLocked(m.activeID)]
	msg := domain.Message{
		ID:        m.newID(),
		Content:   content,
		IsUser:    true,
		Timestamp: m.now(),
	}
	if len(conv.Messages) == 0 {
		conv.Title = domain.TitleFromMessage(content)
	}
	conv.Messages = append(conv.Messages, msg)

	req := assistant.Request{
		UserID:         m.userID,
		ConversationID: conv.ID,
		Text:           content,
		History:        conv.Clone().Messages,
	}
	ctx := m.replyContextLocked(conv.ID)
	title := conv.Title
	m.touchLocked()
	m.wg.Add(1)
	m.mu.Unlock()

	m.publish(Event{Type: EventMessageAppended, ConversationID: req.ConversationID, Title: title, Message: &msg})

	go m.deliver(ctx, req)
	return msg, nil
}

func (m *Manager) deliver(ctx context.Context, req assistant.Request) {
	defer m.wg.Done()

	text, err := m.replier.Reply(ctx, req)
	if ctx.Err() != nil {
		// Conversation deleted or workspace closed.
		return
	}
	if err != nil {
		m.logger.Warn("assistant reply failed",
			"user_id", m.userID,
			"conversation_id", req.ConversationID,
			"error", err)
		m.publish(Event{Type: EventReplyFailed, ConversationID: req.ConversationID, Error: err.Error()})
		return
	}

	m.mu.Lock()
	idx := m.indexLocked(req.ConversationID)
	if idx < 0 || m.closed {
		m.mu.Unlock()
		return
	}
	conv := m.conversations[idx]
	msg := domain.Message{
		ID:        m.newID(),
		Content:   text,
		IsUser:    false,
		Timestamp: m.now(),
	}
	conv.Messages = append(conv.Messages, msg)
	title := conv.Title
	m.mu.Unlock()

	m.publish(Event{Type: EventMessageAppended, ConversationID: req.ConversationID, Title: title, Message: &msg})
}

// SetView switches the main panel between chat and tracker.
func (m *Manager) SetView(v View) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidView, v)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.view = v
	m.touchLocked()
	m.mu.Unlock()

	m.publish(Event{Type: EventViewChanged, View: v})
	return nil
}

// Snapshot returns a deep copy of the workspace.
func (m *Manager) Snapshot() Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Workspace{
		Conversations: make([]domain.Conversation, 0, len(m.conversations)),
		ActiveID:      m.activeID,
		View:          m.view,
	}
	for _, c := range m.conversations {
		out.Conversations = append(out.Conversations, c.Clone())
	}
	return out
}

// Active returns a copy of the active conversation.
func (m *Manager) Active() domain.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversations[m.indexLocked(m.activeID)].Clone()
}

// LastActive reports when the workspace was last used.
func (m *Manager) LastActive() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActive
}

// Close cancels every pending reply and waits for the reply goroutines to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancelRoot()
	m.replyCtx = make(map[string]replyScope)
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Manager) newConversationLocked() *domain.Conversation {
	return &domain.Conversation{
		ID:        m.newID(),
		Title:     domain.DefaultConversationTitle,
		Messages:  []domain.Message{},
		CreatedAt: m.now(),
	}
}

func (m *Manager) replyContextLocked(id string) context.Context {
	if rs, ok := m.replyCtx[id]; ok {
		return rs.ctx
	}
	ctx, cancel := context.WithCancel(m.root)
	m.replyCtx[id] = replyScope{ctx: ctx, cancel: cancel}
	return ctx
}

func (m *Manager) indexLocked(id string) int {
	for i, c := range m.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) touchLocked() {
	m.lastActive = m.now()
}

func (m *Manager) publish(e Event) {
	e.UserID = m.userID
	if e.At.IsZero() {
		e.At = m.now()
	}
	m.pub.Publish(e)
}
