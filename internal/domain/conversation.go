package domain

import "time"

// DefaultConversationTitle is the title of a conversation with no messages.
const DefaultConversationTitle = "New Conversation"

// titleRunes is how much of the first message becomes the title.
const titleRunes = 30

// Message is a single chat entry. Messages are never edited once appended.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is an ordered chat session. Messages are kept in display order.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy that shares no slices with c.
func (c *Conversation) Clone() Conversation {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// TitleFromMessage derives a conversation title from its first message.
func TitleFromMessage(content string) string {
	r := []rune(content)
	if len(r) > titleRunes {
		r = r[:titleRunes]
	}
	return string(r) + "..."
}
