// Package conversation holds the shared message and file-reference models
// exchanged between the context engine components.
package conversation

import (
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation message.
type Message struct {
	// ID is the unique identifier for this message.
	ID string `json:"id"`

	// ConversationID identifies the owning conversation.
	ConversationID string `json:"conversation_id"`

	// Role is the author role (user, assistant, system).
	Role Role `json:"role"`

	// Content is the raw message text.
	Content string `json:"content"`

	// CreatedAt is the arrival timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// FileReference is a file attached to a conversation. The engine keeps the
// full content retrievable while only a reference token is surfaced in
// generated text.
type FileReference struct {
	// ID is the unique identifier for this file reference.
	ID string `json:"id"`

	// ConversationID identifies the owning conversation.
	ConversationID string `json:"conversation_id"`

	// Path is the display path of the file.
	Path string `json:"path"`

	// Content is the full file content.
	Content string `json:"content"`

	// AddedAt is the attachment timestamp.
	AddedAt time.Time `json:"added_at"`
}

// FirstSentence returns the first sentence of the message content, truncated
// to maxLen runes. Used for key points and previews.
func (m *Message) FirstSentence(maxLen int) string {
	return FirstSentence(m.Content, maxLen)
}

// FirstSentence extracts the first sentence of text, truncated to maxLen runes.
func FirstSentence(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexAny(text, ".!?\n"); idx > 0 {
		text = text[:idx+1]
	}
	runes := []rune(text)
	if maxLen > 0 && len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return text
}
