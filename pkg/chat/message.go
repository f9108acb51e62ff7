package chat

import (
	"time"

	"github.com/google/uuid"
)

// Author identifies who produced a message.
type Author string

const (
	AuthorUser        Author = "user"
	AuthorAssistant   Author = "assistant"
	AuthorCounterpart Author = "counterpart"
)

// Message is a single chat entry. Immutable once created; the log only
// ever appends.
type Message struct {
	ID            string    `json:"id"`
	Author        Author    `json:"author"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
	HasAttachment bool      `json:"has_attachment,omitempty"`
	IsVoice       bool      `json:"is_voice,omitempty"`
}

// NewMessage creates a message with a fresh id and the current time.
func NewMessage(author Author, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Author:    author,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}
