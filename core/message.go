package core

import (
	"fmt"
	"time"
)

const (
	// SystemAuthor is the reserved author for system-origin messages.
	SystemAuthor = "system"
	// UserAuthor authors the task message a run is seeded with.
	UserAuthor = "user"
)

// Message is one turn's contribution to a conversation. It is a value type;
// once appended it is never modified.
type Message struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message authored by author.
func NewMessage(author, content string) Message {
	return Message{
		ID:        NewID(),
		Author:    author,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// IsSystem reports whether the message carries the system sentinel author.
func (m Message) IsSystem() bool { return m.Author == SystemAuthor }

// ToContent renders the message for a model request. Worker output is handed
// back to models as user turns prefixed with the worker name so the model can
// tell team members apart.
func (m Message) ToContent() Content {
	switch m.Author {
	case SystemAuthor:
		return NewTextContent("system", m.Content)
	case UserAuthor, "":
		return NewTextContent("user", m.Content)
	default:
		return NewTextContent("user", fmt.Sprintf("%s: %s", m.Author, m.Content))
	}
}
