package core

import "sync"

// Conversation is the append-only message history of a single dispatch run.
// Insertion order is causal order. A conversation is seeded with the task
// message and therefore never empty.
//
// The dispatch loop is the only writer; the mutex lets observers (HTTP
// handlers, event sinks) take snapshots while a run is in flight.
type Conversation struct {
	mu       sync.RWMutex
	messages []Message
}

// NewConversation seeds a conversation with the initial task message.
func NewConversation(task string) *Conversation {
	return NewConversationFrom(NewMessage(UserAuthor, task))
}

// NewConversationFrom seeds a conversation with one or more existing messages.
// At least one message is required; with none the conversation is seeded with
// an empty user message to keep the non-empty guarantee.
func NewConversationFrom(seed ...Message) *Conversation {
	if len(seed) == 0 {
		seed = []Message{NewMessage(UserAuthor, "")}
	}
	msgs := make([]Message, len(seed))
	copy(msgs, seed)
	return &Conversation{messages: msgs}
}

// Append adds a message to the end of the history.
func (c *Conversation) Append(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

// Messages returns a snapshot copy of the history.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Last returns the most recent message.
func (c *Conversation) Last() Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.messages[len(c.messages)-1]
}

// Task returns the seed message content.
func (c *Conversation) Task() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.messages[0].Content
}

// Contents renders the history as model contents.
func (c *Conversation) Contents() []Content {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Content, 0, len(c.messages))
	for _, m := range c.messages {
		out = append(out, m.ToContent())
	}
	return out
}
