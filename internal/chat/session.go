// Package chat runs document-grounded conversations: per-session history,
// prompt assembly with retrieved context, and the answer-then-confirm
// turn protocol.
package chat

import (
	"sync"
	"time"

	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/loader"
)

// State is the confirmation state of a session.
type State int

const (
	// StateIdle accepts a new question.
	StateIdle State = iota
	// StateAwaitingConfirmation waits for a yes/no to "Do you want more info?".
	StateAwaitingConfirmation
)

func (s State) String() string {
	switch s {
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return "idle"
	}
}

// Conversation is an append-only message history. The first message, if
// any, is the system message.
type Conversation struct {
	msgs []llm.Message
}

// Append adds a message at the end.
func (c *Conversation) Append(m llm.Message) {
	c.msgs = append(c.msgs, m)
}

// Len is the number of messages.
func (c *Conversation) Len() int { return len(c.msgs) }

// Messages returns a copy of the history.
func (c *Conversation) Messages() []llm.Message {
	out := make([]llm.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// truncate drops messages appended after the history had n entries.
func (c *Conversation) truncate(n int) {
	if n < len(c.msgs) {
		c.msgs = c.msgs[:n]
	}
}

// Session is one user's conversation. Its methods are safe for concurrent
// use; turns on the same session run one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	conv         Conversation
	state        State
	doc          *loader.Document
	lastQuestion string
}

// NewSession starts a conversation seeded with systemPrompt. An empty
// prompt leaves the history empty.
func NewSession(id, systemPrompt string) *Session {
	s := &Session{ID: id, CreatedAt: time.Now()}
	if systemPrompt != "" {
		s.conv.Append(llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	return s
}

// Messages returns a copy of the conversation history.
func (s *Session) Messages() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Messages()
}

// State returns the current confirmation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetDocument attaches an uploaded document to every following turn.
// A nil document detaches it.
func (s *Session) SetDocument(doc *loader.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
}

// Document returns the attached document, if any.
func (s *Session) Document() *loader.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}
