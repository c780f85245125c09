// Package conversation tracks one chat session's messages and the model
// context threaded through it.
package conversation

import (
	"errors"
	"time"
)

var ErrNoContext = errors.New("conversation context has not been established")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// State is owned by a single session and is not safe for concurrent use.
type State struct {
	messages []Message
	context  *Context
}

func NewState() *State {
	return &State{}
}

func (s *State) AppendUser(text string) {
	s.append(RoleUser, text)
}

func (s *State) AppendAssistant(text string) {
	s.append(RoleAssistant, text)
}

func (s *State) append(role Role, text string) {
	s.messages = append(s.messages, Message{
		Role:      role,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	})
}

// EnsureContext seeds the model context from the persona prompt and the first
// user utterance. It reports whether a new context was created; an existing
// context is left untouched.
func (s *State) EnsureContext(personaPrompt, firstUserText string) bool {
	if s.context != nil {
		return false
	}
	s.context = NewContext(personaPrompt, firstUserText)
	return true
}

// UpdateContext appends a follow-up user utterance to the existing context.
func (s *State) UpdateContext(userText string) error {
	if s.context == nil {
		return ErrNoContext
	}
	s.context.AddUserInput(userText)
	return nil
}

// RecordResponse stores the model's reply in the context so later turns see it.
func (s *State) RecordResponse(text string) error {
	if s.context == nil {
		return ErrNoContext
	}
	s.context.AddResponse(text)
	return nil
}

func (s *State) Clear() {
	s.messages = nil
	s.context = nil
}

func (s *State) HasContext() bool {
	return s.context != nil
}

// Context returns the model context, or nil before the first user turn.
func (s *State) Context() *Context {
	return s.context
}

func (s *State) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
