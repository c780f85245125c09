package session

import (
	"sync"
	"sync/atomic"
	"time"

	"personabot/conversation"
)

// Session is one user's chat: the selected persona plus the conversation
// state. Its mutex serializes turns so the state keeps a single writer.
type Session struct {
	ID string

	mu         sync.Mutex
	persona    string
	state      *conversation.State
	lastActive atomic.Int64
}

func newSession(id, persona string) *Session {
	s := &Session{
		ID:      id,
		persona: persona,
		state:   conversation.NewState(),
	}
	s.touch()
	return s
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// View is a read-only copy of a session for rendering.
type View struct {
	ID       string                 `json:"id"`
	Persona  string                 `json:"persona"`
	Active   bool                   `json:"active"`
	Messages []conversation.Message `json:"messages"`
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:       s.ID,
		Persona:  s.persona,
		Active:   s.state.HasContext(),
		Messages: s.state.Messages(),
	}
}

func (s *Session) Persona() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona
}
