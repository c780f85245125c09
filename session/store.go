package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Store keeps live sessions in process memory, keyed by session ID.
type Store struct {
	mu             sync.RWMutex
	sessions       map[string]*Session
	defaultPersona string
}

func NewStore(defaultPersona string) *Store {
	return &Store{
		sessions:       make(map[string]*Session),
		defaultPersona: defaultPersona,
	}
}

func (s *Store) Create() *Session {
	session := newSession(uuid.NewString(), s.defaultPersona)

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if ok {
		session.touch()
	}
	return session, ok
}

// GetOrCreate returns the session for id, or a new session when id is
// unknown or empty. Callers must use the returned session's ID.
func (s *Store) GetOrCreate(id string) *Session {
	if id != "" {
		if session, ok := s.Get(id); ok {
			return session
		}
	}
	return s.Create()
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune drops sessions idle for longer than idle and returns how many went.
func (s *Store) Prune(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, session := range s.sessions {
		if session.LastActive().Before(cutoff) {
			delete(s.sessions, id)
			pruned++
		}
	}
	return pruned
}

// RunPruner prunes idle sessions every interval until ctx is done.
func (s *Store) RunPruner(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Prune(idle); n > 0 {
				log.WithFields(log.Fields{"module": "session", "function": "RunPruner"}).Debugf("pruned %d idle sessions", n)
			}
		}
	}
}
