package session

import (
	"context"
	"sync"

	"github.com/hupe1980/agentlauncher/core"
)

// InMemoryStore is a volatile SessionStore keeping each session's messages
// in a process local map. It is safe for concurrent access and best suited
// for tests, the CLI and ephemeral demo servers. Loaded slices are copies so
// callers cannot mutate the stored history.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]core.Message
}

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]core.Message)}
}

// Load returns a copy of the session's messages. Unknown sessions are empty.
func (s *InMemoryStore) Load(_ context.Context, sessionID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.CloneMessages(s.sessions[sessionID]), nil
}

// Append adds msgs to the end of the session, creating it lazily.
func (s *InMemoryStore) Append(_ context.Context, sessionID string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msgs...)
	return nil
}

// Sessions returns the ids of all sessions holding at least one message.
func (s *InMemoryStore) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close drops all sessions.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string][]core.Message)
	return nil
}
