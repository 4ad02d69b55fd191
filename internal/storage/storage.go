package storage

import (
	"sort"
	"sync"
)

// SessionStore holds the live sessions of a process, keyed by session ID.
// Unlike PhotoStore it is shared between HTTP handlers and is safe for
// concurrent use.
type SessionStore[S any] struct {
	sessions map[string]S
	mu       sync.RWMutex
}

func NewSessionStore[S any]() *SessionStore[S] {
	return &SessionStore[S]{
		sessions: make(map[string]S),
	}
}

func (s *SessionStore[S]) Get(sessionID string) (S, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore[S]) Set(sessionID string, session S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = session
}

// Add stores the session unless limit sessions are already held. A limit of
// zero or less means no limit.
func (s *SessionStore[S]) Add(sessionID string, session S, limit int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sessionID]; !exists && limit > 0 && len(s.sessions) >= limit {
		return false
	}
	s.sessions[sessionID] = session
	return true
}

func (s *SessionStore[S]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// IDs returns the session IDs in lexical order
func (s *SessionStore[S]) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *SessionStore[S]) GetAll() map[string]S {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]S, len(s.sessions))
	for k, v := range s.sessions {
		result[k] = v
	}
	return result
}

// Delete removes the session and returns it, so the caller can close it
func (s *SessionStore[S]) Delete(sessionID string) (S, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, exists := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return session, exists
}
