package memory

import (
	"sync"

	"classroom-service/internal/app"
	"classroom-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.ClassSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.ClassSession),
	}
}

func (s *SessionStore) GetOrCreate(scope domain.SessionScope, create func() *app.ClassSession) *app.ClassSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[scope.Key()]; ok {
		return session
	}
	session := create()
	s.sessions[scope.Key()] = session
	return session
}

func (s *SessionStore) Get(scope domain.SessionScope) (*app.ClassSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[scope.Key()]
	return session, ok
}

func (s *SessionStore) Delete(scope domain.SessionScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, scope.Key())
}
