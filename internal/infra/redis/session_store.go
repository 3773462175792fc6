package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"classroom-service/internal/app"
	"classroom-service/internal/domain"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Pickers stay in a local map; their pools and timers are process state.
//   - Redis holds a liveness marker per session carrying the session info, so
//     other instances and tooling can see which periods are being run right now.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.ClassSession
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.ClassSession),
	}
}

func (s *SessionStore) GetOrCreate(scope domain.SessionScope, create func() *app.ClassSession) *app.ClassSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[scope.Key()]; ok {
		s.touch(scope)
		return session
	}
	session := create()
	s.sessions[scope.Key()] = session

	// best-effort liveness marker
	data, _ := json.Marshal(session.Info())
	if err := s.client.Set(context.Background(), s.key(scope), data, s.ttl).Err(); err != nil {
		log.WithError(err).Warn("mark session live")
	}
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
	_ = s.client.Del(context.Background(), s.key(scope)).Err()
}

func (s *SessionStore) touch(scope domain.SessionScope) {
	if s.ttl > 0 {
		_ = s.client.Expire(context.Background(), s.key(scope), s.ttl).Err()
	}
}

func (s *SessionStore) key(scope domain.SessionScope) string {
	return "classroom:session:" + scope.Key()
}
