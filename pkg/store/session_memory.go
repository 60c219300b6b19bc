package store

import (
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in-process (single instance only).
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]memorySession
}

type memorySession struct {
	userID  string
	expires time.Time
}

// NewMemorySessionStore builds an in-memory session store. A zero ttl never expires.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, sessions: make(map[string]memorySession)}
}

func (s *MemorySessionStore) NewSession(userID string) (string, error) {
	token := randomHexID(24)
	sess := memorySession{userID: userID}
	if s.ttl > 0 {
		sess.expires = time.Now().Add(s.ttl)
	}
	s.mu.Lock()
	s.sessions[token] = sess
	s.mu.Unlock()
	return token, nil
}

func (s *MemorySessionStore) GetUserIDByToken(token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return "", false, nil
	}
	if !sess.expires.IsZero() && time.Now().After(sess.expires) {
		delete(s.sessions, token)
		return "", false, nil
	}
	return sess.userID, true, nil
}

func (s *MemorySessionStore) DeleteSession(token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}
