package session

import (
	"context"
	"sync"
	"time"

	"github.com/nimbusworks/taskhive/internal/tasks/domain"
)

// MemoryStore keeps sessions in process memory. Intended for local
// development and tests; sessions are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	sess    domain.Session
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, ErrNoSession
	}
	if time.Now().After(entry.expires) {
		delete(s.sessions, id)
		return domain.Session{}, ErrNoSession
	}
	return entry.sess, nil
}

func (s *MemoryStore) Set(_ context.Context, id string, sess domain.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = memoryEntry{sess: sess, expires: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }
