package store

import (
	"context"
	"sync"

	"jam-service/internal/models"
)

// MemoryStore keeps session aggregates in process memory. Used when no Redis
// URL is configured, and by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.GroupSession
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.GroupSession)}
}

// Create stores a new aggregate, failing if the group already has one.
func (s *MemoryStore) Create(ctx context.Context, session models.GroupSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.GroupID]; ok {
		return ErrSessionExists
	}
	s.sessions[session.GroupID] = session.Clone()
	return nil
}

// Get returns a copy of the aggregate for the group.
func (s *MemoryStore) Get(ctx context.Context, groupID string) (models.GroupSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[groupID]
	if !ok {
		return models.GroupSession{}, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Replace overwrites the stored aggregate, last writer wins. A replace
// against a destroyed session fails rather than resurrecting it.
func (s *MemoryStore) Replace(ctx context.Context, session models.GroupSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.GroupID]; !ok {
		return ErrSessionNotFound
	}
	s.sessions[session.GroupID] = session.Clone()
	return nil
}

// Exists reports whether the group has a live session.
func (s *MemoryStore) Exists(ctx context.Context, groupID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[groupID]
	return ok, nil
}

// Destroy removes the aggregate entirely.
func (s *MemoryStore) Destroy(ctx context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[groupID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, groupID)
	return nil
}
