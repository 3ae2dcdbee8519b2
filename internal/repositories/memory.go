package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/arkamarket/checkout/internal/domain"
)

// MemorySessionStore keeps wizard sessions in process memory. Sessions
// are short-lived and instance-local, so no external store is involved.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.CheckoutSession
}

// NewMemorySessionStore constructs an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domain.CheckoutSession)}
}

// Create implements the SessionStore interface.
func (s *MemorySessionStore) Create(_ context.Context, session domain.CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	return nil
}

// Get implements the SessionStore interface.
func (s *MemorySessionStore) Get(_ context.Context, id string) (domain.CheckoutSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.CheckoutSession{}, ErrSessionNotFound
	}
	return session, nil
}

// Save implements the SessionStore interface.
func (s *MemorySessionStore) Save(_ context.Context, session domain.CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return ErrSessionNotFound
	}
	s.sessions[session.ID] = session
	return nil
}

// Delete implements the SessionStore interface.
func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// PurgeExpired removes sessions past their expiry deadline.
func (s *MemorySessionStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// MemorySnapshotStore is an in-memory CartSnapshotStore used in tests
// and local development without Redis.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.CartSnapshot
}

// NewMemorySnapshotStore constructs an empty snapshot store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snapshots: make(map[string]domain.CartSnapshot)}
}

// Load implements the CartSnapshotStore interface.
func (s *MemorySnapshotStore) Load(_ context.Context, userID string) (domain.CartSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[userID]
	if !ok {
		return domain.CartSnapshot{}, ErrSnapshotNotFound
	}
	return snapshot, nil
}

// Save implements the CartSnapshotStore interface.
func (s *MemorySnapshotStore) Save(_ context.Context, userID string, snapshot domain.CartSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[userID] = snapshot
	return nil
}

// Delete implements the CartSnapshotStore interface.
func (s *MemorySnapshotStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, userID)
	return nil
}
