// Package session implements server-side sessions: the stores that hold them
// and the manager that drives idle expiry and identifier rotation.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a session id is not in the store
var ErrNotFound = errors.New("session not found")

// Session is the server-side state bound to one session cookie
type Session struct {
	ID            string    `json:"id"`
	AccountID     int64     `json:"account_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	CreatedAt     time.Time `json:"created_at"`
	LastActivity  time.Time `json:"last_activity"`
	RememberToken string    `json:"remember_token,omitempty"`
}

// Store persists sessions by id
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Set(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore is a process-local Store guarded by a mutex
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Get returns a copy of the stored session
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	sess := entry.session
	return &sess, nil
}

// Set stores a copy of sess; a zero ttl keeps it until deleted
func (s *MemoryStore) Set(_ context.Context, sess *Session, ttl time.Duration) error {
	entry := memoryEntry{session: *sess}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.sessions[sess.ID] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes a session; deleting an unknown id is not an error
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired or not
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes expired sessions and returns how many were removed
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.sessions {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper sweeps expired sessions every interval until Stop is called
func (s *MemoryStore) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop ends the sweeper goroutine
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
