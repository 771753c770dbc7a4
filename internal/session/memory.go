package session

import (
	"context"
	"sync"
	"time"

	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/pkg/crypto"
)

// MemoryStore implements Store in process memory.
// This is NOT suitable for running the auth and file services as separate
// processes; use RedisStore there.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]*memoryItem
	stopCh  chan struct{}
	stopped bool
	now     func() time.Time
}

type memoryItem struct {
	identity  domain.Identity
	expiresAt time.Time
}

// NewMemoryStore creates a MemoryStore and starts its expiry sweep.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		items:  make(map[string]*memoryItem),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}

	go s.cleanupLoop(time.Minute)

	return s
}

// cleanupLoop periodically removes expired sessions.
func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for token, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, token)
		}
	}
}

// Stop stops the cleanup goroutine.
func (s *MemoryStore) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		close(s.stopCh)
		s.stopped = true
	}
}

// Create stores identity under a new token.
func (s *MemoryStore) Create(ctx context.Context, identity domain.Identity, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	token, err := crypto.GenerateToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[token] = &memoryItem{
		identity:  identity,
		expiresAt: s.now().Add(ttl),
	}

	return token, nil
}

// Get resolves a token.
func (s *MemoryStore) Get(ctx context.Context, token string) (*domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[token]
	if !exists || !s.now().Before(item.expiresAt) {
		return nil, ErrNotFound
	}

	identity := item.identity
	return &identity, nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, token)
	return nil
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

var _ Store = (*MemoryStore)(nil)
