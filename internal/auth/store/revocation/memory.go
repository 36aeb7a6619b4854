package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemory is a process-local denylist for tests and single-instance development.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	clock   Clock
}

func NewInMemory(clock Clock) *InMemory {
	if clock == nil {
		clock = time.Now
	}
	return &InMemory{entries: make(map[string]time.Time), clock: clock}
}

func (s *InMemory) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	expiresAt := s.clock().Add(ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.entries[jti]; !ok || expiresAt.After(current) {
		s.entries[jti] = expiresAt
	}
	return nil
}

func (s *InMemory) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expiresAt, ok := s.entries[jti]
	return ok && s.clock().Before(expiresAt), nil
}

// PurgeExpired drops lapsed entries.
func (s *InMemory) PurgeExpired(_ context.Context) (int64, error) {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for jti, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, jti)
			n++
		}
	}
	return n, nil
}
