package account

import (
	"context"
	"fmt"
	"sync"

	"luwei/internal/auth/models"
	id "luwei/pkg/domain"
	"luwei/pkg/email"
	"luwei/pkg/platform/sentinel"
)

// InMemoryStore mirrors PostgresStore for tests and local runs. The email index
// plays the part of the unique constraint.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.AccountID]*models.Account
	byEmail map[string]id.AccountID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.AccountID]*models.Account),
		byEmail: make(map[string]id.AccountID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, a *models.Account) error {
	key := email.Normalize(a.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[key]; taken {
		return fmt.Errorf("create account %s: %w", key, sentinel.ErrConflict)
	}
	if _, taken := s.byID[a.ID]; taken {
		return fmt.Errorf("create account %s: %w", a.ID, sentinel.ErrConflict)
	}
	stored := *a
	stored.Email = key
	s.byID[a.ID] = &stored
	s.byEmail[key] = a.ID
	return nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, address string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.byEmail[email.Normalize(address)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *s.byID[accountID]
	return &found, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *a
	return &found, nil
}

// Count returns the number of stored accounts.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
