package store

import (
	"context"
	"sort"
	"sync"

	"luwei/internal/catalog/models"
	id "luwei/pkg/domain"
)

// InMemoryStore keeps the menu in a map. Used by tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	products map[id.ProductID]models.Product
}

func NewInMemory(seed ...*models.Product) *InMemoryStore {
	s := &InMemoryStore{products: make(map[id.ProductID]models.Product)}
	for _, p := range seed {
		s.products[p.ID] = *p
	}
	return s
}

func (s *InMemoryStore) FindByIDs(_ context.Context, ids []id.ProductID) (map[id.ProductID]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.ProductID]*models.Product, len(ids))
	for _, pid := range ids {
		if p, ok := s.products[pid]; ok {
			out[pid] = &p
		}
	}
	return out, nil
}

func (s *InMemoryStore) List(_ context.Context, includeUnavailable bool) ([]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Product, 0, len(s.products))
	for _, p := range s.products {
		if !includeUnavailable && !p.IsAvailable {
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, products []*models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		stored := *p
		if existing, ok := s.products[p.ID]; ok {
			stored.CreatedAt = existing.CreatedAt
		}
		s.products[p.ID] = stored
	}
	return nil
}
