package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	authmodels "luwei/internal/auth/models"
	catalogmodels "luwei/internal/catalog/models"
	"luwei/internal/order/models"
	id "luwei/pkg/domain"
	"luwei/pkg/platform/sentinel"
)

// AccountFinder resolves order owners for ListAll.
type AccountFinder interface {
	FindByID(ctx context.Context, accountID id.AccountID) (*authmodels.Account, error)
}

// ProductFinder fills product names and images on read.
type ProductFinder interface {
	FindByIDs(ctx context.Context, ids []id.ProductID) (map[id.ProductID]*catalogmodels.Product, error)
}

// InMemoryStore mirrors PostgresStore for tests and local runs. Transactions
// are serialized and roll back by restoring a snapshot.
type InMemoryStore struct {
	txMu sync.Mutex

	mu     sync.RWMutex
	orders map[id.OrderID]*models.Order
	seq    map[id.OrderID]int

	next     int
	accounts AccountFinder
	products ProductFinder
}

type MemoryOption func(*InMemoryStore)

func WithAccounts(accounts AccountFinder) MemoryOption {
	return func(s *InMemoryStore) { s.accounts = accounts }
}

func WithProducts(products ProductFinder) MemoryOption {
	return func(s *InMemoryStore) { s.products = products }
}

func NewInMemory(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		orders: make(map[id.OrderID]*models.Order),
		seq:    make(map[id.OrderID]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type memTxKey struct{}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	orders := make(map[id.OrderID]*models.Order, len(s.orders))
	for k, v := range s.orders {
		orders[k] = v
	}
	seq := make(map[id.OrderID]int, len(s.seq))
	for k, v := range s.seq {
		seq[k] = v
	}
	next := s.next
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.mu.Lock()
		s.orders, s.seq, s.next = orders, seq, next
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *InMemoryStore) Create(ctx context.Context, o *models.Order) error {
	if ctx.Value(memTxKey{}) == nil {
		return s.RunInTx(ctx, func(ctx context.Context) error { return s.Create(ctx, o) })
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return fmt.Errorf("create order %s: %w", o.ID, sentinel.ErrConflict)
	}
	s.orders[o.ID] = cloneOrder(o)
	s.seq[o.ID] = s.next
	s.next++
	return nil
}

func (s *InMemoryStore) FindForUpdate(_ context.Context, orderID id.OrderID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, sentinel.ErrNotFound)
	}
	header := *o
	header.Items = nil
	return &header, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, orderID id.OrderID, status models.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, sentinel.ErrNotFound)
	}
	updated := cloneOrder(o)
	updated.Status = status
	updated.UpdatedAt = now
	s.orders[orderID] = updated
	return nil
}

func (s *InMemoryStore) ListByAccount(ctx context.Context, accountID id.AccountID, page models.Page) ([]*models.Order, error) {
	s.mu.RLock()
	var out []*models.Order
	for _, o := range s.sorted(false) {
		if o.AccountID == accountID {
			out = append(out, cloneOrder(o))
		}
	}
	s.mu.RUnlock()

	out = paginate(out, page.Normalized())
	if err := s.decorate(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *InMemoryStore) ListAll(ctx context.Context, page models.Page) ([]*models.OrderWithOwner, error) {
	s.mu.RLock()
	var orders []*models.Order
	for _, o := range s.sorted(true) {
		orders = append(orders, cloneOrder(o))
	}
	s.mu.RUnlock()

	orders = paginate(orders, page.Normalized())
	if err := s.decorate(ctx, orders); err != nil {
		return nil, err
	}
	out := make([]*models.OrderWithOwner, 0, len(orders))
	for _, o := range orders {
		owner := authmodels.Contact{ID: o.AccountID}
		if s.accounts != nil {
			a, err := s.accounts.FindByID(ctx, o.AccountID)
			if err != nil {
				return nil, fmt.Errorf("list all orders: %w", err)
			}
			owner = a.Contact()
		}
		out = append(out, &models.OrderWithOwner{Order: o, Owner: owner})
	}
	return out, nil
}

// Count returns the number of stored orders.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// sorted orders by creation time, then insertion order. Callers hold mu.
func (s *InMemoryStore) sorted(newestFirst bool) []*models.Order {
	out := make([]*models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b *models.Order) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = s.seq[a.ID] - s.seq[b.ID]
		}
		if newestFirst {
			return -c
		}
		return c
	})
	return out
}

func (s *InMemoryStore) decorate(ctx context.Context, orders []*models.Order) error {
	if s.products == nil {
		return nil
	}
	var ids []id.ProductID
	for _, o := range orders {
		for _, item := range o.Items {
			ids = append(ids, item.ProductID)
		}
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	for _, o := range orders {
		for i := range o.Items {
			if p, ok := products[o.Items[i].ProductID]; ok {
				o.Items[i].ProductName = p.Name
				o.Items[i].ProductImage = p.Image
			}
		}
	}
	return nil
}

func paginate(orders []*models.Order, page models.Page) []*models.Order {
	if page.Offset >= len(orders) {
		return nil
	}
	end := min(page.Offset+page.Limit, len(orders))
	return orders[page.Offset:end]
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	if c.Items == nil {
		c.Items = []models.LineItem{}
	}
	return &c
}
