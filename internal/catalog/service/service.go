// Package service manages the menu.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"luwei/internal/catalog/models"
	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/platform/audit"
	"luwei/pkg/requestcontext"
)

type Store interface {
	List(ctx context.Context, includeUnavailable bool) ([]*models.Product, error)
	Upsert(ctx context.Context, products []*models.Product) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// MaxUpsertBatch bounds a single menu edit.
const MaxUpsertBatch = 200

type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProductInput is one entry of a menu edit. A nil IsAvailable means available.
type ProductInput struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Image       string
	IsAvailable *bool
}

// List returns the menu. Customers only see available products.
func (s *Service) List(ctx context.Context, includeUnavailable bool) ([]*models.Product, error) {
	products, err := s.store.List(ctx, includeUnavailable)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list products")
	}
	return products, nil
}

// Upsert validates every input before writing any of them.
func (s *Service) Upsert(ctx context.Context, inputs []ProductInput) ([]*models.Product, error) {
	if len(inputs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one product is required")
	}
	if len(inputs) > MaxUpsertBatch {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d products per request", MaxUpsertBatch))
	}

	now := requestcontext.Now(ctx)
	seen := make(map[id.ProductID]struct{}, len(inputs))
	products := make([]*models.Product, 0, len(inputs))
	for _, in := range inputs {
		pid, err := id.ParseProductID(in.ID)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[pid]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, "duplicate product id "+string(pid))
		}
		seen[pid] = struct{}{}

		available := true
		if in.IsAvailable != nil {
			available = *in.IsAvailable
		}
		p := &models.Product{
			ID:          pid,
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Image:       in.Image,
			IsAvailable: available,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		p.Normalize()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := s.store.Upsert(ctx, products); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save products")
	}

	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = string(p.ID)
	}
	if s.auditPublisher != nil {
		err := s.auditPublisher.Emit(ctx, audit.Event{
			Type:      audit.EventProductsUpserted,
			AccountID: requestcontext.AccountID(ctx),
			Details:   map[string]string{"product_ids": strings.Join(ids, ",")},
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(audit.EventProductsUpserted), "error", err)
		}
	}
	return products, nil
}
