// Package service implements checkout and the order status lifecycle.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	authmodels "luwei/internal/auth/models"
	catalogmodels "luwei/internal/catalog/models"
	"luwei/internal/notification"
	"luwei/internal/order/models"
	"luwei/internal/platform/metrics"
	id "luwei/pkg/domain"
	"luwei/pkg/platform/audit"
)

// Store persists orders. Calls made with the ctx handed to RunInTx's fn share
// one transaction.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, order *models.Order) error
	FindForUpdate(ctx context.Context, orderID id.OrderID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID id.OrderID, status models.Status, now time.Time) error
	ListByAccount(ctx context.Context, accountID id.AccountID, page models.Page) ([]*models.Order, error)
	ListAll(ctx context.Context, page models.Page) ([]*models.OrderWithOwner, error)
}

// ProductCatalog supplies current price and availability.
type ProductCatalog interface {
	FindByIDs(ctx context.Context, ids []id.ProductID) (map[id.ProductID]*catalogmodels.Product, error)
}

// AccountLookup resolves the contact details notifications go to.
type AccountLookup interface {
	FindByID(ctx context.Context, accountID id.AccountID) (*authmodels.Account, error)
}

// Notifier sends customer emails. Calls must not block or fail the caller.
type Notifier interface {
	OrderConfirmed(ctx context.Context, c notification.OrderConfirmation)
	OrderStatusChanged(ctx context.Context, c notification.StatusChange)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// MaxCartLines caps the number of lines in one checkout.
const MaxCartLines = 100

// Service places orders and moves them through their lifecycle.
type Service struct {
	store    Store
	catalog  ProductCatalog
	accounts AccountLookup
	notifier Notifier

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(store Store, catalog ProductCatalog, accounts AccountLookup, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		catalog:  catalog,
		accounts: accounts,
		notifier: notifier,
		logger:   slog.Default(),
		tracer:   otel.Tracer("luwei/internal/order/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(event.Type),
			"error", err,
		)
	}
}
