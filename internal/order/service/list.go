package service

import (
	"context"

	"luwei/internal/order/models"
	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
)

// ListForAccount returns the caller's own orders, oldest first.
func (s *Service) ListForAccount(ctx context.Context, accountID id.AccountID, page models.Page) ([]*models.Order, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	orders, err := s.store.ListByAccount(ctx, accountID, page.Normalized())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list orders")
	}
	return orders, nil
}

// ListAll returns every order with its owner, newest first. Operator only;
// the caller's privilege is checked at the HTTP layer.
func (s *Service) ListAll(ctx context.Context, page models.Page) ([]*models.OrderWithOwner, error) {
	orders, err := s.store.ListAll(ctx, page.Normalized())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list orders")
	}
	return orders, nil
}
