package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"luwei/internal/notification"
	"luwei/internal/order/models"
	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/platform/audit"
	"luwei/pkg/platform/sentinel"
	"luwei/pkg/requestcontext"
)

// Transition moves an order to target. The row is locked for the check and the
// update; the customer is notified after commit.
func (s *Service) Transition(ctx context.Context, orderID id.OrderID, target string) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Transition")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID.String()))

	order, from, err := s.transition(ctx, orderID, target)
	if err != nil {
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}

	s.metrics.IncrementOrderTransitions(string(from), string(order.Status))
	s.logAudit(ctx, audit.Event{
		Type:      audit.EventOrderStatusChanged,
		AccountID: requestcontext.AccountID(ctx),
		Subject:   order.ID.String(),
		Details: map[string]string{
			"from":  string(from),
			"to":    string(order.Status),
			"owner": order.AccountID.String(),
		},
	})
	s.notifyStatus(ctx, order, from)
	return order, nil
}

func (s *Service) transition(ctx context.Context, orderID id.OrderID, target string) (*models.Order, models.Status, error) {
	if orderID.IsNil() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "order id is required")
	}
	to, err := models.ParseStatus(target)
	if err != nil {
		return nil, "", err
	}
	if to == models.StatusPending {
		return nil, "", dErrors.New(dErrors.CodeValidation, "orders cannot return to pending")
	}

	var (
		order *models.Order
		from  models.Status
	)
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.store.FindForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(to) {
			return dErrors.New(dErrors.CodeInvalidState,
				"order "+orderID.String()+" cannot move from "+string(current.Status)+" to "+string(to))
		}
		now := requestcontext.Now(ctx)
		if err := s.store.UpdateStatus(ctx, orderID, to, now); err != nil {
			return err
		}
		from = current.Status
		current.Status = to
		current.UpdatedAt = now
		order = current
		return nil
	})
	if err != nil {
		var de *dErrors.Error
		switch {
		case errors.As(err, &de):
			return nil, "", err
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, "", dErrors.New(dErrors.CodeNotFound, "order not found")
		default:
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to update order status")
		}
	}

	s.logger.InfoContext(ctx, "order status changed",
		"order_id", orderID.String(),
		"from", string(from),
		"to", string(to),
		"request_id", requestcontext.RequestID(ctx),
	)
	return order, from, nil
}

// notifyStatus looks up the owner and hands the email to the notifier. Lookup
// failures are logged; the status change already stands.
func (s *Service) notifyStatus(ctx context.Context, order *models.Order, from models.Status) {
	owner, err := s.accounts.FindByID(ctx, order.AccountID)
	if err != nil {
		s.logger.WarnContext(ctx, "status notification skipped: owner lookup failed",
			"order_id", order.ID.String(),
			"account_id", order.AccountID.String(),
			"error", err,
		)
		return
	}
	s.notifier.OrderStatusChanged(ctx, notification.StatusChange{
		OrderID:   order.ID,
		To:        owner.Email,
		Name:      owner.Name,
		From:      string(from),
		Status:    string(order.Status),
		Total:     order.TotalAmount,
		ChangedAt: order.UpdatedAt,
	})
}
