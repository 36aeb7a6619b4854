package service

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	authmodels "luwei/internal/auth/models"
	catalogmodels "luwei/internal/catalog/models"
	"luwei/internal/notification"
	"luwei/internal/order/models"
	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/platform/audit"
	"luwei/pkg/platform/sentinel"
	"luwei/pkg/requestcontext"
)

// CheckoutItem is one cart line as submitted.
type CheckoutItem struct {
	ProductID string
	Quantity  int
}

// CheckoutResult identifies the placed order.
type CheckoutResult struct {
	OrderID     id.OrderID
	TotalAmount decimal.Decimal
	Status      models.Status
}

// Checkout prices the cart against the current catalog and places a pending
// order with all its line items in one transaction. Either every line is
// orderable or nothing is written.
func (s *Service) Checkout(ctx context.Context, accountID id.AccountID, items []CheckoutItem) (*CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout")
	defer span.End()

	order, account, err := s.checkout(ctx, accountID, items)
	if err != nil {
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("order_id", order.ID.String()),
		attribute.Int("lines", len(order.Items)),
	)

	s.metrics.IncrementOrdersCreated()
	s.logAudit(ctx, audit.Event{
		Type:      audit.EventOrderCreated,
		AccountID: accountID,
		Subject:   order.ID.String(),
		Details:   map[string]string{"total_amount": order.TotalAmount.StringFixed(2)},
	})
	s.notifier.OrderConfirmed(ctx, confirmation(order, account))

	return &CheckoutResult{OrderID: order.ID, TotalAmount: order.TotalAmount, Status: order.Status}, nil
}

func (s *Service) checkout(ctx context.Context, accountID id.AccountID, items []CheckoutItem) (*models.Order, *authmodels.Account, error) {
	if accountID.IsNil() {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if len(items) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeEmptyCart, "cart is empty")
	}
	if len(items) > MaxCartLines {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "too many cart lines")
	}

	productIDs := make([]id.ProductID, len(items))
	var distinct []id.ProductID
	for i, item := range items {
		pid, err := id.ParseProductID(item.ProductID)
		if err != nil {
			return nil, nil, dErrors.New(dErrors.CodeValidation, "cart line "+strconv.Itoa(i+1)+": invalid product id")
		}
		if item.Quantity <= 0 {
			return nil, nil, dErrors.New(dErrors.CodeValidation, "cart line "+strconv.Itoa(i+1)+": quantity must be positive")
		}
		if item.Quantity > models.MaxLineQuantity {
			return nil, nil, dErrors.New(dErrors.CodeValidation, "cart line "+strconv.Itoa(i+1)+": quantity exceeds "+strconv.Itoa(models.MaxLineQuantity))
		}
		productIDs[i] = pid
		if !slices.Contains(distinct, pid) {
			distinct = append(distinct, pid)
		}
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	products, err := s.catalog.FindByIDs(ctx, distinct)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load products")
	}
	if err := checkOrderable(distinct, products); err != nil {
		return nil, nil, err
	}

	lines := make([]models.PricedLine, len(items))
	for i, item := range items {
		lines[i] = models.PricedLine{
			ProductID: productIDs[i],
			Quantity:  item.Quantity,
			UnitPrice: products[productIDs[i]].Price,
		}
	}
	order, err := models.NewOrder(accountID, lines, requestcontext.Now(ctx))
	if err != nil {
		return nil, nil, err
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Create(ctx, order)
	})
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to place order")
	}

	for i := range order.Items {
		p := products[order.Items[i].ProductID]
		order.Items[i].ProductName = p.Name
		order.Items[i].ProductImage = p.Image
	}
	s.logger.InfoContext(ctx, "order placed",
		"order_id", order.ID.String(),
		"account_id", accountID.String(),
		"total_amount", order.TotalAmount.StringFixed(2),
		"request_id", requestcontext.RequestID(ctx),
	)
	return order, account, nil
}

// checkOrderable reports every missing product first, then every unavailable one.
func checkOrderable(ids []id.ProductID, products map[id.ProductID]*catalogmodels.Product) error {
	var missing, unavailable []string
	for _, pid := range ids {
		p, ok := products[pid]
		switch {
		case !ok:
			missing = append(missing, string(pid))
		case !p.IsAvailable:
			unavailable = append(unavailable, string(pid))
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return dErrors.New(dErrors.CodeUnknownProduct, "unknown products: "+strings.Join(missing, ", "))
	}
	if len(unavailable) > 0 {
		slices.Sort(unavailable)
		return dErrors.New(dErrors.CodeProductUnavailable, "products unavailable: "+strings.Join(unavailable, ", "))
	}
	return nil
}

func confirmation(o *models.Order, a *authmodels.Account) notification.OrderConfirmation {
	lines := make([]notification.Line, len(o.Items))
	for i, item := range o.Items {
		name := item.ProductName
		if name == "" {
			name = string(item.ProductID)
		}
		lines[i] = notification.Line{
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		}
	}
	return notification.OrderConfirmation{
		OrderID:  o.ID,
		To:       a.Email,
		Name:     a.Name,
		Lines:    lines,
		Total:    o.TotalAmount,
		PlacedAt: o.CreatedAt,
	}
}
