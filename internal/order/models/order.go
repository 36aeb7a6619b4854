// Package models defines orders and their line items.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	authmodels "luwei/internal/auth/models"
	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
)

// Order is a committed purchase. Line items never change after checkout; only
// the status moves.
type Order struct {
	ID          id.OrderID
	AccountID   id.AccountID
	Status      Status
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Items       []LineItem
}

// LineItem is one product at the price it had when the order was placed.
// ProductName and ProductImage are filled on read from the current catalog.
type LineItem struct {
	ID           id.LineItemID
	OrderID      id.OrderID
	ProductID    id.ProductID
	Quantity     int
	UnitPrice    decimal.Decimal
	CreatedAt    time.Time
	ProductName  string
	ProductImage string
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// OrderWithOwner is an order joined with the account that placed it.
type OrderWithOwner struct {
	*Order
	Owner authmodels.Contact
}

const (
	// MaxLineQuantity caps the quantity of a single cart line.
	MaxLineQuantity = 999
)

// MaxOrderTotal is the largest total the orders table can hold (NUMERIC(12,2)).
var MaxOrderTotal = decimal.RequireFromString("9999999999.99")

// PricedLine is a validated cart line with the price captured at checkout.
type PricedLine struct {
	ProductID id.ProductID
	Quantity  int
	UnitPrice decimal.Decimal
}

// NewOrder builds a pending order from priced lines. The total is the sum of
// the line subtotals.
func NewOrder(accountID id.AccountID, lines []PricedLine, now time.Time) (*Order, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "account id required")
	}
	if len(lines) == 0 {
		return nil, dErrors.New(dErrors.CodeEmptyCart, "cart is empty")
	}
	o := &Order{
		ID:          id.NewOrderID(),
		AccountID:   accountID,
		Status:      StatusPending,
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
		Items:       make([]LineItem, 0, len(lines)),
	}
	for _, l := range lines {
		if l.Quantity <= 0 || l.Quantity > MaxLineQuantity {
			return nil, dErrors.New(dErrors.CodeValidation, "quantity out of range for "+string(l.ProductID))
		}
		item := LineItem{
			ID:        id.NewLineItemID(),
			OrderID:   o.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.Round(2),
			CreatedAt: now,
		}
		o.Items = append(o.Items, item)
		o.TotalAmount = o.TotalAmount.Add(item.Subtotal())
	}
	o.TotalAmount = o.TotalAmount.Round(2)
	if o.TotalAmount.GreaterThan(MaxOrderTotal) {
		return nil, dErrors.New(dErrors.CodeValidation, "order total too large")
	}
	return o, nil
}

// Page bounds a listing.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Normalized clamps the page to sane bounds.
func (p Page) Normalized() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
