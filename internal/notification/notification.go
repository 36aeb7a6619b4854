// Package notification emails customers about their orders. Sends are
// fire-and-forget: callers are never blocked and never see a delivery error.
package notification

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	id "luwei/pkg/domain"
)

// Kinds label notifications in logs and metrics.
const (
	KindOrderConfirmed     = "order_confirmed"
	KindOrderStatusChanged = "order_status_changed"
)

// Line is one row of an order as shown in an email.
type Line struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// OrderConfirmation is sent after a successful checkout.
type OrderConfirmation struct {
	OrderID  id.OrderID
	To       string
	Name     string
	Lines    []Line
	Total    decimal.Decimal
	PlacedAt time.Time
}

// StatusChange is sent after an operator moves an order to a new status.
type StatusChange struct {
	OrderID   id.OrderID
	To        string
	Name      string
	From      string
	Status    string
	Total     decimal.Decimal
	ChangedAt time.Time
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
