package handler

import (
	"strings"
	"time"

	"luwei/internal/order/models"
	"luwei/internal/order/service"
	dErrors "luwei/pkg/domain-errors"
)

// CheckoutLine accepts {productId, quantity} and the storefront cart's
// {meal: {id}, quantity}.
type CheckoutLine struct {
	ProductID string `json:"productId"`
	Meal      *struct {
		ID string `json:"id"`
	} `json:"meal,omitempty"`
	Quantity int `json:"quantity"`
}

type CheckoutRequest struct {
	Items []CheckoutLine `json:"items"`
}

// Validate resolves the legacy line shape. An empty cart is left for the
// service to reject with its own code.
func (r *CheckoutRequest) Validate() error {
	for i := range r.Items {
		line := &r.Items[i]
		line.ProductID = strings.TrimSpace(line.ProductID)
		if line.ProductID == "" && line.Meal != nil {
			line.ProductID = strings.TrimSpace(line.Meal.ID)
		}
	}
	return nil
}

func (r *CheckoutRequest) toItems() []service.CheckoutItem {
	items := make([]service.CheckoutItem, len(r.Items))
	for i, line := range r.Items {
		items[i] = service.CheckoutItem{ProductID: line.ProductID, Quantity: line.Quantity}
	}
	return items
}

type CheckoutResponse struct {
	OrderID     string  `json:"orderId"`
	TotalAmount float64 `json:"totalAmount"`
	Status      string  `json:"status"`
}

// TransitionRequest names an order and, where the endpoint allows it, a status.
type TransitionRequest struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func (r *TransitionRequest) Validate() error {
	r.OrderID = strings.TrimSpace(r.OrderID)
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	if r.OrderID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "orderId is required")
	}
	return nil
}

type LineItemResponse struct {
	ID           string  `json:"id"`
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	ProductImage string  `json:"productImage"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unitPrice"`
	Subtotal     float64 `json:"subtotal"`
}

type OwnerResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type OrderResponse struct {
	ID          string             `json:"id"`
	AccountID   string             `json:"accountId"`
	Status      string             `json:"status"`
	TotalAmount float64            `json:"totalAmount"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	Items       []LineItemResponse `json:"items"`
	Owner       *OwnerResponse     `json:"owner,omitempty"`
}

type OrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

func toOrderResponse(o *models.Order) OrderResponse {
	resp := OrderResponse{
		ID:          o.ID.String(),
		AccountID:   o.AccountID.String(),
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount.InexactFloat64(),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		Items:       make([]LineItemResponse, 0, len(o.Items)),
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, LineItemResponse{
			ID:           item.ID.String(),
			ProductID:    string(item.ProductID),
			ProductName:  item.ProductName,
			ProductImage: item.ProductImage,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice.InexactFloat64(),
			Subtotal:     item.Subtotal().InexactFloat64(),
		})
	}
	return resp
}
