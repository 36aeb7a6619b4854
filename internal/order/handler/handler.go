// Package handler serves checkout, order history and the operator order desk.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"luwei/internal/order/models"
	"luwei/internal/order/service"
	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/platform/httputil"
	"luwei/pkg/requestcontext"
)

type Service interface {
	Checkout(ctx context.Context, accountID id.AccountID, items []service.CheckoutItem) (*service.CheckoutResult, error)
	Transition(ctx context.Context, orderID id.OrderID, target string) (*models.Order, error)
	ListForAccount(ctx context.Context, accountID id.AccountID, page models.Page) ([]*models.Order, error)
	ListAll(ctx context.Context, page models.Page) ([]*models.OrderWithOwner, error)
}

type Middleware = func(http.Handler) http.Handler

type Handler struct {
	orders         Service
	logger         *slog.Logger
	requireSession Middleware
	operatorOnly   Middleware
}

// New creates a Handler. requireSession guards every route; operatorOnly
// additionally guards the order desk.
func New(orders Service, logger *slog.Logger, requireSession, operatorOnly Middleware) *Handler {
	return &Handler{orders: orders, logger: logger, requireSession: requireSession, operatorOnly: operatorOnly}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/order", func(r chi.Router) {
		r.Use(h.requireSession)
		r.Post("/checkout", h.HandleCheckout)
		r.Get("/monitor", h.HandleMonitor)
		r.Post("/monitor", h.HandleMonitor)

		r.Group(func(r chi.Router) {
			r.Use(h.operatorOnly)
			r.Post("/get_all_order", h.HandleAllOrders)
			r.Post("/complete_order", h.HandleCompleteOrder)
			r.Post("/delete_order", h.HandleCancelOrder)
			r.Post("/transition", h.HandleTransition)
		})
	})
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CheckoutRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.orders.Checkout(ctx, requestcontext.AccountID(ctx), req.toItems())
	if err != nil {
		h.logWriteError(ctx, w, "checkout failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, CheckoutResponse{
		OrderID:     res.OrderID.String(),
		TotalAmount: res.TotalAmount.InexactFloat64(),
		Status:      string(res.Status),
	})
}

// HandleMonitor lists the caller's own orders.
func (h *Handler) HandleMonitor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := pageFromQuery(r)
	if err != nil {
		h.logWriteError(ctx, w, "invalid page", err)
		return
	}
	orders, err := h.orders.ListForAccount(ctx, requestcontext.AccountID(ctx), page)
	if err != nil {
		h.logWriteError(ctx, w, "failed to list orders", err)
		return
	}
	resp := OrdersResponse{Orders: make([]OrderResponse, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := pageFromQuery(r)
	if err != nil {
		h.logWriteError(ctx, w, "invalid page", err)
		return
	}
	orders, err := h.orders.ListAll(ctx, page)
	if err != nil {
		h.logWriteError(ctx, w, "failed to list all orders", err)
		return
	}
	resp := OrdersResponse{Orders: make([]OrderResponse, 0, len(orders))}
	for _, o := range orders {
		out := toOrderResponse(o.Order)
		out.Owner = &OwnerResponse{ID: o.Owner.ID.String(), Email: o.Owner.Email, Name: o.Owner.Name}
		resp.Orders = append(resp.Orders, out)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleCompleteOrder marks an order completed, or paid when asked.
func (h *Handler) HandleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(requested string) (string, error) {
		switch requested {
		case "":
			return string(models.StatusCompleted), nil
		case string(models.StatusCompleted), string(models.StatusPaid):
			return requested, nil
		default:
			return "", dErrors.New(dErrors.CodeValidation, "status must be completed or paid")
		}
	})
}

// HandleCancelOrder cancels an order. The row is kept.
func (h *Handler) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(string) (string, error) {
		return string(models.StatusCancelled), nil
	})
}

func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(requested string) (string, error) {
		if requested == "" {
			return "", dErrors.New(dErrors.CodeBadRequest, "status is required")
		}
		return requested, nil
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, target func(requested string) (string, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	orderID, err := id.ParseOrderID(req.OrderID)
	if err != nil {
		h.logWriteError(ctx, w, "invalid order id", err)
		return
	}
	status, err := target(req.Status)
	if err != nil {
		h.logWriteError(ctx, w, "invalid status", err)
		return
	}
	order, err := h.orders.Transition(ctx, orderID, status)
	if err != nil {
		h.logWriteError(ctx, w, "order transition failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func pageFromQuery(r *http.Request) (models.Page, error) {
	var page models.Page
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer")
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, dErrors.New(dErrors.CodeBadRequest, "offset must be a non-negative integer")
		}
		page.Offset = n
	}
	return page.Normalized(), nil
}

func (h *Handler) logWriteError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	attrs := []any{"error", err, "request_id", requestcontext.RequestID(ctx)}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
