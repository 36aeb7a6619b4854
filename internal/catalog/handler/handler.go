// Package handler serves the menu endpoints.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"luwei/internal/catalog/models"
	"luwei/internal/catalog/service"
	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/platform/httputil"
	"luwei/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, includeUnavailable bool) ([]*models.Product, error)
	Upsert(ctx context.Context, inputs []service.ProductInput) ([]*models.Product, error)
}

type Handler struct {
	catalog      Service
	logger       *slog.Logger
	operatorOnly func(http.Handler) http.Handler
}

// New creates a Handler. operatorOnly guards menu edits.
func New(catalog Service, logger *slog.Logger, operatorOnly func(http.Handler) http.Handler) *Handler {
	return &Handler{catalog: catalog, logger: logger, operatorOnly: operatorOnly}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/meal", func(r chi.Router) {
		r.Get("/fetch-meals", h.HandleFetchMeals)
		r.Post("/fetch-meals", h.HandleFetchMeals)

		r.Group(func(r chi.Router) {
			r.Use(h.operatorOnly)
			r.Get("/all-meals", h.HandleAllMeals)
			r.Post("/add-meals", h.HandleUpsertMeals)
			r.Post("/edit-meals", h.HandleUpsertMeals)
		})
	})
}

type ProductResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	IsAvailable bool    `json:"isAvailable"`
}

type MealsResponse struct {
	Meals []ProductResponse `json:"meals"`
}

func toResponse(products []*models.Product) MealsResponse {
	out := MealsResponse{Meals: make([]ProductResponse, 0, len(products))}
	for _, p := range products {
		out.Meals = append(out.Meals, ProductResponse{
			ID:          string(p.ID),
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price.InexactFloat64(),
			Image:       p.Image,
			IsAvailable: p.IsAvailable,
		})
	}
	return out
}

// HandleFetchMeals returns the public menu.
func (h *Handler) HandleFetchMeals(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *Handler) HandleAllMeals(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, includeUnavailable bool) {
	ctx := r.Context()
	products, err := h.catalog.List(ctx, includeUnavailable)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list meals", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	httputil.WriteJSON(w, http.StatusOK, toResponse(products))
}

type mealInput struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	IsAvailable *bool           `json:"isAvailable"`
}

// HandleUpsertMeals accepts either a bare array of meals or {"meals": [...]}.
func (h *Handler) HandleUpsertMeals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var raw json.RawMessage
	if err := httputil.DecodeJSON(w, r, &raw); err != nil {
		h.logger.WarnContext(ctx, "failed to decode request", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	meals, err := decodeMeals(raw)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid meals payload", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	inputs := make([]service.ProductInput, len(meals))
	for i, m := range meals {
		inputs[i] = service.ProductInput{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			Price:       m.Price,
			Image:       m.Image,
			IsAvailable: m.IsAvailable,
		}
	}

	saved, err := h.catalog.Upsert(ctx, inputs)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to save meals", "error", err, "request_id", requestID)
		} else {
			h.logger.WarnContext(ctx, "rejected meals", "error", err, "request_id", requestID)
		}
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "meals saved",
		"count", len(saved),
		"account_id", requestcontext.AccountID(ctx).String(),
		"at", requestcontext.Now(ctx).Format(time.RFC3339),
		"request_id", requestID,
	)
	httputil.WriteJSON(w, http.StatusCreated, toResponse(saved))
}

func decodeMeals(raw json.RawMessage) ([]mealInput, error) {
	trimmed := bytes.TrimSpace(raw)
	var meals []mealInput
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &meals); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid meals array")
		}
		return meals, nil
	}
	var wrapped struct {
		Meals []mealInput `json:"meals"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "request body must be an array of meals or {\"meals\": [...]}")
	}
	return wrapped.Meals, nil
}
