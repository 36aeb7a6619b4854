// Package models defines the menu items orders are placed against.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
)

// Product is a menu item. Its price is the current price; orders keep their own
// copy at checkout.
type Product struct {
	ID          id.ProductID
	Name        string
	Description string
	Price       decimal.Decimal
	Image       string
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Normalize trims text fields and rounds the price to cents.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Image = strings.TrimSpace(p.Image)
	p.Price = p.Price.Round(2)
}

// Validate checks the fields every stored product must carry.
func (p *Product) Validate() error {
	if _, err := id.ParseProductID(string(p.ID)); err != nil {
		return err
	}
	if p.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "product "+string(p.ID)+": name is required")
	}
	if !p.Price.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "product "+string(p.ID)+": price must be positive")
	}
	if p.Image == "" {
		return dErrors.New(dErrors.CodeValidation, "product "+string(p.ID)+": image is required")
	}
	return nil
}
