package models

import (
	"strings"
	"time"

	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/email"
)

// ProviderGoogle is the only identity provider accounts are created from.
const ProviderGoogle = "google"

// Account is the durable customer record keyed by email. It is created on the
// first verified login and never deleted.
type Account struct {
	ID            id.AccountID `json:"id"`
	Email         string       `json:"email"`
	Name          string       `json:"name"`
	Provider      string       `json:"provider"`
	EmailVerified bool         `json:"email_verified"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewAccount builds a verified account for a first login. The email is
// normalized; a blank name is derived from the address.
func NewAccount(accountID id.AccountID, address, name string, now time.Time) (*Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "account id cannot be nil")
	}
	address = email.Normalize(address)
	if address == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email.DisplayNameFromEmail(address)
	}
	return &Account{
		ID:            accountID,
		Email:         address,
		Name:          name,
		Provider:      ProviderGoogle,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Contact is the part of an account needed to address a customer.
type Contact struct {
	ID    id.AccountID `json:"id"`
	Email string       `json:"email"`
	Name  string       `json:"name"`
}

func (a *Account) Contact() Contact {
	return Contact{ID: a.ID, Email: a.Email, Name: a.Name}
}
