package service

import (
	"context"
	"errors"

	"luwei/internal/auth/models"
	"luwei/internal/identity"
	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/email"
	"luwei/pkg/platform/audit"
	"luwei/pkg/platform/sentinel"
	"luwei/pkg/requestcontext"
)

// ResolveAccount returns the account for a verified identity, creating it on
// first sight. Losing a concurrent creation race re-reads the winner's account.
func (s *Service) ResolveAccount(ctx context.Context, ident identity.Identity) (*models.Account, error) {
	address := email.Normalize(ident.Email)
	if address == "" {
		return nil, dErrors.New(dErrors.CodeIncompletePayload, "identity has no email")
	}

	existing, err := s.accounts.FindByEmail(ctx, address)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}

	account, err := models.NewAccount(id.NewAccountID(), address, ident.Name, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
		}
		winner, findErr := s.accounts.FindByEmail(ctx, address)
		if findErr != nil {
			return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load account after conflict")
		}
		s.logger.InfoContext(ctx, "account creation raced, using existing account",
			"account_id", winner.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return winner, nil
	}

	s.metrics.IncrementAccountsCreated()
	s.logAudit(ctx, audit.Event{
		Type:      audit.EventAccountCreated,
		AccountID: account.ID,
		Subject:   account.Email,
	})
	return account, nil
}

// CurrentAccount loads the signed-in account.
func (s *Service) CurrentAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, nil
}

// IsOperator reports whether the account may manage orders and the menu.
func (s *Service) IsOperator(ctx context.Context, accountID id.AccountID) (bool, error) {
	account, err := s.CurrentAccount(ctx, accountID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	_, ok := s.operators[account.Email]
	return ok, nil
}
