package service

import (
	"context"
	"time"

	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/platform/audit"
	"luwei/pkg/requestcontext"
)

// ExchangeSession validates a credential handed out in a response body so the
// client can have it set as a first-party cookie.
func (s *Service) ExchangeSession(ctx context.Context, token string) (time.Time, error) {
	if token == "" {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, "session credential is required")
	}
	claims, err := s.sessions.ValidateToken(token)
	if err != nil {
		return time.Time{}, err
	}
	revoked, err := s.revoker.IsTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check session revocation")
	}
	if revoked {
		return time.Time{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session")
	}
	if _, err := s.CurrentAccount(ctx, claims.AccountID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return time.Time{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session")
		}
		return time.Time{}, err
	}
	return claims.ExpiresAt, nil
}

// Logout denies the presented session id for the rest of its validity.
func (s *Service) Logout(ctx context.Context, accountID id.AccountID, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	remaining := expiresAt.Sub(requestcontext.Now(ctx))
	if remaining <= 0 {
		return nil
	}
	if err := s.revoker.RevokeToken(ctx, jti, remaining); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}
	s.logAudit(ctx, audit.Event{
		Type:      audit.EventSessionRevoked,
		AccountID: accountID,
		Reason:    "logout",
		Details:   map[string]string{"jti": jti},
	})
	return nil
}
