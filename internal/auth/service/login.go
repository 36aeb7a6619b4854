package service

import (
	"context"
	"time"

	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/platform/audit"
	"luwei/pkg/requestcontext"
)

// LoginRequest is the identity token exchange input.
type LoginRequest struct {
	IdentityToken string
	RedirectHint  string
	UserAgent     string
}

// LoginResult carries the new session credential and where to send the customer.
type LoginResult struct {
	AccountID    id.AccountID
	SessionToken string
	RedirectURL  string
	ExpiresAt    time.Time
	// CookieFallback is set for browsers that drop cross-site cookies written
	// during a redirect; the client should re-set the credential same-origin.
	CookieFallback bool
}

// Login verifies the identity token, authorizes the redirect, resolves the
// account and issues a session. The redirect is checked before any account is
// created.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	result, err := s.login(ctx, req)
	if err != nil {
		code := dErrors.CodeOf(err)
		span.SetStatus(codes.Error, string(code))
		s.metrics.IncrementLogins(string(code))
		s.logAudit(ctx, audit.Event{
			Type:   audit.EventLoginFailed,
			Reason: string(code),
		})
		return nil, err
	}

	span.SetAttributes(attribute.String("account_id", result.AccountID.String()))
	s.metrics.IncrementLogins("success")
	return result, nil
}

func (s *Service) login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	ident, err := s.verifier.Verify(ctx, req.IdentityToken)
	if err != nil {
		s.logger.WarnContext(ctx, "identity token rejected",
			"reason", string(dErrors.CodeOf(err)),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}

	landing, err := s.redirects.Resolve(req.RedirectHint, ident.Email)
	if err != nil {
		s.logAudit(ctx, audit.Event{
			Type:    audit.EventRedirectDenied,
			Subject: ident.Email,
			Details: map[string]string{"redirect_hint": req.RedirectHint},
		})
		return nil, err
	}

	account, err := s.ResolveAccount(ctx, ident)
	if err != nil {
		return nil, err
	}

	cred, err := s.sessions.Issue(account.ID, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session")
	}

	s.logAudit(ctx, audit.Event{
		Type:      audit.EventSessionCreated,
		AccountID: account.ID,
		Subject:   account.Email,
		Details:   map[string]string{"jti": cred.JTI, "redirect_url": landing},
	})

	return &LoginResult{
		AccountID:      account.ID,
		SessionToken:   cred.Token,
		RedirectURL:    landing,
		ExpiresAt:      cred.ExpiresAt,
		CookieFallback: needsCookieFallback(req.UserAgent),
	}, nil
}

// needsCookieFallback reports Safari and every iOS browser, all of which run on
// WebKit and block third-party cookie writes.
func needsCookieFallback(ua string) bool {
	if ua == "" {
		return false
	}
	parsed := useragent.New(ua)
	switch parsed.Platform() {
	case "iPhone", "iPad", "iPod":
		return true
	}
	name, _ := parsed.Browser()
	return name == "Safari"
}
