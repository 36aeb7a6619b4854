// Package service turns a verified identity token into a customer session and
// resolves the account behind it.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"luwei/internal/auth/models"
	"luwei/internal/auth/session"
	"luwei/internal/identity"
	"luwei/internal/platform/metrics"
	id "luwei/pkg/domain"
	"luwei/pkg/email"
	"luwei/pkg/platform/audit"
)

// IdentityVerifier checks a third-party identity token.
type IdentityVerifier interface {
	Verify(ctx context.Context, raw string) (identity.Identity, error)
}

// AccountStore persists accounts. Create returns sentinel.ErrConflict when the
// email is already taken.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByEmail(ctx context.Context, address string) (*models.Account, error)
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
}

// SessionIssuer signs and validates session credentials.
type SessionIssuer interface {
	Issue(accountID id.AccountID, now time.Time) (session.Credential, error)
	ValidateToken(token string) (*session.Claims, error)
	TTL() time.Duration
}

// RedirectResolver picks the landing URL for a login.
type RedirectResolver interface {
	Resolve(hint, address string) (string, error)
}

// TokenRevoker denies a session id until ttl elapses and answers whether an id
// is currently denied.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the login flow and account lookups.
type Service struct {
	verifier  IdentityVerifier
	accounts  AccountStore
	sessions  SessionIssuer
	redirects RedirectResolver
	revoker   TokenRevoker

	operators      map[string]struct{}
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithOperators grants operator privilege to the given emails.
func WithOperators(emails []string) Option {
	return func(s *Service) {
		for _, e := range emails {
			if n := email.Normalize(e); n != "" {
				s.operators[n] = struct{}{}
			}
		}
	}
}

// New constructs a Service.
func New(
	verifier IdentityVerifier,
	accounts AccountStore,
	sessions SessionIssuer,
	redirects RedirectResolver,
	revoker TokenRevoker,
	opts ...Option,
) *Service {
	s := &Service{
		verifier:  verifier,
		accounts:  accounts,
		sessions:  sessions,
		redirects: redirects,
		revoker:   revoker,
		operators: make(map[string]struct{}),
		logger:    slog.Default(),
		tracer:    otel.Tracer("luwei/internal/auth/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionTTL is the lifetime of issued session credentials.
func (s *Service) SessionTTL() time.Duration {
	return s.sessions.TTL()
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(event.Type),
			"error", err,
		)
	}
}
