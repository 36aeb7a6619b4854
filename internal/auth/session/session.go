// Package session mints and validates the storefront's own session credentials.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/platform/secrets"
)

const (
	// Issuer is placed in every session credential and required on validation.
	Issuer = "luwei"

	signingKeyPurpose = "luwei/session-signing/v1"
	signingKeyLen     = 32
)

// Claims are the validated contents of a session credential.
type Claims struct {
	AccountID id.AccountID
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Credential is a freshly issued session credential.
type Credential struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
}

// Service handles session credential creation and validation. The signing key is
// derived from the configured secret; the raw secret never signs directly.
type Service struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to check expiry on validation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a Service whose credentials live for ttl.
func NewService(secret string, ttl time.Duration, opts ...Option) (*Service, error) {
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	key, err := secrets.DeriveKey(secret, signingKeyPurpose, signingKeyLen)
	if err != nil {
		return nil, err
	}
	s := &Service{
		signingKey: key,
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL is the validity window of issued credentials.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a credential for accountID valid from now for the configured TTL.
func (s *Service) Issue(accountID id.AccountID, now time.Time) (Credential, error) {
	if accountID.IsNil() {
		return Credential{}, dErrors.New(dErrors.CodeInternal, "cannot issue session for empty account")
	}
	jti := uuid.NewString()
	expiresAt := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return Credential{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session")
	}
	return Credential{
		Token:     signed,
		JTI:       jti,
		ExpiresAt: time.Unix(expiresAt.Unix(), 0).UTC(),
	}, nil
}

// ValidateToken checks signature, issuer and expiry and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	var claims tokenClaims
	parsed, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session")
	}

	accountID, err := id.ParseAccountID(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session subject")
	}

	out := &Claims{
		AccountID: accountID,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return out, nil
}
