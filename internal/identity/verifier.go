// Package identity verifies Google-issued ID tokens presented at login.
//
// Checks run in a fixed order and each failure carries its own error code:
// structure (invalid_token), signature/issuer/audience (untrusted_token),
// expiry (token_expired), required claims (incomplete_payload).
package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "luwei/pkg/domain-errors"
)

// Identity is the verified subject of an identity token.
type Identity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// Verifier checks identity tokens against a key source, an audience and a set of
// accepted issuers.
type Verifier struct {
	keys     KeySource
	audience string
	issuers  []string
	now      func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock sets the verification clock.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVerifier constructs a Verifier. audience is the OAuth client id the tokens
// must be minted for.
func NewVerifier(keys KeySource, audience string, issuers []string, opts ...Option) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("key source is required")
	}
	if audience == "" {
		return nil, errors.New("audience is required")
	}
	if len(issuers) == 0 {
		return nil, errors.New("at least one issuer is required")
	}
	v := &Verifier{
		keys:     keys,
		audience: audience,
		issuers:  slices.Clone(issuers),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

type tokenClaims struct {
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	jwt.RegisteredClaims
}

// Verify validates raw and returns the identity it asserts.
func (v *Verifier) Verify(ctx context.Context, raw string) (Identity, error) {
	if err := checkStructure(raw); err != nil {
		return Identity{}, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	var claims tokenClaims
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrUnknownKey
		}
		return v.keys.PublicKey(ctx, kid)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrKeysUnavailable):
			return Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "identity provider keys unavailable")
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Identity{}, dErrors.Wrap(err, dErrors.CodeInvalidToken, "identity token claims are malformed")
		default:
			return Identity{}, dErrors.Wrap(err, dErrors.CodeUntrustedToken, "identity token signature is not trusted")
		}
	}

	if !slices.Contains(v.issuers, claims.Issuer) {
		return Identity{}, dErrors.New(dErrors.CodeUntrustedToken, fmt.Sprintf("unexpected issuer %q", claims.Issuer))
	}
	if !slices.Contains(claims.Audience, v.audience) {
		return Identity{}, dErrors.New(dErrors.CodeUntrustedToken, "token was not issued for this client")
	}
	if claims.ExpiresAt == nil {
		return Identity{}, dErrors.New(dErrors.CodeTokenExpired, "identity token has no expiry")
	}
	if claims.ExpiresAt.Time.Before(v.now()) {
		return Identity{}, dErrors.New(dErrors.CodeTokenExpired, "identity token has expired")
	}

	email := strings.TrimSpace(claims.Email)
	name := strings.TrimSpace(claims.Name)
	if email == "" || name == "" {
		return Identity{}, dErrors.New(dErrors.CodeIncompletePayload, "identity token lacks email or name")
	}

	return Identity{
		Subject:       claims.Subject,
		Email:         email,
		Name:          name,
		EmailVerified: bool(claims.EmailVerified),
	}, nil
}

// checkStructure requires three non-empty base64url segments with JSON header and payload.
func checkStructure(raw string) error {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return dErrors.New(dErrors.CodeInvalidToken, "identity token must have three segments")
	}
	for i, part := range parts {
		if part == "" {
			return dErrors.New(dErrors.CodeInvalidToken, "identity token has an empty segment")
		}
		decoded, err := base64.RawURLEncoding.DecodeString(part)
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidToken, "identity token segment is not base64url")
		}
		if i < 2 && !json.Valid(decoded) {
			return dErrors.New(dErrors.CodeInvalidToken, "identity token segment is not JSON")
		}
	}
	return nil
}

// flexBool accepts both true and "true"; some issuers encode email_verified as a string.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = flexBool(t)
	case string:
		*b = flexBool(strings.EqualFold(t, "true"))
	default:
		*b = false
	}
	return nil
}
