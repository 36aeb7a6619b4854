// Package identitytest mints identity tokens signed by a throwaway RSA key.
package identitytest

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"luwei/internal/identity"
)

const (
	GoogleIssuer = "https://accounts.google.com"
	ClientID     = "client-123.apps.googleusercontent.com"
	KeyID        = "test-key-1"
)

// Issuer plays the identity provider in tests.
type Issuer struct {
	t   testing.TB
	key *rsa.PrivateKey
	kid string
}

// NewIssuer generates a signing key.
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &Issuer{t: t, key: key, kid: KeyID}
}

// Keys returns a key source that trusts this issuer.
func (i *Issuer) Keys() identity.StaticKeys {
	return identity.StaticKeys{i.kid: &i.key.PublicKey}
}

// PrivateKey exposes the signing key (for JWKS fixtures).
func (i *Issuer) PrivateKey() *rsa.PrivateKey { return i.key }

// Claims returns a valid claim set for email/name that expires an hour after now.
func Claims(email, name string, now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            GoogleIssuer,
		"aud":            ClientID,
		"sub":            "1098765432",
		"email":          email,
		"email_verified": true,
		"name":           name,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

// Sign signs claims with RS256 under the issuer's kid.
func (i *Issuer) Sign(claims jwt.MapClaims) string {
	return i.SignWithKid(claims, i.kid)
}

// SignWithKid signs claims with an explicit kid header.
func (i *Issuer) SignWithKid(claims jwt.MapClaims, kid string) string {
	i.t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(i.key)
	require.NoError(i.t, err)
	return signed
}

// Token is shorthand for Sign(Claims(email, name, now)).
func (i *Issuer) Token(email, name string, now time.Time) string {
	return i.Sign(Claims(email, name, now))
}
