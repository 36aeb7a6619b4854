package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"luwei/internal/identity"
	"luwei/internal/identity/identitytest"
	dErrors "luwei/pkg/domain-errors"
)

type VerifierSuite struct {
	suite.Suite
	issuer   *identitytest.Issuer
	verifier *identity.Verifier
	now      time.Time
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupSuite() {
	s.issuer = identitytest.NewIssuer(s.T())
}

func (s *VerifierSuite) SetupTest() {
	s.now = time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
	v, err := identity.NewVerifier(
		s.issuer.Keys(),
		identitytest.ClientID,
		[]string{"https://accounts.google.com", "accounts.google.com"},
		identity.WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
	s.verifier = v
}

func (s *VerifierSuite) assertCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.Truef(dErrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func (s *VerifierSuite) TestNewVerifier() {
	s.Run("nil key source rejected", func() {
		_, err := identity.NewVerifier(nil, "aud", []string{"iss"})
		s.Error(err)
	})
	s.Run("empty audience rejected", func() {
		_, err := identity.NewVerifier(s.issuer.Keys(), "", []string{"iss"})
		s.Error(err)
	})
	s.Run("no issuers rejected", func() {
		_, err := identity.NewVerifier(s.issuer.Keys(), "aud", nil)
		s.Error(err)
	})
}

func (s *VerifierSuite) TestValidToken() {
	token := s.issuer.Token("mei@example.com", "林美", s.now)

	id, err := s.verifier.Verify(context.Background(), token)
	s.Require().NoError(err)
	s.Equal("mei@example.com", id.Email)
	s.Equal("林美", id.Name)
	s.Equal("1098765432", id.Subject)
	s.True(id.EmailVerified)
}

func (s *VerifierSuite) TestAlternateIssuerForm() {
	claims := identitytest.Claims("mei@example.com", "Mei", s.now)
	claims["iss"] = "accounts.google.com"

	_, err := s.verifier.Verify(context.Background(), s.issuer.Sign(claims))
	s.NoError(err)
}

func (s *VerifierSuite) TestEmailVerifiedAsString() {
	claims := identitytest.Claims("mei@example.com", "Mei", s.now)
	claims["email_verified"] = "true"

	id, err := s.verifier.Verify(context.Background(), s.issuer.Sign(claims))
	s.Require().NoError(err)
	s.True(id.EmailVerified)
}

func (s *VerifierSuite) TestMalformedStructure() {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"email":"a@x.com"}`))
	notJSON := base64.RawURLEncoding.EncodeToString([]byte("plain text"))

	cases := map[string]string{
		"empty":               "",
		"one segment":         "abc",
		"two segments":        header + "." + payload,
		"four segments":       header + "." + payload + ".sig.extra",
		"empty signature":     header + "." + payload + ".",
		"non base64 segment":  header + ".!!!." + "c2ln",
		"header is not json":  notJSON + "." + payload + ".c2ln",
		"payload is not json": header + "." + notJSON + ".c2ln",
	}
	for name, token := range cases {
		s.Run(name, func() {
			_, err := s.verifier.Verify(context.Background(), token)
			s.assertCode(err, dErrors.CodeInvalidToken)
		})
	}
}

func (s *VerifierSuite) TestUntrustedSignature() {
	s.Run("signed by another key", func() {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		s.Require().NoError(err)
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, identitytest.Claims("a@x.com", "A", s.now))
		token.Header["kid"] = identitytest.KeyID
		signed, err := token.SignedString(other)
		s.Require().NoError(err)

		_, err = s.verifier.Verify(context.Background(), signed)
		s.assertCode(err, dErrors.CodeUntrustedToken)
	})

	s.Run("unknown kid", func() {
		token := s.issuer.SignWithKid(identitytest.Claims("a@x.com", "A", s.now), "rotated-away")
		_, err := s.verifier.Verify(context.Background(), token)
		s.assertCode(err, dErrors.CodeUntrustedToken)
	})

	s.Run("hmac algorithm rejected", func() {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, identitytest.Claims("a@x.com", "A", s.now))
		token.Header["kid"] = identitytest.KeyID
		signed, err := token.SignedString([]byte("guessable"))
		s.Require().NoError(err)

		_, err = s.verifier.Verify(context.Background(), signed)
		s.assertCode(err, dErrors.CodeUntrustedToken)
	})
}

func (s *VerifierSuite) TestIssuerAndAudience() {
	s.Run("wrong issuer", func() {
		claims := identitytest.Claims("a@x.com", "A", s.now)
		claims["iss"] = "https://evil.example.com"
		_, err := s.verifier.Verify(context.Background(), s.issuer.Sign(claims))
		s.assertCode(err, dErrors.CodeUntrustedToken)
	})

	s.Run("wrong audience", func() {
		claims := identitytest.Claims("a@x.com", "A", s.now)
		claims["aud"] = "someone-else.apps.googleusercontent.com"
		_, err := s.verifier.Verify(context.Background(), s.issuer.Sign(claims))
		s.assertCode(err, dErrors.CodeUntrustedToken)
	})

	s.Run("issuer checked before expiry", func() {
		claims := identitytest.Claims("a@x.com", "A", s.now)
		claims["iss"] = "https://evil.example.com"
		claims["exp"] = s.now.Add(-time.Hour).Unix()
		_, err := s.verifier.Verify(context.Background(), s.issuer.Sign(claims))
		s.assertCode(err, dErrors.CodeUntrustedToken)
	})
}

func (s *VerifierSuite) TestExpiry() {
	s.Run("expired", func() {
		claims := identitytest.Claims("a@x.com", "A", s.now)
		claims["exp"] = s.now.Add(-time.Second).Unix()
		_, err := s.verifier.Verify(context.Background(), s.issuer.Sign(claims))
		s.assertCode(err, dErrors.CodeTokenExpired)
	})

	s.Run("missing exp", func() {
		claims := identitytest.Claims("a@x.com", "A", s.now)
		delete(claims, "exp")
		_, err := s.verifier.Verify(context.Background(), s.issuer.Sign(claims))
		s.assertCode(err, dErrors.CodeTokenExpired)
	})

	s.Run("expiry checked before claims", func() {
		claims := identitytest.Claims("", "", s.now)
		claims["exp"] = s.now.Add(-time.Minute).Unix()
		_, err := s.verifier.Verify(context.Background(), s.issuer.Sign(claims))
		s.assertCode(err, dErrors.CodeTokenExpired)
	})
}

func (s *VerifierSuite) TestIncompletePayload() {
	s.Run("missing email", func() {
		_, err := s.verifier.Verify(context.Background(), s.issuer.Token("", "A", s.now))
		s.assertCode(err, dErrors.CodeIncompletePayload)
	})

	s.Run("blank name", func() {
		_, err := s.verifier.Verify(context.Background(), s.issuer.Token("a@x.com", "   ", s.now))
		s.assertCode(err, dErrors.CodeIncompletePayload)
	})
}
