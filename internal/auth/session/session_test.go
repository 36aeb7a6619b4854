package session

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

func newService(t *testing.T, now *time.Time) *Service {
	t.Helper()
	svc, err := NewService(testSecret, 150*24*time.Hour, WithClock(func() time.Time { return *now }))
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	_, err := NewService("", time.Hour)
	assert.Error(t, err)

	_, err = NewService(testSecret, 0)
	assert.Error(t, err)
}

func TestIssueAndValidate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(t, &now)
	accountID := id.NewAccountID()

	cred, err := svc.Issue(accountID, now)
	require.NoError(t, err)
	require.NotEmpty(t, cred.Token)
	require.NotEmpty(t, cred.JTI)
	assert.Equal(t, now.Add(150*24*time.Hour), cred.ExpiresAt)

	claims, err := svc.ValidateToken(cred.Token)
	require.NoError(t, err)
	assert.Equal(t, accountID, claims.AccountID)
	assert.Equal(t, cred.JTI, claims.JTI)
	assert.Equal(t, now, claims.IssuedAt)
	assert.Equal(t, cred.ExpiresAt, claims.ExpiresAt)
	assert.Equal(t, time.UTC, claims.ExpiresAt.Location())
	assert.Equal(t, time.UTC, claims.IssuedAt.Location())
}

func TestTwoSessionsForSameAccount(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(t, &now)
	accountID := id.NewAccountID()

	first, err := svc.Issue(accountID, now)
	require.NoError(t, err)
	second, err := svc.Issue(accountID, now)
	require.NoError(t, err)
	assert.NotEqual(t, first.JTI, second.JTI)

	for _, cred := range []Credential{first, second} {
		claims, err := svc.ValidateToken(cred.Token)
		require.NoError(t, err)
		assert.Equal(t, accountID, claims.AccountID)
	}
}

func TestIssueRejectsNilAccount(t *testing.T) {
	now := time.Now()
	svc := newService(t, &now)
	_, err := svc.Issue(id.AccountID{}, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestValidateToken_Expired(t *testing.T) {
	issuedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := issuedAt
	svc := newService(t, &now)

	cred, err := svc.Issue(id.NewAccountID(), issuedAt)
	require.NoError(t, err)

	now = issuedAt.Add(151 * 24 * time.Hour)
	_, err = svc.ValidateToken(cred.Token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "session has expired"))
}

func TestValidateToken_Invalid(t *testing.T) {
	now := time.Now()
	svc := newService(t, &now)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("invalid-token-string")
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid session"))
	})

	t.Run("payload swapped between sessions", func(t *testing.T) {
		cred, err := svc.Issue(id.NewAccountID(), now)
		require.NoError(t, err)
		other, err := svc.Issue(id.NewAccountID(), now)
		require.NoError(t, err)

		parts := strings.Split(cred.Token, ".")
		parts[1] = strings.Split(other.Token, ".")[1]
		_, err = svc.ValidateToken(strings.Join(parts, "."))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("signed with the raw secret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": id.NewAccountID().String(),
			"iss": Issuer,
			"exp": now.Add(time.Hour).Unix(),
			"jti": "x",
		})
		signed, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = svc.ValidateToken(signed)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("different secret", func(t *testing.T) {
		other, err := NewService("another-secret-another-secret-0000", time.Hour)
		require.NoError(t, err)
		cred, err := other.Issue(id.NewAccountID(), now)
		require.NoError(t, err)
		_, err = svc.ValidateToken(cred.Token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong subject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "not-a-uuid",
			"iss": Issuer,
			"exp": now.Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(svc.signingKey)
		require.NoError(t, err)
		_, err = svc.ValidateToken(signed)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestMiddlewareAdapter(t *testing.T) {
	now := time.Now()
	svc := newService(t, &now)
	accountID := id.NewAccountID()
	cred, err := svc.Issue(accountID, now)
	require.NoError(t, err)

	claims, err := NewMiddlewareAdapter(svc).ValidateToken(cred.Token)
	require.NoError(t, err)
	assert.Equal(t, accountID, claims.AccountID)
	assert.Equal(t, cred.JTI, claims.JTI)

	_, err = NewMiddlewareAdapter(svc).ValidateToken("nope")
	assert.Error(t, err)
}
