// Package secrets derives and compares server-held secrets.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	dErrors "luwei/pkg/domain-errors"
)

// Generate creates a cryptographically secure random secret, base64url encoded.
// Suitable for SESSION_SECRET and API_KEY.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DeriveKey expands a master secret into a purpose-bound key with HKDF-SHA256.
// Different purposes yield independent keys from the same master.
func DeriveKey(master, purpose string, length int) ([]byte, error) {
	if master == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	if length <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "key length must be positive")
	}
	key := make([]byte, length)
	r := hkdf.New(sha256.New, []byte(master), nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("could not derive key: %w", err)
	}
	return key, nil
}

// Equal compares two secrets in constant time.
func Equal(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
