// Package email holds helpers for the email address that keys an account.
package email

import (
	"net/mail"
	"strings"
	"unicode"
)

// Normalize lower-cases and trims an address so lookups are case-insensitive.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Valid reports whether address parses as a bare RFC 5322 address.
func Valid(address string) bool {
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}

// DisplayNameFromEmail builds a readable name from the local part of an address,
// e.g. "mei.lin+deli@example.com" becomes "Mei Lin". Used when the identity
// provider supplied no usable name.
func DisplayNameFromEmail(address string) string {
	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}
	if plus := strings.IndexByte(localPart, '+'); plus > 0 {
		localPart = localPart[:plus]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return "Customer"
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
