package handler

import (
	"net/http"
	"strings"
	"time"

	authmw "luwei/pkg/platform/middleware/auth"
)

// CookieConfig controls the attributes of the session cookie.
type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// ParseSameSite maps none, lax and strict to their http.SameSite values.
// Anything else is lax.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}

func (c CookieConfig) session(token string, expiresAt, now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     authmw.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(expiresAt.Sub(now).Seconds()),
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

func (c CookieConfig) cleared() *http.Cookie {
	return &http.Cookie{
		Name:     authmw.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}
