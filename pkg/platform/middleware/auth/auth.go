// Package auth authenticates requests carrying a session credential.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	id "luwei/pkg/domain"
	"luwei/pkg/requestcontext"
)

// CookieName is the cookie the session credential is delivered in.
const CookieName = "auth_token"

// SessionValidator validates a raw session credential.
type SessionValidator interface {
	ValidateToken(tokenString string) (*SessionClaims, error)
}

// RevocationChecker reports whether a session id has been revoked.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// FailureRecorder counts rejected requests by reason. Optional.
type FailureRecorder interface {
	IncrementAuthFailures(reason string)
}

// SessionClaims is what the middleware needs from a validated credential.
type SessionClaims struct {
	AccountID id.AccountID
	JTI       string
	ExpiresAt time.Time
}

const unauthorizedBody = `{"error":"unauthorized","error_description":"authentication required"}`

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}

// ExtractToken returns the credential from the auth cookie, falling back to a
// bearer Authorization header.
func ExtractToken(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// RequireSession rejects requests without a valid, unrevoked session. Every
// rejection produces the same response so callers cannot tell the causes apart.
// revocations and failures may be nil.
func RequireSession(validator SessionValidator, revocations RevocationChecker, failures FailureRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, r *http.Request, reason string, err error) {
		ctx := r.Context()
		attrs := []any{"reason", reason, "request_id", requestcontext.RequestID(ctx)}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		logger.WarnContext(ctx, "unauthorized access", attrs...)
		if failures != nil {
			failures.IncrementAuthFailures(reason)
		}
		writeUnauthorized(w)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				reject(w, r, "missing", nil)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				reject(w, r, "invalid", err)
				return
			}

			ctx := r.Context()
			if revocations != nil {
				if claims.JTI == "" {
					reject(w, r, "missing_jti", nil)
					return
				}
				revoked, err := revocations.IsTokenRevoked(ctx, claims.JTI)
				if err != nil {
					logger.ErrorContext(ctx, "failed to check session revocation",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal_error"}`))
					return
				}
				if revoked {
					reject(w, r, "revoked", nil)
					return
				}
			}

			ctx = requestcontext.WithSession(ctx, claims.AccountID, claims.JTI, claims.ExpiresAt)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
