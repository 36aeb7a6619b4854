// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	accountID := requestcontext.AccountID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithAccountID(ctx, accountID)
package requestcontext

import (
	"context"
	"time"

	id "luwei/pkg/domain"
)

type (
	accountIDKey     struct{}
	sessionJTIKey    struct{}
	sessionExpiryKey struct{}
	clientIPKey      struct{}
	userAgentKey     struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyAccountID     = accountIDKey{}
	ContextKeySessionJTI    = sessionJTIKey{}
	ContextKeySessionExpiry = sessionExpiryKey{}
	ContextKeyClientIP      = clientIPKey{}
	ContextKeyUserAgent     = userAgentKey{}
	ContextKeyRequestID     = requestIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

// AccountID retrieves the authenticated account from the context.
// Returns the zero value (nil UUID) if not set.
func AccountID(ctx context.Context) id.AccountID {
	if accountID, ok := ctx.Value(ContextKeyAccountID).(id.AccountID); ok {
		return accountID
	}
	return id.AccountID{}
}

// WithAccountID injects an authenticated account id into the context.
func WithAccountID(ctx context.Context, accountID id.AccountID) context.Context {
	return context.WithValue(ctx, ContextKeyAccountID, accountID)
}

// SessionJTI is the unique id of the session credential used for this request.
func SessionJTI(ctx context.Context) string {
	if jti, ok := ctx.Value(ContextKeySessionJTI).(string); ok {
		return jti
	}
	return ""
}

// SessionExpiry is when the presented session credential stops being valid.
func SessionExpiry(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeySessionExpiry).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// WithSession injects the authenticated session into the context.
func WithSession(ctx context.Context, accountID id.AccountID, jti string, expiresAt time.Time) context.Context {
	ctx = context.WithValue(ctx, ContextKeyAccountID, accountID)
	ctx = context.WithValue(ctx, ContextKeySessionJTI, jti)
	return context.WithValue(ctx, ContextKeySessionExpiry, expiresAt)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	return context.WithValue(ctx, ContextKeyUserAgent, userAgent)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() outside HTTP requests (CLI, background sends).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
