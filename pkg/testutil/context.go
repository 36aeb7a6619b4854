package testutil

import (
	"net/http"
	"time"

	id "luwei/pkg/domain"
	"luwei/pkg/requestcontext"
)

// WithAccount marks the request as authenticated for accountID, as the session
// middleware would.
func WithAccount(req *http.Request, accountID id.AccountID) *http.Request {
	return req.WithContext(requestcontext.WithAccountID(req.Context(), accountID))
}

// WithSession is WithAccount plus the session id and expiry.
func WithSession(req *http.Request, accountID id.AccountID, jti string, expiresAt time.Time) *http.Request {
	return req.WithContext(requestcontext.WithSession(req.Context(), accountID, jti, expiresAt))
}
