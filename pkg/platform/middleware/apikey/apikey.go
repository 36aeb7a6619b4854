// Package apikey guards routes with the shared storefront API key.
package apikey

import (
	"log/slog"
	"net/http"

	"luwei/pkg/platform/secrets"
	"luwei/pkg/requestcontext"
)

// Header carries the API key.
const Header = "X-API-Key"

func RequireAPIKey(expectedKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(Header)
			if expectedKey == "" || !secrets.Equal(key, expectedKey) {
				ctx := r.Context()
				logger.WarnContext(ctx, "api key mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"api key required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
