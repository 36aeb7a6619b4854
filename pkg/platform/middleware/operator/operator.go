// Package operator restricts routes to shop operators. It must run after the
// session middleware.
package operator

import (
	"context"
	"log/slog"
	"net/http"

	id "luwei/pkg/domain"
	"luwei/pkg/requestcontext"
)

// Authorizer decides whether an account may use operator routes.
type Authorizer interface {
	IsOperator(ctx context.Context, accountID id.AccountID) (bool, error)
}

func RequireOperator(authz Authorizer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			accountID := requestcontext.AccountID(ctx)
			if accountID.IsNil() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"authentication required"}`))
				return
			}

			ok, err := authz.IsOperator(ctx, accountID)
			if err != nil {
				logger.ErrorContext(ctx, "operator check failed",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal_error"}`))
				return
			}
			if !ok {
				logger.WarnContext(ctx, "operator route denied",
					"account_id", accountID.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"operator access required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
