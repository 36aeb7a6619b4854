package operator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	id "luwei/pkg/domain"
	"luwei/pkg/requestcontext"
)

type authorizerFunc func(ctx context.Context, accountID id.AccountID) (bool, error)

func (f authorizerFunc) IsOperator(ctx context.Context, accountID id.AccountID) (bool, error) {
	return f(ctx, accountID)
}

func TestRequireOperator(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	operatorID := id.NewAccountID()
	customerID := id.NewAccountID()
	failingID := id.NewAccountID()

	authz := authorizerFunc(func(_ context.Context, accountID id.AccountID) (bool, error) {
		if accountID == failingID {
			return false, errors.New("db down")
		}
		return accountID == operatorID, nil
	})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireOperator(authz, logger)(ok)

	tests := []struct {
		name    string
		account id.AccountID
		want    int
	}{
		{"operator", operatorID, http.StatusOK},
		{"customer", customerID, http.StatusForbidden},
		{"unauthenticated", id.AccountID{}, http.StatusUnauthorized},
		{"lookup failure", failingID, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/order/get_all_order", nil)
			if !tt.account.IsNil() {
				req = req.WithContext(requestcontext.WithAccountID(req.Context(), tt.account))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
