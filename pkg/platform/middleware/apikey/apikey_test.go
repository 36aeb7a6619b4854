package apikey

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAPIKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name     string
		expected string
		provided string
		want     int
	}{
		{"matching key", "menu-key", "menu-key", http.StatusOK},
		{"wrong key", "menu-key", "other", http.StatusUnauthorized},
		{"missing key", "menu-key", "", http.StatusUnauthorized},
		{"unconfigured key rejects everything", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/meal/fetch-meals", nil)
			if tt.provided != "" {
				req.Header.Set(Header, tt.provided)
			}
			rec := httptest.NewRecorder()
			RequireAPIKey(tt.expected, logger)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
