package httpapi

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luwei/pkg/platform/middleware/apikey"
	"luwei/pkg/requestcontext"
)

type pingDomain struct{}

func (pingDomain) Register(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestcontext.RequestID(r.Context())))
	})
}

func newTestRouter(ready error) http.Handler {
	return NewRouter(Config{
		Logger:         slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		APIKey:         "k3y",
		AllowedOrigins: []string{"https://shop.luwei.tw"},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		Readiness: map[string]ReadinessCheck{
			"database": func(context.Context) error { return ready },
		},
	}, pingDomain{})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_APIKeyGate(t *testing.T) {
	router := newTestRouter(nil)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set(apikey.Header, "k3y")
	rr = serve(router, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Body.String(), "request id is assigned before domain handlers")
}

func TestRouter_PreflightSkipsAPIKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/ping", nil)
	req.Header.Set("Origin", "https://shop.luwei.tw")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rr := serve(newTestRouter(nil), req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://shop.luwei.tw", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_HealthAndMetricsAreOpen(t *testing.T) {
	router := newTestRouter(nil)
	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
	assert.Equal(t, "# metrics", serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Body.String())
}

func TestRouter_ReadinessReportsFailures(t *testing.T) {
	rr := serve(newTestRouter(errors.New("down")), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"database":"unavailable"`)
}
