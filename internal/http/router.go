// Package httpapi assembles the storefront HTTP surface.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"luwei/pkg/platform/httputil"
	"luwei/pkg/platform/middleware/apikey"
	"luwei/pkg/platform/middleware/cors"
	"luwei/pkg/platform/middleware/metadata"
	"luwei/pkg/platform/middleware/request"
	"luwei/pkg/platform/middleware/requesttime"
)

// Registrar mounts a domain's routes.
type Registrar interface {
	Register(r chi.Router)
}

// Observer records request latency.
type Observer interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// ReadinessCheck reports whether a backing service is reachable.
type ReadinessCheck func(ctx context.Context) error

// Config holds what the router needs besides the domain handlers.
type Config struct {
	Logger         *slog.Logger
	APIKey         string
	AllowedOrigins []string
	TrustedProxies []netip.Prefix
	Observer       Observer
	Metrics        http.Handler
	Readiness      map[string]ReadinessCheck
}

// NewRouter wires the middleware chain and mounts every domain under /api,
// behind the API key. Health and metrics stay outside the key.
func NewRouter(cfg Config, domains ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata(cfg.TrustedProxies...))
	r.Use(cors.Middleware(cfg.AllowedOrigins))
	r.Use(request.Logger(cfg.Logger, cfg.Observer))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(cfg.Logger, cfg.Readiness))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(apikey.RequireAPIKey(cfg.APIKey, cfg.Logger))
		for _, d := range domains {
			d.Register(r)
		}
	})
	return r
}

func readiness(logger *slog.Logger, checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		httputil.WriteJSON(w, status, results)
	}
}
