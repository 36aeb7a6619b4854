// Package ratelimit throttles requests per client address with token buckets.
package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"luwei/pkg/requestcontext"
)

// Config sets the per-client budget.
type Config struct {
	PerMinute       int
	Burst           int
	CleanupInterval time.Duration
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter keeps one token bucket per client IP. Idle buckets are evicted in the
// background until Stop is called.
type Limiter struct {
	limit   rate.Limit
	burst   int
	cleanup time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu      sync.Mutex
	clients map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New starts a Limiter. A non-positive PerMinute disables limiting.
func New(cfg Config, logger *slog.Logger) *Limiter {
	if cfg.Burst <= 0 {
		cfg.Burst = max(cfg.PerMinute, 1)
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	l := &Limiter{
		limit:   rate.Limit(float64(cfg.PerMinute) / 60.0),
		burst:   cfg.Burst,
		cleanup: cfg.CleanupInterval,
		now:     time.Now,
		logger:  logger,
		clients: make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}
	if cfg.PerMinute <= 0 {
		l.limit = rate.Inf
	}
	go l.cleanupLoop()
	return l
}

// Stop ends the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Allow consumes a token for key.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Len reports how many client buckets are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.clients[key]; ok {
		c.lastAccess = l.now()
		return c.limiter
	}
	c := &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst), lastAccess: l.now()}
	l.clients[key] = c
	return c.limiter
}

// Middleware rejects over-budget clients with 429 and a Retry-After hint. It
// keys on the client IP resolved by the metadata middleware, which only honours
// forwarding headers from trusted proxies. Without it the connection host is used.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := requestcontext.ClientIP(ctx)
		if key == "" {
			key = r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				key = host
			}
		}
		if !l.Allow(key) {
			l.logger.WarnContext(ctx, "rate limit exceeded",
				"client_ip", key,
				"request_id", requestcontext.RequestID(ctx),
			)
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited","error_description":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) retryAfter() int {
	if l.limit == rate.Inf || l.limit <= 0 {
		return 1
	}
	return max(int(math.Ceil(1.0/float64(l.limit))), 1)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stopCh:
			return
		}
	}
}

func (l *Limiter) evictIdle() {
	cutoff := l.now().Add(-2 * l.cleanup)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.clients {
		if c.lastAccess.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}
