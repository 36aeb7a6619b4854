package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"luwei/pkg/platform/circuit"
)

// FailoverSink appends to primary and falls back to fallback when it fails.
// Once the breaker opens, primary is only probed every probeInterval.
type FailoverSink struct {
	primary       Sink
	fallback      Sink
	breaker       *circuit.Breaker
	logger        *slog.Logger
	probeInterval time.Duration
	now           func() time.Time

	mu        sync.Mutex
	lastProbe time.Time
}

func NewFailoverSink(primary, fallback Sink, breaker *circuit.Breaker, logger *slog.Logger) *FailoverSink {
	return &FailoverSink{
		primary:       primary,
		fallback:      fallback,
		breaker:       breaker,
		logger:        logger,
		probeInterval: 30 * time.Second,
		now:           time.Now,
	}
}

func (s *FailoverSink) Append(ctx context.Context, e Event) error {
	if s.breaker.IsOpen() && !s.shouldProbe() {
		return s.fallback.Append(ctx, e)
	}

	if err := s.primary.Append(ctx, e); err != nil {
		_, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.WarnContext(ctx, "audit sink circuit opened", "breaker", s.breaker.Name(), "error", err)
		}
		return s.fallback.Append(ctx, e)
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "audit sink circuit closed", "breaker", s.breaker.Name())
	}
	return nil
}

func (s *FailoverSink) shouldProbe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastProbe) < s.probeInterval {
		return false
	}
	s.lastProbe = now
	return true
}
