// Package publisher delivers audit events to a sink, optionally through a
// bounded in-memory queue so request paths never wait on the sink.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "luwei/pkg/platform/audit"
	"luwei/pkg/requestcontext"
)

// ErrBufferFull is returned by Emit when the async queue has no room.
var ErrBufferFull = errors.New("audit buffer full")

// DropRecorder counts events that never reached the sink. Optional.
type DropRecorder interface {
	IncrementAuditDropped()
}

// Publisher stamps and forwards events to a sink.
type Publisher struct {
	sink    audit.Sink
	logger  *slog.Logger
	drops   DropRecorder
	timeout time.Duration

	queue     chan queued
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

type queued struct {
	ctx   context.Context
	event audit.Event
}

type Option func(*Publisher)

// WithAsyncBuffer queues up to size events and appends them from a worker goroutine.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan queued, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithDropRecorder(d DropRecorder) Option {
	return func(p *Publisher) {
		p.drops = d
	}
}

// WithSinkTimeout bounds each asynchronous append.
func WithSinkTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPublisher(sink audit.Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:    sink,
		logger:  slog.Default(),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit fills in timestamp, category and request metadata, then appends the event
// synchronously or enqueues it.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = event.Type.Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}

	if p.queue == nil {
		return p.sink.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped(ctx, event, "publisher closed")
		return ErrBufferFull
	}
	select {
	case p.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.dropped(ctx, event, "buffer full")
		return ErrBufferFull
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for q := range p.queue {
		ctx, cancel := context.WithTimeout(q.ctx, p.timeout)
		if err := p.sink.Append(ctx, q.event); err != nil {
			p.dropped(ctx, q.event, err.Error())
		}
		cancel()
	}
}

func (p *Publisher) dropped(ctx context.Context, event audit.Event, reason string) {
	p.logger.WarnContext(ctx, "audit event dropped",
		"event", string(event.Type),
		"reason", reason,
		"request_id", event.RequestID,
	)
	if p.drops != nil {
		p.drops.IncrementAuditDropped()
	}
}

// Close stops accepting events and waits until queued ones are appended.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		if p.queue != nil {
			close(p.queue)
			p.wg.Wait()
		}
	})
}
