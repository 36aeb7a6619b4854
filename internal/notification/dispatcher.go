package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Recorder counts notification outcomes. Optional.
type Recorder interface {
	IncrementNotifications(kind, outcome string)
}

// Dispatcher renders notifications and sends them in the background. It is
// built once at startup and shared by the services that trigger emails.
type Dispatcher struct {
	sender    Sender
	templates *Templates
	logger    *slog.Logger
	recorder  Recorder
	timeout   time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// WithTimeout bounds a single send.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func NewDispatcher(sender Sender, templates *Templates, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:    sender,
		templates: templates,
		logger:    slog.Default(),
		timeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OrderConfirmed emails the checkout receipt.
func (d *Dispatcher) OrderConfirmed(ctx context.Context, c OrderConfirmation) {
	msg, err := d.templates.OrderConfirmed(c)
	if err != nil {
		d.fail(ctx, KindOrderConfirmed, c.OrderID.String(), "render", err)
		return
	}
	d.dispatch(ctx, KindOrderConfirmed, c.OrderID.String(), msg)
}

// OrderStatusChanged emails the new status of an order.
func (d *Dispatcher) OrderStatusChanged(ctx context.Context, c StatusChange) {
	msg, err := d.templates.StatusChanged(c)
	if err != nil {
		d.fail(ctx, KindOrderStatusChanged, c.OrderID.String(), "render", err)
		return
	}
	d.dispatch(ctx, KindOrderStatusChanged, c.OrderID.String(), msg)
}

func (d *Dispatcher) dispatch(ctx context.Context, kind, orderID string, msg Message) {
	if msg.To == "" {
		d.fail(ctx, kind, orderID, "no_recipient", nil)
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.fail(ctx, kind, orderID, "closed", nil)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	sendCtx := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(sendCtx, d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, msg); err != nil {
			d.fail(ctx, kind, orderID, "send", err)
			return
		}
		d.record(kind, "sent")
		d.logger.InfoContext(ctx, "notification sent", "kind", kind, "order_id", orderID)
	}()
}

func (d *Dispatcher) fail(ctx context.Context, kind, orderID, stage string, err error) {
	attrs := []any{"kind", kind, "order_id", orderID, "stage", stage}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	d.logger.WarnContext(ctx, "notification failed", attrs...)
	d.record(kind, "failed")
}

func (d *Dispatcher) record(kind, outcome string) {
	if d.recorder != nil {
		d.recorder.IncrementNotifications(kind, outcome)
	}
}

// Close stops accepting sends and waits for in-flight ones, or until ctx is
// done. Notifications triggered afterwards are dropped and counted as failed.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
