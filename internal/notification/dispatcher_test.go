package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "luwei/pkg/domain"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []Message
	err   error
	block chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, msg Message) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) IncrementNotifications(kind, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[kind+"/"+outcome]++
}

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

func newTemplates(t *testing.T) *Templates {
	t.Helper()
	tpl, err := NewTemplates("阿嬤滷味")
	require.NoError(t, err)
	return tpl
}

func confirmation() OrderConfirmation {
	return OrderConfirmation{
		OrderID: id.NewOrderID(),
		To:      "mei@example.com",
		Name:    "林美",
		Lines: []Line{
			{Name: "豆干", Quantity: 2, UnitPrice: decimal.RequireFromString("25"), Subtotal: decimal.RequireFromString("50")},
			{Name: "滷蛋", Quantity: 1, UnitPrice: decimal.RequireFromString("15"), Subtotal: decimal.RequireFromString("15")},
		},
		Total:    decimal.RequireFromString("65"),
		PlacedAt: time.Date(2025, 11, 3, 4, 0, 0, 0, time.UTC),
	}
}

func TestTemplates_OrderConfirmed(t *testing.T) {
	c := confirmation()
	msg, err := newTemplates(t).OrderConfirmed(c)
	require.NoError(t, err)

	assert.Equal(t, "mei@example.com", msg.To)
	assert.Contains(t, msg.Subject, "訂單確認")
	assert.Contains(t, msg.Subject, "阿嬤滷味")
	assert.Contains(t, msg.HTML, "豆干")
	assert.Contains(t, msg.HTML, "NT$ 65")
	assert.Contains(t, msg.HTML, c.OrderID.String())
	assert.Contains(t, msg.HTML, "2025/11/03 12:00", "times are shown in Taipei")
}

func TestTemplates_KeepsCents(t *testing.T) {
	c := confirmation()
	c.Lines = []Line{
		{Name: "海帶", Quantity: 1, UnitPrice: decimal.RequireFromString("12.50"), Subtotal: decimal.RequireFromString("12.50")},
	}
	c.Total = decimal.RequireFromString("12.50")
	msg, err := newTemplates(t).OrderConfirmed(c)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "NT$ 12.50")
	assert.NotContains(t, msg.HTML, "NT$ 12<")
}

func TestFormatMoney(t *testing.T) {
	tests := map[string]string{
		"65":      "NT$ 65",
		"65.00":   "NT$ 65",
		"12.5":    "NT$ 12.50",
		"13.50":   "NT$ 13.50",
		"0.05":    "NT$ 0.05",
		"1999.99": "NT$ 1999.99",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, formatMoney(decimal.RequireFromString(in)))
		})
	}
}

func TestTemplates_EscapesNames(t *testing.T) {
	c := confirmation()
	c.Name = "<script>alert(1)</script>"
	msg, err := newTemplates(t).OrderConfirmed(c)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestTemplates_StatusChanged(t *testing.T) {
	msg, err := newTemplates(t).StatusChanged(StatusChange{
		OrderID:   id.NewOrderID(),
		To:        "mei@example.com",
		Name:      "林美",
		From:      "pending",
		Status:    "completed",
		Total:     decimal.RequireFromString("65"),
		ChangedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Contains(t, msg.Subject, "已完成")
	assert.Contains(t, msg.HTML, "待處理")
	assert.Contains(t, msg.HTML, "已準備完成")
}

func TestDispatcher_SendsInBackground(t *testing.T) {
	sender := &fakeSender{}
	rec := &countingRecorder{}
	d := NewDispatcher(sender, newTemplates(t), WithRecorder(rec))

	d.OrderConfirmed(context.Background(), confirmation())
	require.NoError(t, d.Close(context.Background()))

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "mei@example.com", msgs[0].To)
	assert.Equal(t, 1, rec.get(KindOrderConfirmed+"/sent"))
}

func TestDispatcher_SurvivesCallerCancellation(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, newTemplates(t))

	ctx, cancel := context.WithCancel(context.Background())
	d.OrderConfirmed(ctx, confirmation())
	cancel()

	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, sender.messages(), 1)
}

func TestDispatcher_FailuresAreSwallowed(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	rec := &countingRecorder{}
	d := NewDispatcher(sender, newTemplates(t), WithRecorder(rec))

	assert.NotPanics(t, func() {
		d.OrderStatusChanged(context.Background(), StatusChange{
			OrderID: id.NewOrderID(), To: "mei@example.com", Name: "Mei", From: "pending", Status: "paid",
		})
	})
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, rec.get(KindOrderStatusChanged+"/failed"))
}

func TestDispatcher_NoRecipient(t *testing.T) {
	sender := &fakeSender{}
	rec := &countingRecorder{}
	d := NewDispatcher(sender, newTemplates(t), WithRecorder(rec))

	c := confirmation()
	c.To = ""
	d.OrderConfirmed(context.Background(), c)
	require.NoError(t, d.Close(context.Background()))

	assert.Empty(t, sender.messages())
	assert.Equal(t, 1, rec.get(KindOrderConfirmed+"/failed"))
}

func TestDispatcher_SendTimeout(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	rec := &countingRecorder{}
	d := NewDispatcher(sender, newTemplates(t), WithRecorder(rec), WithTimeout(20*time.Millisecond))

	d.OrderConfirmed(context.Background(), confirmation())
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, rec.get(KindOrderConfirmed+"/failed"))
}

func TestDispatcher_DropsNotificationsAfterClose(t *testing.T) {
	sender := &fakeSender{}
	rec := &countingRecorder{}
	d := NewDispatcher(sender, newTemplates(t), WithRecorder(rec))
	require.NoError(t, d.Close(context.Background()))

	assert.NotPanics(t, func() {
		d.OrderConfirmed(context.Background(), confirmation())
	})
	require.NoError(t, d.Close(context.Background()))
	assert.Empty(t, sender.messages())
	assert.Equal(t, 1, rec.get(KindOrderConfirmed+"/failed"))
}

func TestDispatcher_ConcurrentCloseAndDispatch(t *testing.T) {
	sender := &fakeSender{}
	rec := &countingRecorder{}
	d := NewDispatcher(sender, newTemplates(t), WithRecorder(rec))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.OrderConfirmed(context.Background(), confirmation())
		}()
	}
	require.NoError(t, d.Close(context.Background()))
	wg.Wait()
	require.NoError(t, d.Close(context.Background()))

	sent := rec.get(KindOrderConfirmed + "/sent")
	assert.Equal(t, len(sender.messages()), sent)
	assert.Equal(t, 20, sent+rec.get(KindOrderConfirmed+"/failed"), "every notification is either sent or counted as dropped")
}

func TestDispatcher_CloseHonoursContext(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	d := NewDispatcher(sender, newTemplates(t), WithTimeout(time.Minute))
	d.OrderConfirmed(context.Background(), confirmation())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	close(sender.block)
	require.NoError(t, d.Close(context.Background()))
}
