package audit

import (
	"context"
	"log/slog"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "audit")}
}

func (s *LogSink) Append(ctx context.Context, e Event) error {
	attrs := []any{
		"event", string(e.Type),
		"category", string(e.Category),
		"timestamp", e.Timestamp,
	}
	if !e.AccountID.IsNil() {
		attrs = append(attrs, "account_id", e.AccountID.String())
	}
	if e.Subject != "" {
		attrs = append(attrs, "subject", e.Subject)
	}
	if e.Reason != "" {
		attrs = append(attrs, "reason", e.Reason)
	}
	if e.RequestID != "" {
		attrs = append(attrs, "request_id", e.RequestID)
	}
	if e.ClientIP != "" {
		attrs = append(attrs, "client_ip", e.ClientIP)
	}
	for k, v := range e.Details {
		attrs = append(attrs, k, v)
	}
	s.logger.InfoContext(ctx, "audit event", attrs...)
	return nil
}
