package notification

import (
	"context"
	"log/slog"
)

// LogSender logs instead of sending. Used when no email provider is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not sent, no provider configured",
		"to", msg.To,
		"subject", msg.Subject,
		"bytes", len(msg.HTML),
	)
	return nil
}
