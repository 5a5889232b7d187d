package mail

import (
	"context"
	"log/slog"
)

type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	Text      string
	HTML      string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the logger instead of delivering them. It is
// used when no SMTP host is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail delivery skipped, no smtp host configured",
		"to", msg.ToAddress,
		"subject", msg.Subject,
	)
	return nil
}
