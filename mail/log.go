package mail

import (
	"context"
	"log/slog"
)

// Logger is a development mailer that writes the message to a slog
// logger instead of delivering it.
type Logger struct {
	log *slog.Logger
}

// NewLogger wraps log as a mailer. A nil log uses slog.Default.
func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log}
}

func (l *Logger) Send(ctx context.Context, to, subject, htmlBody string) error {
	l.log.InfoContext(ctx, "mail (not delivered)",
		"to", to,
		"subject", subject,
		"bytes", len(htmlBody),
	)
	return nil
}
