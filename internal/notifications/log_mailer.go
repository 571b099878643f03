package notifications

import (
	"context"
	"log/slog"
)

// LogMailer writes messages to the log instead of sending them. Dev only:
// the reset link, token included, ends up in the log output.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.log.InfoContext(ctx, "mail.outbound",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
