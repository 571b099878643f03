package notifications

import (
	"context"
	"fmt"
)

type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer delivers one message. Implementations must honour ctx cancellation.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// PasswordResetMessage renders the reset email. resetURL carries the
// plaintext token and is the only place it ever leaves the server.
func PasswordResetMessage(appName, to, resetURL string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s password recovery", appName),
		Text: fmt.Sprintf(
			"Your password reset token is as follows:\n\n%s\n\nIf you have not requested this email, then ignore it.",
			resetURL,
		),
	}
}
