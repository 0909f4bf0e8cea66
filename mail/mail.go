package mail

import (
	"context"
	"net/url"
	"strings"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
	Locale  string
}

// Mailer delivers a message. Implementations must honour ctx cancellation.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to [Mailer].
type MailerFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Links builds the action URLs embedded in outgoing mail.
type Links struct {
	BaseURL string
}

// Verification returns {base}/verify-email?token={token}.
func (l Links) Verification(token string) string {
	return l.build("/verify-email", token)
}

// PasswordReset returns {base}/reset-password?token={token}.
func (l Links) PasswordReset(token string) string {
	return l.build("/reset-password", token)
}

func (l Links) build(path, token string) string {
	return strings.TrimRight(l.BaseURL, "/") + path + "?token=" + url.QueryEscape(token)
}
