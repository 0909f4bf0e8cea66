// Package smtp delivers mail.Message values over SMTP with gomail.
package smtp

import (
	"context"
	"errors"

	"gopkg.in/gomail.v2"

	"github.com/Tadeu17/authentication-template/mail"
)

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender is a mail.Mailer backed by a gomail dialer.
type Sender struct {
	dialer *gomail.Dialer
	from   string
	send   func(m *gomail.Message) error
}

var _ mail.Mailer = (*Sender)(nil)

// New validates cfg and returns a Sender.
func New(cfg Config) (*Sender, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host required")
	}
	if cfg.Port <= 0 {
		return nil, errors.New("smtp port must be > 0")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address required")
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	s := &Sender{dialer: dialer, from: cfg.From}
	s.send = func(m *gomail.Message) error { return s.dialer.DialAndSend(m) }
	return s, nil
}

// Send builds a multipart message and delivers it. gomail has no context
// support, so the dial runs in a goroutine and Send returns early with
// ctx.Err() when ctx ends first.
func (s *Sender) Send(ctx context.Context, msg mail.Message) error {
	m := s.build(msg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.send(m)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sender) build(msg mail.Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Locale != "" {
		m.SetHeader("Content-Language", msg.Locale)
	}
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	return m
}
