// Package notify tells people about events that concern them, such as a
// document being shared with them. Delivery is best-effort: callers log
// failures and carry on.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// ShareNotice is sent to the recipient of a new or renewed share grant.
type ShareNotice struct {
	RecipientEmail string
	RecipientName  string
	OwnerName      string
	DocumentName   string
	ExpiresAt      *time.Time
}

type Notifier interface {
	DocumentShared(ctx context.Context, n ShareNotice) error
}

// Subject and body of the share e-mail.
func (n ShareNotice) render() (string, string) {
	subject := fmt.Sprintf("%s shared a document with you", n.OwnerName)

	until := "until the owner revokes access"
	if n.ExpiresAt != nil {
		until = "until " + n.ExpiresAt.UTC().Format("2 Jan 2006 15:04 MST")
	}
	greeting := "Hello"
	if n.RecipientName != "" {
		greeting = "Hello " + n.RecipientName
	}
	body := fmt.Sprintf("%s,\n\n%s has shared %q with you on carelink. You can view it %s.\n",
		greeting, n.OwnerName, n.DocumentName, until)
	return subject, body
}

// sender is the part of *gomail.Dialer MailNotifier uses.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailNotifier delivers notices over SMTP.
type MailNotifier struct {
	dialer sender
	from   string
}

func NewMailNotifier(host string, port int, username, password, from string) *MailNotifier {
	return &MailNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *MailNotifier) DocumentShared(ctx context.Context, n ShareNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body := n.render()

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", n.RecipientEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send share notice to %s: %w", n.RecipientEmail, err)
	}
	return nil
}

// LogNotifier records notices in the log instead of sending them. Used when
// SMTP is not configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) DocumentShared(ctx context.Context, n ShareNotice) error {
	evt := l.logger.Info().
		Str("recipient", n.RecipientEmail).
		Str("document", n.DocumentName)
	if n.ExpiresAt != nil {
		evt = evt.Time("expires_at", *n.ExpiresAt)
	}
	evt.Msg("document shared")
	return nil
}
