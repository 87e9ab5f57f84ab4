// Package notify delivers stored notifications by email.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"log"

	"github.com/safar/resale-market/internal/config"
	"github.com/safar/resale-market/internal/models"
	"github.com/safar/resale-market/internal/store"
	"gopkg.in/gomail.v2"
)

type Mailer interface {
	Send(to, subject, htmlBody string) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// Notifier emails notifications that were already stored. Without a mailer
// it does nothing; the rows remain readable through the API.
type Notifier struct {
	mailer Mailer
	lookup func(ctx context.Context, userID int64) (string, error)
}

func New(db *sql.DB, cfg config.MailConfig) *Notifier {
	n := &Notifier{
		lookup: func(ctx context.Context, userID int64) (string, error) {
			return store.UserEmail(ctx, db, userID)
		},
	}
	if cfg.Enabled() {
		n.mailer = NewSMTPMailer(cfg)
	}
	return n
}

// Deliver sends one email per notification. Failures are logged, never
// returned: the notification row is the source of truth.
func (n *Notifier) Deliver(ctx context.Context, notes ...models.Notification) {
	if n == nil || n.mailer == nil {
		return
	}

	for _, note := range notes {
		to, err := n.lookup(ctx, note.UserID)
		if err != nil {
			log.Printf("notify: lookup email for user %d: %v", note.UserID, err)
			continue
		}
		if to == "" {
			continue
		}

		if err := n.mailer.Send(to, note.Title, renderBody(note)); err != nil {
			log.Printf("notify: %s to user %d: %v", note.Type, note.UserID, err)
		}
	}
}

func renderBody(note models.Notification) string {
	body := fmt.Sprintf("<h2>%s</h2>\n<p>%s</p>\n", html.EscapeString(note.Title), html.EscapeString(note.Message))
	if note.Link != "" {
		body += fmt.Sprintf("<p><a href=\"%s\">Open</a></p>\n", html.EscapeString(note.Link))
	}
	return body
}
