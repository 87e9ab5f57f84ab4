package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/safar/resale-market/internal/models"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	fail bool
}

func (m *fakeMailer) Send(to, subject, body string) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func TestDeliver(t *testing.T) {
	mailer := &fakeMailer{}
	n := &Notifier{
		mailer: mailer,
		lookup: func(ctx context.Context, userID int64) (string, error) {
			switch userID {
			case 1:
				return "buyer@example.com", nil
			case 2:
				return "", nil
			}
			return "", errors.New("user not found")
		},
	}

	n.Deliver(context.Background(),
		models.Notification{UserID: 1, Type: models.NotificationOrderCreated, Title: "Order placed", Message: "<b>ok</b>", Link: "/orders/1"},
		models.Notification{UserID: 2, Title: "no address"},
		models.Notification{UserID: 3, Title: "unknown user"},
	)

	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(mailer.sent))
	}
	got := mailer.sent[0]
	if got.to != "buyer@example.com" || got.subject != "Order placed" {
		t.Errorf("unexpected email %+v", got)
	}
	if strings.Contains(got.body, "<b>") {
		t.Error("message body must be escaped")
	}
	if !strings.Contains(got.body, `href="/orders/1"`) {
		t.Error("expected link in body")
	}
}

func TestDeliverWithoutMailer(t *testing.T) {
	var nilNotifier *Notifier
	nilNotifier.Deliver(context.Background(), models.Notification{UserID: 1})

	n := &Notifier{lookup: func(context.Context, int64) (string, error) {
		t.Fatal("lookup must not be called without a mailer")
		return "", nil
	}}
	n.Deliver(context.Background(), models.Notification{UserID: 1})
}

func TestDeliverLogsFailures(t *testing.T) {
	mailer := &fakeMailer{fail: true}
	n := &Notifier{
		mailer: mailer,
		lookup: func(context.Context, int64) (string, error) { return "a@example.com", nil },
	}
	n.Deliver(context.Background(), models.Notification{UserID: 1, Title: "x"})
}
