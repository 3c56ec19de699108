package services

import (
	"context"
	"fmt"
	"html"

	"github.com/yeremiapane/qr-restaurant/models"
	"gopkg.in/gomail.v2"
)

// MailNotifier e-mails the customer when their session has a receipt-worthy event.
type MailNotifier struct {
	From string
	// Send delivers the message; it defaults to an SMTP dialer.
	Send func(m *gomail.Message) error
}

func NewMailNotifier(host string, port int, user, password, sender string) *MailNotifier {
	dialer := gomail.NewDialer(host, port, user, password)
	from := user
	if sender != "" {
		from = fmt.Sprintf("%s <%s>", sender, user)
	}
	return &MailNotifier{
		From: from,
		Send: func(m *gomail.Message) error { return dialer.DialAndSend(m) },
	}
}

var mailedTypes = map[string]bool{
	models.NotificationPaymentCompleted: true,
	models.NotificationSessionClosed:    true,
}

func (n *MailNotifier) Notify(ctx context.Context, ev NotificationEvent) error {
	if ev.CustomerEmail == "" || ev.Audience != AudienceCustomer || !mailedTypes[ev.Type] {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mailer := gomail.NewMessage()
	mailer.SetHeader("From", n.From)
	mailer.SetHeader("To", ev.CustomerEmail)
	mailer.SetHeader("Subject", ev.Title)
	mailer.SetBody("text/html", fmt.Sprintf("<p>%s</p>", html.EscapeString(ev.Message)))

	if err := n.Send(mailer); err != nil {
		return fmt.Errorf("send mail to %s: %w", ev.CustomerEmail, err)
	}
	return nil
}
