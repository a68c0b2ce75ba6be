// Package mailsender delivers queued verification emails over SMTP.
package mailsender

import (
	"errors"
	"fmt"

	"gametrack/internal/models"

	"gopkg.in/gomail.v2"
)

var ErrInvalidMessage = errors.New("message has no recipient or sender")

type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	dialer Dialer
}

func New(host string, port int, username, password string) *Mailer {
	return &Mailer{dialer: gomail.NewDialer(host, port, username, password)}
}

// NewWithDialer uses d instead of a real SMTP connection.
func NewWithDialer(d Dialer) *Mailer {
	return &Mailer{dialer: d}
}

func (m *Mailer) Send(msg models.Message) error {
	const op = "mailsender.Send"

	gm, err := Compose(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Compose builds the HTML email with a plain-text alternative carrying the link.
func Compose(msg models.Message) (*gomail.Message, error) {
	if msg.Email == "" || msg.From == "" {
		return nil, ErrInvalidMessage
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", msg.From)
	gm.SetHeader("To", msg.Email)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", "Confirm your email: "+msg.Link)
	gm.AddAlternative("text/html", msg.Body)

	return gm, nil
}
