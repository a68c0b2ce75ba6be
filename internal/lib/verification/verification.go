package verification

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"

	"gametrack/internal/models"
)

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

// Mail describes the sender side of the verification email.
type Mail struct {
	AppName     string
	FrontendURL string
	Sender      string
}

func VerifyUserEmail(
	ctx context.Context,
	log *slog.Logger,
	pub Publisher,
	mail Mail,
	email, token string,
) error {
	const op = "verification.VerifyUserEmail"

	msg := NewMessage(mail, email, token)

	if err := pub.SendMessage(ctx, msg); err != nil {
		log.Error("failed to send verification link", slog.Any("err", err))

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func Link(frontendURL, token string) string {
	return fmt.Sprintf("%s/auth/verify?token=%s", strings.TrimRight(frontendURL, "/"), url.QueryEscape(token))
}

func NewMessage(mail Mail, email, token string) models.Message {
	link := Link(mail.FrontendURL, token)

	body := fmt.Sprintf(
		"Hey %s,<br><br>"+
			"Please verify your email address by following the link below.<br><br>"+
			"<a href=\"%s\">Confirm your email</a><br><br>"+
			"Your email address won't be updated until you verify it.<br><br><br>"+
			"%s Team",
		html.EscapeString(email), link, html.EscapeString(mail.AppName),
	)

	return models.Message{
		Email:   email,
		Link:    link,
		Subject: "Verify your Email",
		Body:    body,
		From:    mail.Sender,
	}
}
