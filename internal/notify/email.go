package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailChannel письмо через SMTP
type EmailChannel struct {
	cfg SMTPConfig
}

func NewEmailChannel(cfg SMTPConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, user *model.User, n Notification) error {
	if user.Email == "" {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(c.cfg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(user.Email); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(n.Title)
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf("Hola %s,\n\n%s\n\nEquipo Onlycation", user.FirstName, n.Body))

	opts := []mail.Option{
		mail.WithPort(c.cfg.Port),
		mail.WithTimeout(10 * time.Second),
	}
	if c.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.cfg.Username),
			mail.WithPassword(c.cfg.Password),
		)
	}

	client, err := mail.NewClient(c.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
