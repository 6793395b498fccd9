package transport

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"NotiFlow/internal/models"
)

// SMTP is the primary email transport.
type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (s *SMTP) Name() string { return "smtp" }

func (s *SMTP) Send(ctx context.Context, msg *models.Message) (string, error) {
	m := gomail.NewMessage()

	from := msg.From
	if from == "" {
		from = s.From
	}
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.HTML != "" {
		m.SetBody("text/html", msg.HTML)
		if msg.Text != "" {
			m.AddAlternative("text/plain", msg.Text)
		}
	} else {
		m.SetBody("text/plain", msg.Text)
	}

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("smtp send error: %w", err)
		}
	}

	// SMTP has no provider message id; synthesize a stable marker.
	return fmt.Sprintf("smtp-%s", msg.To), nil
}

func (s *SMTP) Health(ctx context.Context) error {
	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)

	done := make(chan error, 1)
	go func() {
		closer, err := d.Dial()
		if err == nil {
			closer.Close()
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp dial error: %w", err)
		}
		return nil
	}
}
