package transport

import (
	"context"
	"fmt"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"

	"NotiFlow/internal/models"
)

// Mailgun is the API-based secondary email transport.
type Mailgun struct {
	Domain string
	APIKey string
	Sender string
}

func (m *Mailgun) Name() string { return "mailgun" }

func (m *Mailgun) Send(ctx context.Context, msg *models.Message) (string, error) {
	client := mg.NewMailgun(m.Domain, m.APIKey)

	from := msg.From
	if from == "" {
		from = m.Sender
	}
	message := client.NewMessage(from, msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}

	c, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, id, err := client.Send(c, message)
	if err != nil {
		return "", fmt.Errorf("mailgun send error: %w", err)
	}
	return id, nil
}

func (m *Mailgun) Health(ctx context.Context) error {
	client := mg.NewMailgun(m.Domain, m.APIKey)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.GetDomain(c, m.Domain); err != nil {
		return fmt.Errorf("mailgun domain check error: %w", err)
	}
	return nil
}
