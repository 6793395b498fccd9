package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"NotiFlow/internal/models"
)

// SMSGateway delivers SMS through a generic JSON-over-HTTP gateway:
// POST <url>/messages with {"to","from","body"}, bearer auth.
type SMSGateway struct {
	URL    string
	APIKey string
	From   string

	// Client overridable for tests; defaults to a 10s-timeout client.
	Client *http.Client
}

func (g *SMSGateway) Name() string { return "sms_gateway" }

func (g *SMSGateway) httpClient() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

type smsRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

type smsResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

func (g *SMSGateway) Send(ctx context.Context, msg *models.Message) (string, error) {
	from := msg.From
	if from == "" {
		from = g.From
	}
	payload, err := json.Marshal(smsRequest{To: msg.To, From: from, Body: msg.Text})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("sms gateway request error: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var parsed smsResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != "" {
			return "", fmt.Errorf("sms gateway rejected message: %s", parsed.Error)
		}
		return "", fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return parsed.MessageID, nil
}

func (g *SMSGateway) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL+"/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("sms gateway health returned status %d", resp.StatusCode)
	}
	return nil
}
