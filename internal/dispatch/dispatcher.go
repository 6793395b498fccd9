package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"NotiFlow/internal/models"
	"NotiFlow/internal/notification"
	"NotiFlow/internal/prefs"
	"NotiFlow/internal/sender"
	"NotiFlow/internal/template"
)

// systemTemplates are infrastructure-triggered messages (auth, payment
// lifecycle) delivered without a notification audit record.
var systemTemplates = map[string]bool{
	"password-reset":     true,
	"otp":                true,
	"email-verification": true,
	"payment-receipt":    true,
	"payment-failed":     true,
}

// IsSystemTemplate reports whether a template name is infrastructure
// mail that bypasses the notification sink.
func IsSystemTemplate(name string) bool { return systemTemplates[name] }

// SendRequest is one immediate delivery: the same path serves the sync
// API and the queue workers.
type SendRequest struct {
	Channel  models.Channel
	UserID   string
	To       string
	Template string
	Subject  string // optional subject override
	Data     map[string]interface{}
}

// Result is the structured outcome returned to callers; the dispatcher
// never surfaces a bare panic.
type Result struct {
	Success        bool   `json:"success"`
	Skipped        bool   `json:"skipped,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Provider       string `json:"provider,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	NotificationID string `json:"notification_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Dispatcher wires the preference gate, renderer, provider chain and
// notification sink into the single send path.
type Dispatcher struct {
	renderer *template.Renderer
	chains   map[models.Channel]*sender.Chain
	gate     *prefs.Gate
	sink     *notification.Sink
	log      *zap.Logger
}

func New(renderer *template.Renderer, chains map[models.Channel]*sender.Chain, gate *prefs.Gate, sink *notification.Sink, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		renderer: renderer,
		chains:   chains,
		gate:     gate,
		sink:     sink,
		log:      log,
	}
}

// Validate rejects a request before any send attempt. Validation
// failures are never retried.
func (d *Dispatcher) Validate(req SendRequest) error {
	if !req.Channel.Valid() {
		return fmt.Errorf("invalid channel %q", req.Channel)
	}
	if req.To == "" {
		return fmt.Errorf("recipient is required")
	}
	if req.Template == "" {
		return fmt.Errorf("template is required")
	}
	if _, ok := d.chains[req.Channel]; !ok {
		return fmt.Errorf("channel %q has no configured send path", req.Channel)
	}
	return nil
}

// Send runs gate -> render -> provider chain -> audit sink.
func (d *Dispatcher) Send(ctx context.Context, req SendRequest) Result {
	if err := d.Validate(req); err != nil {
		return Result{Error: err.Error()}
	}

	decision := d.gate.ShouldSend(ctx, req.UserID, req.Channel)
	if !decision.ShouldSend {
		d.log.Info("send skipped by preference gate",
			zap.String("user_id", req.UserID),
			zap.String("channel", string(req.Channel)),
			zap.String("reason", decision.Reason),
		)
		return Result{Skipped: true, Reason: decision.Reason}
	}

	rendered := d.renderer.Render(ctx, req.Template, req.Channel, req.Data)
	subject := rendered.Subject
	if req.Subject != "" {
		subject = req.Subject
	}

	// Only user-facing templates with a resolvable user leave a trace.
	var notifID string
	if !IsSystemTemplate(req.Template) {
		if n := d.sink.Create(ctx, req.UserID, req.Template, req.Channel, subject, rendered.Text); n != nil {
			notifID = n.ID
		}
	}

	msg := &models.Message{
		Channel: req.Channel,
		To:      req.To,
		Subject: subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	}

	res := d.chains[req.Channel].Send(ctx, msg)

	if notifID != "" {
		d.sink.AppendLog(ctx, notifID, res.Provider, res.MessageID, res.Error)
		if res.Success {
			d.sink.MarkSent(ctx, notifID)
		} else {
			d.sink.MarkFailed(ctx, notifID)
		}
	}

	return Result{
		Success:        res.Success,
		Provider:       res.Provider,
		MessageID:      res.MessageID,
		NotificationID: notifID,
		Error:          res.Error,
	}
}

// Health aggregates transport reachability across channels for the
// health probe.
func (d *Dispatcher) Health(ctx context.Context) map[string]string {
	out := make(map[string]string)
	for _, chain := range d.chains {
		for name, err := range chain.Health(ctx) {
			if err != nil {
				out[name] = err.Error()
			} else {
				out[name] = "ok"
			}
		}
	}
	return out
}
