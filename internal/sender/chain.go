package sender

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"NotiFlow/internal/metrics"
	"NotiFlow/internal/models"
	"NotiFlow/internal/transport"
)

// Chain attempts delivery through an ordered list of transports,
// returning on the first success. It never retries within a single
// call: retrying a failed send is the queue's responsibility.
//
// When no transport is configured and mocking is allowed (development
// and test environments), the chain synthesizes a successful result so
// downstream workflows remain exercisable without credentials.
type Chain struct {
	channel    models.Channel
	transports []transport.Transport
	mock       transport.Transport
	log        *zap.Logger
}

func NewChain(channel models.Channel, transports []transport.Transport, allowMock bool, log *zap.Logger) *Chain {
	c := &Chain{
		channel:    channel,
		transports: transports,
		log:        log,
	}
	if allowMock {
		c.mock = &transport.Mock{}
	}
	return c
}

// Configured reports whether any real transport backs this chain.
func (c *Chain) Configured() bool { return len(c.transports) > 0 }

func (c *Chain) Send(ctx context.Context, msg *models.Message) models.SendResult {
	var errs *multierror.Error

	for _, t := range c.transports {
		start := time.Now()
		id, err := t.Send(ctx, msg)
		elapsed := time.Since(start)

		metrics.ProviderLatency.WithLabelValues(t.Name()).Observe(elapsed.Seconds())

		if err == nil {
			metrics.SendAttempts.WithLabelValues(string(c.channel), t.Name(), "success").Inc()
			return models.SendResult{
				Success:      true,
				Provider:     t.Name(),
				MessageID:    id,
				ResponseTime: elapsed,
			}
		}

		metrics.SendAttempts.WithLabelValues(string(c.channel), t.Name(), "failure").Inc()
		c.log.Warn("transport failed, falling through",
			zap.String("provider", t.Name()),
			zap.String("channel", string(c.channel)),
			zap.Error(err),
		)
		errs = multierror.Append(errs, err)
	}

	if len(c.transports) == 0 && c.mock != nil {
		start := time.Now()
		id, _ := c.mock.Send(ctx, msg)
		metrics.SendAttempts.WithLabelValues(string(c.channel), c.mock.Name(), "success").Inc()
		return models.SendResult{
			Success:      true,
			Provider:     c.mock.Name(),
			MessageID:    id,
			ResponseTime: time.Since(start),
		}
	}

	result := models.SendResult{Error: "all providers failed"}
	if errs != nil {
		result.Error = "all providers failed: " + errs.Error()
	}
	return result
}

// Health probes each transport and reports reachability by name.
func (c *Chain) Health(ctx context.Context) map[string]error {
	out := make(map[string]error, len(c.transports)+1)
	for _, t := range c.transports {
		out[t.Name()] = t.Health(ctx)
	}
	if len(c.transports) == 0 && c.mock != nil {
		out[c.mock.Name()] = nil
	}
	return out
}
