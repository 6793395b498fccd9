package transport

import (
	"context"

	"NotiFlow/internal/models"
)

// Transport is a single delivery provider. Send returns the provider's
// message id on success; Health reports current reachability for the
// service health probe.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg *models.Message) (string, error)
	Health(ctx context.Context) error
}
