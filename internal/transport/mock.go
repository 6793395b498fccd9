package transport

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"NotiFlow/internal/models"
)

// Mock synthesizes successful deliveries. The sender chain falls back
// to it in development and test environments when no real transport is
// configured, so queue processing and bulk fan-out stay testable
// without live credentials.
type Mock struct{}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Send(_ context.Context, _ *models.Message) (string, error) {
	return fmt.Sprintf("mock-%s", uuid.NewString()), nil
}

func (m *Mock) Health(_ context.Context) error { return nil }
