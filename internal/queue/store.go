package queue

import (
	"context"
	"errors"
	"time"

	"NotiFlow/internal/models"
)

// Queue errors.
var (
	// ErrJobNotFound is returned by status, cancel and state updates
	// when no job exists for the id+lane pair.
	ErrJobNotFound = errors.New("queue: job not found")

	// ErrLaneUnknown is returned when an operation names a lane the
	// engine was not configured with.
	ErrLaneUnknown = errors.New("queue: unknown lane")

	// ErrNoEligibleJob is returned by Claim when nothing is waiting.
	ErrNoEligibleJob = errors.New("queue: no eligible job")

	// ErrAlreadyStarted is returned when starting a running engine.
	ErrAlreadyStarted = errors.New("queue: already started")

	// ErrNoHandler is returned when a lane has no registered handler.
	ErrNoHandler = errors.New("queue: no handler registered for lane")

	// ErrPermanent marks a processing failure that must not be
	// retried, regardless of remaining attempts.
	ErrPermanent = errors.New("queue: permanent failure")
)

// Store is the durable job store behind the engine. Claim must be
// atomic: a waiting job transitions to active exactly once, so no two
// workers ever own the same attempt.
type Store interface {
	Create(ctx context.Context, job *models.Job) error
	Claim(ctx context.Context, lane models.Lane, now time.Time) (*models.Job, error)
	MarkCompleted(ctx context.Context, id string, lane models.Lane, attempts int) error
	MarkFailed(ctx context.Context, id string, lane models.Lane, attempts int, lastError string) error
	Reschedule(ctx context.Context, id string, lane models.Lane, attempts int, nextRunAt time.Time, lastError string) error
	Get(ctx context.Context, id string, lane models.Lane) (*models.Job, error)
	Remove(ctx context.Context, id string, lane models.Lane) error
	Stats(ctx context.Context) (map[models.Lane]models.LaneStats, error)
	Cleanup(ctx context.Context, olderThan time.Time, keepCompleted, keepFailed int) (int, error)
	RecoverStalled(ctx context.Context, stalledBefore time.Time) (int, error)
}
