package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"NotiFlow/internal/metrics"
	"NotiFlow/internal/models"
)

// ProcessFunc executes one job attempt. Returning nil completes the
// job; returning an error wrapping ErrPermanent fails it immediately;
// any other error consumes an attempt and reschedules with backoff.
type ProcessFunc func(ctx context.Context, job *models.Job) error

// LaneConfig sets the concurrency ceiling and throughput cap for one
// lane. Ceilings differ by cost/risk: email highest, bulk lowest.
type LaneConfig struct {
	Workers   int
	RateLimit rate.Limit
	Burst     int
}

type Options struct {
	MaxAttempts   int
	BackoffBase   time.Duration
	StallTimeout  time.Duration
	PollInterval  time.Duration
	KeepCompleted int
	KeepFailed    int
	Lanes         map[models.Lane]LaneConfig
}

// Engine drives the multi-lane durable job queue: per-lane worker
// pools pulling from the shared store, exponential-backoff retry,
// stalled-job recovery and retention-bounded cleanup.
type Engine struct {
	store    Store
	opts     Options
	log      *zap.Logger
	handlers map[models.Lane]ProcessFunc
	limiters map[models.Lane]*rate.Limiter
	wakeups  map[models.Lane]chan struct{}

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewEngine(store Store, opts Options, log *zap.Logger) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = 2 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}

	limiters := make(map[models.Lane]*rate.Limiter, len(opts.Lanes))
	wakeups := make(map[models.Lane]chan struct{}, len(opts.Lanes))
	for lane, lc := range opts.Lanes {
		burst := lc.Burst
		if burst <= 0 {
			burst = 1
		}
		limiters[lane] = rate.NewLimiter(lc.RateLimit, burst)
		wakeups[lane] = make(chan struct{}, 1)
	}

	return &Engine{
		store:    store,
		opts:     opts,
		log:      log,
		handlers: make(map[models.Lane]ProcessFunc, len(opts.Lanes)),
		limiters: limiters,
		wakeups:  wakeups,
	}
}

// Handle registers the processing function for a lane. Must be called
// before Start.
func (e *Engine) Handle(lane models.Lane, fn ProcessFunc) {
	e.handlers[lane] = fn
}

// Start spawns the per-lane worker pools and the maintenance sweeper.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}
	for lane := range e.opts.Lanes {
		if _, ok := e.handlers[lane]; !ok {
			return fmt.Errorf("%w: %s", ErrNoHandler, lane)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.started = true

	for lane, lc := range e.opts.Lanes {
		for i := 0; i < lc.Workers; i++ {
			e.wg.Add(1)
			go e.worker(ctx, lane, i)
		}
		e.log.Info("lane workers started",
			zap.String("lane", string(lane)),
			zap.Int("workers", lc.Workers),
		)
	}

	e.wg.Add(1)
	go e.sweeper(ctx)

	return nil
}

// Stop drains the workers. In-flight attempts finish; nothing new is
// claimed afterward.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// ----------------------------
// Enqueue
// ----------------------------

type enqueueConfig struct {
	delay       time.Duration
	maxAttempts int
}

type EnqueueOption func(*enqueueConfig)

// WithDelay makes the job ineligible until now+d.
func WithDelay(d time.Duration) EnqueueOption {
	return func(c *enqueueConfig) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithMaxAttempts overrides the configured attempt budget.
func WithMaxAttempts(n int) EnqueueOption {
	return func(c *enqueueConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Enqueue persists a new waiting job and returns its id.
func (e *Engine) Enqueue(ctx context.Context, lane models.Lane, typ models.JobType, payload models.JobPayload, opts ...EnqueueOption) (string, error) {
	if _, ok := e.opts.Lanes[lane]; !ok {
		return "", fmt.Errorf("%w: %s", ErrLaneUnknown, lane)
	}

	cfg := enqueueConfig{maxAttempts: e.opts.MaxAttempts}
	for _, opt := range opts {
		opt(&cfg)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:          uuid.NewString(),
		Lane:        lane,
		Type:        typ,
		Payload:     payload,
		State:       models.JobWaiting,
		MaxAttempts: cfg.maxAttempts,
		BackoffBase: e.opts.BackoffBase,
		NextRunAt:   now.Add(cfg.delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue %s/%s: %w", lane, typ, err)
	}

	e.wake(lane)

	e.log.Info("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("lane", string(lane)),
		zap.String("type", string(typ)),
		zap.Duration("delay", cfg.delay),
	)
	return job.ID, nil
}

func (e *Engine) wake(lane models.Lane) {
	if ch, ok := e.wakeups[lane]; ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// ----------------------------
// Query / control
// ----------------------------

// Status returns a snapshot of the job, whatever its state.
func (e *Engine) Status(ctx context.Context, id string, lane models.Lane) (*models.Job, error) {
	return e.store.Get(ctx, id, lane)
}

// Cancel removes the job unconditionally if found. An already-active
// attempt is not interrupted: cancellation only guarantees no further
// scheduling. Cancelling twice (or a bogus id) reports ErrJobNotFound
// without side effects.
func (e *Engine) Cancel(ctx context.Context, id string, lane models.Lane) error {
	return e.store.Remove(ctx, id, lane)
}

// Stats reports per-lane job counts and refreshes the depth gauges.
func (e *Engine) Stats(ctx context.Context) (map[models.Lane]models.LaneStats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	for lane, st := range stats {
		metrics.QueueDepth.WithLabelValues(string(lane), string(models.JobWaiting)).Set(float64(st.Waiting))
		metrics.QueueDepth.WithLabelValues(string(lane), string(models.JobActive)).Set(float64(st.Active))
		metrics.QueueDepth.WithLabelValues(string(lane), string(models.JobCompleted)).Set(float64(st.Completed))
		metrics.QueueDepth.WithLabelValues(string(lane), string(models.JobFailed)).Set(float64(st.Failed))
	}
	return stats, nil
}

// Cleanup removes finished jobs older than the cutoff (zero = retention
// caps only). Retention caps apply either way.
func (e *Engine) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	return e.store.Cleanup(ctx, olderThan, e.opts.KeepCompleted, e.opts.KeepFailed)
}

// ----------------------------
// Workers
// ----------------------------

func (e *Engine) worker(ctx context.Context, lane models.Lane, id int) {
	defer e.wg.Done()

	limiter := e.limiters[lane]
	wakeup := e.wakeups[lane]
	handler := e.handlers[lane]

	e.log.Debug("worker started", zap.String("lane", string(lane)), zap.Int("worker_id", id))

	for {
		if ctx.Err() != nil {
			e.log.Debug("worker shutting down", zap.String("lane", string(lane)), zap.Int("worker_id", id))
			return
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		job, err := e.store.Claim(ctx, lane, time.Now())
		if err != nil {
			if !errors.Is(err, ErrNoEligibleJob) {
				e.log.Error("claim failed",
					zap.String("lane", string(lane)),
					zap.Error(err),
				)
			}
			select {
			case <-ctx.Done():
				return
			case <-wakeup:
			case <-time.After(e.opts.PollInterval):
			}
			continue
		}

		e.process(ctx, lane, handler, job)
	}
}

func (e *Engine) process(ctx context.Context, lane models.Lane, handler ProcessFunc, job *models.Job) {
	start := time.Now()
	err := e.runHandler(ctx, handler, job)
	attempts := job.AttemptsMade + 1

	if err == nil {
		if mErr := e.store.MarkCompleted(ctx, job.ID, lane, attempts); mErr != nil {
			e.logFinishError(job, mErr)
			return
		}
		metrics.JobsProcessed.WithLabelValues(string(lane), "completed").Inc()
		e.log.Info("job completed",
			zap.String("job_id", job.ID),
			zap.String("type", string(job.Type)),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}

	if errors.Is(err, ErrPermanent) || attempts >= job.MaxAttempts {
		if mErr := e.store.MarkFailed(ctx, job.ID, lane, attempts, err.Error()); mErr != nil {
			e.logFinishError(job, mErr)
			return
		}
		metrics.JobsProcessed.WithLabelValues(string(lane), "failed").Inc()
		e.log.Error("job failed permanently",
			zap.String("job_id", job.ID),
			zap.String("type", string(job.Type)),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return
	}

	job.AttemptsMade = attempts
	delay := job.BackoffDelay()
	if mErr := e.store.Reschedule(ctx, job.ID, lane, attempts, time.Now().Add(delay), err.Error()); mErr != nil {
		e.logFinishError(job, mErr)
		return
	}
	metrics.JobRetries.WithLabelValues(string(lane)).Inc()
	e.log.Warn("job attempt failed, rescheduled",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Int("attempts", attempts),
		zap.Int("max_attempts", job.MaxAttempts),
		zap.Duration("backoff", delay),
		zap.Error(err),
	)
}

// runHandler shields the worker from handler panics: a panicking
// attempt counts as a failed attempt.
func (e *Engine) runHandler(ctx context.Context, handler ProcessFunc, job *models.Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler(ctx, job)
}

// logFinishError covers the cancel race: the job may have been removed
// while its last attempt was in flight.
func (e *Engine) logFinishError(job *models.Job, err error) {
	if errors.Is(err, ErrJobNotFound) {
		e.log.Info("job removed during processing",
			zap.String("job_id", job.ID),
			zap.String("lane", string(job.Lane)),
		)
		return
	}
	e.log.Error("failed to record job outcome",
		zap.String("job_id", job.ID),
		zap.Error(err),
	)
}

// ----------------------------
// Maintenance
// ----------------------------

// sweeper periodically returns stalled active jobs to waiting and
// enforces the finished-job retention caps.
func (e *Engine) sweeper(ctx context.Context) {
	defer e.wg.Done()

	interval := e.opts.StallTimeout / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recovered, err := e.store.RecoverStalled(ctx, time.Now().Add(-e.opts.StallTimeout))
			if err != nil {
				e.log.Error("stalled-job recovery failed", zap.Error(err))
			} else if recovered > 0 {
				metrics.StalledRecovered.Add(float64(recovered))
				e.log.Warn("stalled jobs returned to waiting", zap.Int("count", recovered))
				for lane := range e.opts.Lanes {
					e.wake(lane)
				}
			}

			if _, err := e.store.Cleanup(ctx, time.Time{}, e.opts.KeepCompleted, e.opts.KeepFailed); err != nil {
				e.log.Error("retention cleanup failed", zap.Error(err))
			}
		}
	}
}
