package bulk

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"NotiFlow/internal/models"
)

// SendFunc delivers to one recipient. Errors are recorded per
// recipient; they never abort the batch.
type SendFunc func(ctx context.Context, rcpt models.Recipient) error

// Processor fans a recipient list out in fixed-size chunks. Chunks run
// concurrently up to Concurrency; recipients within a chunk run
// sequentially, which keeps the work per goroutine bounded and is
// friendlier to provider rate limits.
type Processor struct {
	ChunkSize   int
	Concurrency int
	Log         *zap.Logger
}

func NewProcessor(chunkSize, concurrency int, log *zap.Logger) *Processor {
	if chunkSize <= 0 {
		chunkSize = 50
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Processor{ChunkSize: chunkSize, Concurrency: concurrency, Log: log}
}

// Process runs the fan-out and returns the strict aggregate: Success
// only when every recipient succeeded, with partial delivery fully
// recorded in Sent/Failed/Errors either way.
func (p *Processor) Process(ctx context.Context, recipients []models.Recipient, send SendFunc) models.BulkResult {
	result := models.BulkResult{Total: len(recipients)}

	var (
		mu     sync.Mutex
		sent   int
		failed []models.BulkError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Concurrency)

	for start := 0; start < len(recipients); start += p.ChunkSize {
		end := start + p.ChunkSize
		if end > len(recipients) {
			end = len(recipients)
		}
		chunk := recipients[start:end]

		g.Go(func() error {
			for _, rcpt := range chunk {
				err := send(gctx, rcpt)

				mu.Lock()
				if err != nil {
					failed = append(failed, models.BulkError{
						Recipient: recipientAddress(rcpt),
						Error:     err.Error(),
					})
				} else {
					sent++
				}
				mu.Unlock()
			}
			return nil
		})
	}

	// Workers never return errors; Wait only orders completion.
	_ = g.Wait()

	result.Sent = sent
	result.Failed = len(failed)
	result.Errors = failed
	result.Success = result.Failed == 0
	result.ProcessedAt = time.Now().UTC()

	p.Log.Info("bulk fan-out finished",
		zap.Int("total", result.Total),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result
}

func recipientAddress(r models.Recipient) string {
	if r.Email != "" {
		return r.Email
	}
	return r.Phone
}
