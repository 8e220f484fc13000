package queue

import (
	"context"
	"errors"
	"sync"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/rs/zerolog"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close
	ErrQueueClosed = errors.New("queue closed")
	// ErrQueueFull is returned when the buffer has no room; the event stays pending in storage
	ErrQueueFull = errors.New("queue full")
)

// MemoryQueue is an in-process worker pool fed by a buffered channel
type MemoryQueue struct {
	mu      sync.RWMutex
	jobs    chan *domain.WebhookJob
	closed  bool
	workers int
	wg      sync.WaitGroup
	logger  zerolog.Logger
}

// NewMemoryQueue creates a queue with the given buffer size and worker count
func NewMemoryQueue(bufferSize, workers int, logger zerolog.Logger) *MemoryQueue {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &MemoryQueue{
		jobs:    make(chan *domain.WebhookJob, bufferSize),
		workers: workers,
		logger:  logger,
	}
}

var _ ports.WebhookQueue = (*MemoryQueue)(nil)

// Enqueue hands a job to the pool without blocking the caller
func (q *MemoryQueue) Enqueue(ctx context.Context, job *domain.WebhookJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		q.logger.Warn().
			Str("eventId", job.EventID).
			Str("topic", job.Topic).
			Msg("Webhook queue full, leaving event pending")
		return ErrQueueFull
	}
}

// Start launches the workers. They stop once Close has drained the buffer, or as soon as ctx is done;
// jobs still buffered at that point are left for the recovery sweep.
func (q *MemoryQueue) Start(ctx context.Context, handle ports.JobHandler) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-q.jobs:
					if !ok {
						return
					}
					handle(ctx, job)
				}
			}
		}()
	}

	q.logger.Info().Int("workers", q.workers).Msg("Webhook workers started")
}

// Close stops accepting jobs and waits for the workers to finish the buffered ones
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
