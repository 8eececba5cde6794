// Package worker is the queue-consumer runtime every worker process runs on.
// It drains one named work queue, routes envelopes through a job.Dispatcher,
// and turns handler errors into ack, delayed requeue, or dead-letter
// outcomes. The handlers themselves live in the per-domain subpackages.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vutran-dev/relay-be/internal/domain"
	"github.com/vutran-dev/relay-be/internal/job"
	"github.com/vutran-dev/relay-be/internal/retry"
)

// Queue is the broker surface the runtime needs. *rabbitmq.Client satisfies it.
type Queue interface {
	Publish(ctx context.Context, queue string, body []byte) error
	PublishDelayed(ctx context.Context, queue string, body []byte, delay time.Duration) error
	Consume(queue, consumerTag string) (<-chan amqp.Delivery, error)
	Qos(prefetchCount int) error
}

// DeadLetters receives jobs that will never be retried again.
type DeadLetters interface {
	Insert(ctx context.Context, entry *domain.DeadLetter) error
}

// Config holds runtime configuration for one worker process.
type Config struct {
	Logger      *slog.Logger
	Queue       Queue
	DeadLetters DeadLetters
	Dispatcher  *job.Dispatcher
	QueueName   string
	Concurrency int
	Prefetch    int
	Backoff     *retry.Policy
}

// Worker drains one work queue with a pool of goroutines.
type Worker struct {
	logger      *slog.Logger
	queue       Queue
	deadLetters DeadLetters
	dispatcher  *job.Dispatcher
	queueName   string
	concurrency int
	prefetch    int
	backoff     *retry.Policy
	workerID    string

	jobsChan chan amqp.Delivery
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a worker instance.
func New(cfg *Config) *Worker {
	return &Worker{
		logger:      cfg.Logger,
		queue:       cfg.Queue,
		deadLetters: cfg.DeadLetters,
		dispatcher:  cfg.Dispatcher,
		queueName:   cfg.QueueName,
		concurrency: cfg.Concurrency,
		prefetch:    cfg.Prefetch,
		backoff:     cfg.Backoff,
		workerID:    fmt.Sprintf("%s-%s", cfg.QueueName, uuid.New().String()[:8]),
		jobsChan:    make(chan amqp.Delivery),
		stopChan:    make(chan struct{}),
	}
}

// Start begins consuming. It blocks until ctx is canceled or the delivery
// stream closes, then stops handing out new jobs; in-flight jobs finish
// during Stop.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.queue.Qos(w.prefetch); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := w.queue.Consume(w.queueName, w.workerID)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("Worker started",
		slog.String("worker_id", w.workerID),
		slog.String("queue", w.queueName),
		slog.Int("concurrency", w.concurrency),
		slog.Int("prefetch", w.prefetch),
	)

	w.spawnPool(ctx)
	w.dispatchLoop(ctx, deliveries)
	return nil
}

// Stop waits for in-flight jobs to finish. Still-queued jobs stay on the
// broker for another worker.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker", slog.String("worker_id", w.workerID))
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
}

// dispatchLoop feeds broker deliveries to the pool until shutdown.
func (w *Worker) dispatchLoop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Dispatch loop stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("Delivery channel closed")
				return
			}

			select {
			case w.jobsChan <- delivery:
			case <-ctx.Done():
				// Hand the job back so another worker picks it up.
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK on shutdown", slog.Any("error", nackErr))
				}
				return
			}
		}
	}
}
