package worker

import (
	"context"
	"errors"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vutran-dev/relay-be/internal/domain"
	"github.com/vutran-dev/relay-be/internal/job"
	"github.com/vutran-dev/relay-be/internal/provider"
)

// processDelivery decodes one delivery, dispatches it, and resolves the
// outcome. Every path ends in ack/requeue/dead-letter: a handler error never
// crosses the job boundary, so one bad job cannot take the worker down.
func (w *Worker) processDelivery(ctx context.Context, workerName string, delivery amqp.Delivery) {
	env, err := job.Decode(delivery.Body)
	if err != nil {
		// Malformed envelopes cannot self-heal; straight to dead-letter.
		w.deadLetter(ctx, &job.Envelope{Payload: delivery.Body}, delivery.Body, domain.FailureTypeValidation, err)
		w.ack(workerName, delivery)
		return
	}

	logger := w.logger.With(
		slog.String("worker_name", workerName),
		slog.String("job_type", string(env.Type)),
		slog.String("correlation_id", env.CorrelationID),
		slog.Int("attempt", env.Attempt),
	)
	logger.Info("Processing job")

	err = w.dispatcher.Dispatch(ctx, env)
	if err == nil {
		logger.Info("Job completed")
		w.ack(workerName, delivery)
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidJob):
		logger.Warn("Job failed validation", slog.String("error", err.Error()))
		w.deadLetter(ctx, env, delivery.Body, domain.FailureTypeValidation, err)

	case provider.IsPermanent(err):
		// The handler already persisted the terminal failed state; record
		// the job for operators without consuming retry budget.
		logger.Warn("Job failed permanently", slog.String("error", err.Error()))
		w.deadLetter(ctx, env, delivery.Body, domain.FailureTypePermanent, err)

	case domain.IsRetryable(err) || provider.IsTransient(err):
		if w.backoff.Exhausted(env.Attempt + 1) {
			logger.Warn("Job exhausted retry budget",
				slog.String("error", err.Error()),
				slog.Int("max_attempts", w.backoff.MaxAttempts),
			)
			w.deadLetter(ctx, env, delivery.Body, domain.FailureTypeTransient, err)
			break
		}
		if !w.requeue(ctx, logger, env) {
			// Could not republish; leave the original unacked for broker
			// redelivery rather than lose the job.
			w.nackRequeue(workerName, delivery)
			return
		}
		logger.Info("Job requeued for retry")

	default:
		logger.Error("Job failed with unclassified error", slog.String("error", err.Error()))
		if !w.backoff.Exhausted(env.Attempt + 1) {
			if w.requeue(ctx, logger, env) {
				w.ack(workerName, delivery)
				return
			}
			w.nackRequeue(workerName, delivery)
			return
		}
		w.deadLetter(ctx, env, delivery.Body, domain.FailureTypeUnknown, err)
	}

	w.ack(workerName, delivery)
}

// requeue publishes the next attempt onto the delayed-retry queue.
func (w *Worker) requeue(ctx context.Context, logger *slog.Logger, env *job.Envelope) bool {
	next := env.NextAttempt()
	body, err := next.Encode()
	if err != nil {
		logger.Error("Failed to encode retry envelope", slog.Any("error", err))
		return false
	}

	delay := w.backoff.Delay(env.Attempt)
	if err := w.queue.PublishDelayed(ctx, w.queueName, body, delay); err != nil {
		logger.Error("Failed to publish retry", slog.Any("error", err))
		return false
	}

	logger.Debug("Retry scheduled",
		slog.Int("next_attempt", next.Attempt),
		slog.Duration("delay", delay),
	)
	return true
}

// deadLetter appends the job to the durable dead-letter area.
func (w *Worker) deadLetter(ctx context.Context, env *job.Envelope, original []byte, failureType string, cause error) {
	entry := &domain.DeadLetter{
		Queue:         w.queueName,
		JobType:       string(env.Type),
		CorrelationID: env.CorrelationID,
		Envelope:      original,
		FailureType:   failureType,
		Attempts:      env.Attempt + 1,
		LastError:     cause.Error(),
	}
	if err := w.deadLetters.Insert(ctx, entry); err != nil {
		// The broker copy is about to be acked; losing the dead-letter
		// record is the worst outcome here, so log loudly.
		w.logger.Error("Failed to insert dead letter",
			slog.String("correlation_id", env.CorrelationID),
			slog.Any("error", err),
		)
	}
}

func (w *Worker) ack(workerName string, delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("worker_name", workerName),
			slog.Any("error", err),
		)
	}
}

func (w *Worker) nackRequeue(workerName string, delivery amqp.Delivery) {
	if err := delivery.Nack(false, true); err != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.Any("error", err),
		)
	}
}
