package handler

import (
	"context"
	"log/slog"

	"github.com/vutran-dev/relay-be/internal/domain"
)

// DeadLetters is the dead-letter store surface the ops handlers use.
type DeadLetters interface {
	List(ctx context.Context, limit, offset int) ([]domain.DeadLetter, error)
	Get(ctx context.Context, id int64) (*domain.DeadLetter, error)
	MarkReplayed(ctx context.Context, id int64) error
}

// Queue republishes requeued envelopes onto their source work queue.
type Queue interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Health reports backing-service connectivity.
type Health interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	DeadLetters DeadLetters
	Queue       Queue
	DB          Health
}

// DeadLetterHandler handles dead-letter inspection and requeue requests
type DeadLetterHandler struct {
	logger      *slog.Logger
	deadLetters DeadLetters
	queue       Queue
}

// NewDeadLetterHandler creates a new DeadLetterHandler instance
func NewDeadLetterHandler(deps *Dependencies) *DeadLetterHandler {
	return &DeadLetterHandler{
		logger:      deps.Logger,
		deadLetters: deps.DeadLetters,
		queue:       deps.Queue,
	}
}
