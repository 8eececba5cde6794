package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/vutran-dev/relay-be/internal/domain"
)

// DeadLetterStore is the append-only holding area for exhausted and
// permanently failed jobs.
type DeadLetterStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewDeadLetterStore creates a DeadLetterStore.
func NewDeadLetterStore(db *sqlx.DB, logger *slog.Logger) *DeadLetterStore {
	return &DeadLetterStore{db: db, logger: logger}
}

// Insert appends a dead-letter entry.
func (s *DeadLetterStore) Insert(ctx context.Context, entry *domain.DeadLetter) error {
	query := `
		INSERT INTO dead_letters
			(queue, job_type, correlation_id, envelope, failure_type, attempts, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.Queue, entry.JobType, entry.CorrelationID, entry.Envelope,
		entry.FailureType, entry.Attempts, entry.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}

	s.logger.Warn("Job dead-lettered",
		slog.String("queue", entry.Queue),
		slog.String("job_type", entry.JobType),
		slog.String("correlation_id", entry.CorrelationID),
		slog.String("failure_type", entry.FailureType),
		slog.Int("attempts", entry.Attempts),
		slog.String("last_error", entry.LastError),
	)
	return nil
}

// List returns dead letters ordered newest first.
func (s *DeadLetterStore) List(ctx context.Context, limit, offset int) ([]domain.DeadLetter, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []domain.DeadLetter
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, queue, job_type, correlation_id, envelope, failure_type, attempts, last_error, created_at, replayed_at
		FROM dead_letters
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return entries, nil
}

// Get fetches one entry.
func (s *DeadLetterStore) Get(ctx context.Context, id int64) (*domain.DeadLetter, error) {
	var entry domain.DeadLetter
	err := s.db.GetContext(ctx, &entry, `
		SELECT id, queue, job_type, correlation_id, envelope, failure_type, attempts, last_error, created_at, replayed_at
		FROM dead_letters WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDeadLetterNotFound
		}
		return nil, fmt.Errorf("failed to get dead letter: %w", err)
	}
	return &entry, nil
}

// MarkReplayed stamps the entry after an operator requeued it. Entries are
// never deleted; the area stays append-only and auditable.
func (s *DeadLetterStore) MarkReplayed(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE dead_letters SET replayed_at = NOW() WHERE id = $1 AND replayed_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark dead letter replayed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrDeadLetterNotFound
	}
	return nil
}
