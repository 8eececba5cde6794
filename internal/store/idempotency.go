package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// IdempotencyStore serializes external sends per correlation id. A row is
// claimed before the provider call and completed with the provider's message
// id afterwards, so only the claim holder ever talks to the provider.
type IdempotencyStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewIdempotencyStore creates an IdempotencyStore.
func NewIdempotencyStore(db *sqlx.DB, logger *slog.Logger) *IdempotencyStore {
	return &IdempotencyStore{db: db, logger: logger}
}

// Claim atomically inserts an in-flight mark for a correlation id. Exactly
// one of any number of racing callers gets acquired=true; the rest receive
// the stored provider message id, which is empty while the holder's send is
// still in flight. Expired rows are reclaimed in the same statement, so this
// is a single set-if-absent, never a read followed by a write.
func (s *IdempotencyStore) Claim(ctx context.Context, correlationID string, ttl time.Duration) (string, bool, error) {
	query := `
		INSERT INTO idempotency_marks (correlation_id, provider_message_id, created_at, expires_at)
		VALUES ($1, '', NOW(), NOW() + $2::interval)
		ON CONFLICT (correlation_id) DO UPDATE
		SET provider_message_id = '',
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at
		WHERE idempotency_marks.expires_at <= NOW()
		RETURNING provider_message_id
	`

	var stored string
	err := s.db.QueryRowContext(ctx, query, correlationID, interval(ttl)).Scan(&stored)
	if err == nil {
		return "", true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("failed to claim idempotency mark: %w", err)
	}

	// A live mark already exists; report its value so the caller can adopt
	// the holder's result or back off while the send is in flight.
	existing, ok, err := s.Lookup(ctx, correlationID)
	if err != nil {
		return "", false, err
	}
	if !ok {
		// The mark expired between the two statements. Extremely tight
		// window; the caller backs off and reclaims on redelivery.
		return "", false, nil
	}
	return existing, false, nil
}

// Complete records the provider's message id on a held claim.
func (s *IdempotencyStore) Complete(ctx context.Context, correlationID, providerMessageID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE idempotency_marks SET provider_message_id = $2 WHERE correlation_id = $1
	`, correlationID, providerMessageID)
	if err != nil {
		return fmt.Errorf("failed to complete idempotency mark: %w", err)
	}
	return nil
}

// Release drops a claim whose send never happened, so a retry can claim it
// again without waiting for the TTL.
func (s *IdempotencyStore) Release(ctx context.Context, correlationID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM idempotency_marks WHERE correlation_id = $1
	`, correlationID)
	if err != nil {
		return fmt.Errorf("failed to release idempotency mark: %w", err)
	}
	return nil
}

// Lookup returns the provider message id marked for a correlation id,
// ignoring expired rows. An empty id on a live row means the claim holder's
// send is still in flight.
func (s *IdempotencyStore) Lookup(ctx context.Context, correlationID string) (string, bool, error) {
	var providerMessageID string
	err := s.db.GetContext(ctx, &providerMessageID, `
		SELECT provider_message_id FROM idempotency_marks
		WHERE correlation_id = $1 AND expires_at > NOW()
	`, correlationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up idempotency mark: %w", err)
	}
	return providerMessageID, true, nil
}

// PurgeExpired removes marks past their TTL. Called periodically by the
// admin service; correctness never depends on it.
func (s *IdempotencyStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_marks WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency marks: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		s.logger.Info("Purged expired idempotency marks", slog.Int64("count", rows))
	}
	return rows, nil
}

func interval(d time.Duration) string {
	return fmt.Sprintf("%d milliseconds", d.Milliseconds())
}
