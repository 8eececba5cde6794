package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// EventStore deduplicates inbound webhook events. The unique key on
// (tenant_id, event_hash) makes replayed provider callbacks no-ops.
type EventStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewEventStore creates an EventStore.
func NewEventStore(db *sqlx.DB, logger *slog.Logger) *EventStore {
	return &EventStore{db: db, logger: logger}
}

// HashEventID produces the stored digest of a provider event id.
func HashEventID(eventID string) string {
	sum := sha256.Sum256([]byte(eventID))
	return hex.EncodeToString(sum[:])
}

// MarkProcessed records that an event was seen and reports whether this call
// was the first. A second delivery of the same event id hits the conflict
// path and returns false.
func (s *EventStore) MarkProcessed(ctx context.Context, tenantID, eventID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_events (tenant_id, event_hash, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (tenant_id, event_hash) DO NOTHING
	`, tenantID, HashEventID(eventID))
	if err != nil {
		return false, fmt.Errorf("failed to mark webhook event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		s.logger.Debug("Duplicate webhook event swallowed",
			slog.String("tenant_id", tenantID),
			slog.String("event_id", eventID),
		)
	}
	return rows > 0, nil
}

// Unmark deletes the dedup row for an event whose ingestion failed partway,
// so the redelivered event is processed instead of swallowed.
func (s *EventStore) Unmark(ctx context.Context, tenantID, eventID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM webhook_events WHERE tenant_id = $1 AND event_hash = $2
	`, tenantID, HashEventID(eventID))
	if err != nil {
		return fmt.Errorf("failed to unmark webhook event: %w", err)
	}
	return nil
}
