// Package store holds the sqlx repositories workers persist through. Each
// worker wraps the relational mutations of one job in its own calls; cross-
// worker counters are atomic SQL increments, never read-modify-write.
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

// statusRankSQL orders delivery statuses inside UPDATE guards. Must match
// domain.DeliveryStatus.Rank.
const statusRankSQL = `
	CASE %s
		WHEN 'pending' THEN 0
		WHEN 'sent' THEN 1
		WHEN 'delivered' THEN 2
		WHEN 'read' THEN 3
		WHEN 'failed' THEN 4
		ELSE -1
	END`

// MessageStore persists message records.
type MessageStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewMessageStore creates a MessageStore.
func NewMessageStore(db *sqlx.DB, logger *slog.Logger) *MessageStore {
	return &MessageStore{db: db, logger: logger}
}

// UpsertOutbound creates the pending outbound record for a correlation id if
// it does not exist yet. Redelivered jobs hit the conflict path and keep the
// existing record untouched.
func (s *MessageStore) UpsertOutbound(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages
			(correlation_id, tenant_id, channel_id, campaign_id, direction, type, body, status, media_ref, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, 'outbound', $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (correlation_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.CorrelationID, msg.TenantID, msg.ChannelID, msg.CampaignID,
		msg.Type, msg.Body, domain.StatusPending, msg.MediaRef,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert outbound message: %w", err)
	}
	return nil
}

// MarkSent advances a message to sent and records the provider message id.
// The rank guard makes the transition forward-only, so a redelivered job
// cannot regress a record that a webhook already advanced.
func (s *MessageStore) MarkSent(ctx context.Context, correlationID, providerMessageID string) error {
	query := fmt.Sprintf(`
		UPDATE messages
		SET status = 'sent',
		    provider_message_id = $2,
		    last_error = '',
		    updated_at = NOW()
		WHERE correlation_id = $1
		  AND %s < 1
	`, fmt.Sprintf(statusRankSQL, "status"))

	if _, err := s.db.ExecContext(ctx, query, correlationID, providerMessageID); err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}

	// The provider id must stick even when the status row was already past
	// sent; the reply path looks messages up by it.
	backfill := `
		UPDATE messages
		SET provider_message_id = $2, updated_at = NOW()
		WHERE correlation_id = $1 AND provider_message_id = ''
	`
	if _, err := s.db.ExecContext(ctx, backfill, correlationID, providerMessageID); err != nil {
		return fmt.Errorf("failed to backfill provider message id: %w", err)
	}
	return nil
}

// MarkFailed records the terminal failed state. Only pending records can
// fail; anything already sent stays sent.
func (s *MessageStore) MarkFailed(ctx context.Context, correlationID, lastError string) error {
	query := `
		UPDATE messages
		SET status = 'failed', last_error = $2, updated_at = NOW()
		WHERE correlation_id = $1 AND status = 'pending'
	`
	if _, err := s.db.ExecContext(ctx, query, correlationID, lastError); err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	return nil
}

// AdvanceStatusByProviderID applies a forward-only status transition looked
// up by provider message id. It returns the updated message, or
// domain.ErrMessageNotFound when no record matches, or (nil, nil) when the
// transition was a backward no-op.
func (s *MessageStore) AdvanceStatusByProviderID(ctx context.Context, providerMessageID string, status domain.DeliveryStatus) (*domain.Message, error) {
	query := fmt.Sprintf(`
		UPDATE messages
		SET status = $2, updated_at = NOW()
		WHERE provider_message_id = $1
		  AND status <> 'failed'
		  AND %s < %s
		RETURNING id, correlation_id, tenant_id, channel_id, conversation_id, campaign_id,
		          direction, type, body, status, provider_message_id, media_ref, media_location,
		          last_error, created_at, updated_at
	`, fmt.Sprintf(statusRankSQL, "status"), fmt.Sprintf(statusRankSQL, "$2"))

	var msg domain.Message
	err := s.db.QueryRowxContext(ctx, query, providerMessageID, status).StructScan(&msg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.noopOrMissing(ctx, providerMessageID)
		}
		return nil, fmt.Errorf("failed to advance message status: %w", err)
	}

	s.logger.Info("Message status advanced",
		slog.String("provider_message_id", providerMessageID),
		slog.String("status", string(status)),
	)
	return &msg, nil
}

// noopOrMissing distinguishes "record absent" from "backward transition".
func (s *MessageStore) noopOrMissing(ctx context.Context, providerMessageID string) (*domain.Message, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM messages WHERE provider_message_id = $1)`, providerMessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to check message existence: %w", err)
	}
	if !exists {
		return nil, domain.ErrMessageNotFound
	}
	return nil, nil
}

// AppendInbound stores one inbound message attached to a conversation.
func (s *MessageStore) AppendInbound(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages
			(correlation_id, tenant_id, channel_id, conversation_id, direction, type, body,
			 status, provider_message_id, media_ref, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, 'inbound', $5, $6, 'delivered', $7, $8, NOW(), NOW())
		ON CONFLICT (correlation_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.CorrelationID, msg.TenantID, msg.ChannelID, msg.ConversationID,
		msg.Type, msg.Body, msg.ProviderMessageID, msg.MediaRef,
	)
	if err != nil {
		return fmt.Errorf("failed to append inbound message: %w", err)
	}
	return nil
}

// SetMediaLocation records where downloaded media landed in object storage.
// The store becomes the long-term source afterwards.
func (s *MessageStore) SetMediaLocation(ctx context.Context, correlationID, location string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages SET media_location = $2, updated_at = NOW()
		WHERE correlation_id = $1
	`, correlationID, location)
	if err != nil {
		return fmt.Errorf("failed to set media location: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// GetByCorrelationID fetches a message record.
func (s *MessageStore) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Message, error) {
	var msg domain.Message
	err := s.db.GetContext(ctx, &msg, `
		SELECT id, correlation_id, tenant_id, channel_id, conversation_id, campaign_id,
		       direction, type, body, status, provider_message_id, media_ref, media_location,
		       last_error, created_at, updated_at
		FROM messages WHERE correlation_id = $1
	`, correlationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}
