package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vutran-dev/relay-be/internal/domain"
)

// ConversationStore persists derived conversation state.
type ConversationStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewConversationStore creates a ConversationStore.
func NewConversationStore(db *sqlx.DB, logger *slog.Logger) *ConversationStore {
	return &ConversationStore{db: db, logger: logger}
}

// TouchInbound resolves or creates the conversation for (tenant, channel,
// sender), advances last_inbound_at, and recomputes the reply window from the
// inbound touch. The window is always derived, never set independently.
func (s *ConversationStore) TouchInbound(ctx context.Context, tenantID, channelID, contact string, at time.Time, replyWindow time.Duration) (*domain.Conversation, error) {
	query := `
		INSERT INTO conversations
			(tenant_id, channel_id, contact_address, last_inbound_at, reply_window_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (tenant_id, channel_id, contact_address) DO UPDATE
		SET last_inbound_at = GREATEST(conversations.last_inbound_at, EXCLUDED.last_inbound_at),
		    reply_window_until = GREATEST(conversations.reply_window_until, EXCLUDED.reply_window_until),
		    updated_at = NOW()
		RETURNING id, tenant_id, channel_id, contact_address, last_inbound_at, reply_window_until, created_at, updated_at
	`

	var conv domain.Conversation
	err := s.db.QueryRowxContext(ctx, query,
		tenantID, channelID, contact, at, at.Add(replyWindow),
	).StructScan(&conv)
	if err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	s.logger.Debug("Conversation touched",
		slog.Int64("conversation_id", conv.ID),
		slog.String("contact", contact),
	)
	return &conv, nil
}

// Get fetches one conversation by id.
func (s *ConversationStore) Get(ctx context.Context, id int64) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.db.GetContext(ctx, &conv, `
		SELECT id, tenant_id, channel_id, contact_address, last_inbound_at, reply_window_until, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}
