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

// CampaignTarget is one row of a campaign's recipient list, written by the
// API layer when the campaign is created.
type CampaignTarget struct {
	Address string `db:"address"`
	Params  string `db:"params"`
}

// CampaignStore persists campaigns, their recipient lists, and the
// per-recipient tracking rows created during fan-out.
type CampaignStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewCampaignStore creates a CampaignStore.
func NewCampaignStore(db *sqlx.DB, logger *slog.Logger) *CampaignStore {
	return &CampaignStore{db: db, logger: logger}
}

// Get fetches a campaign by id.
func (s *CampaignStore) Get(ctx context.Context, id int64) (*domain.Campaign, error) {
	var c domain.Campaign
	err := s.db.GetContext(ctx, &c, `
		SELECT id, tenant_id, channel_id, name, template_name, template_locale, status,
		       total_count, sent_count, delivered_count, read_count, failed_count,
		       created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &c, nil
}

// Targets returns the campaign's full recipient list.
func (s *CampaignStore) Targets(ctx context.Context, campaignID int64) ([]CampaignTarget, error) {
	var targets []CampaignTarget
	err := s.db.SelectContext(ctx, &targets, `
		SELECT address, params FROM campaign_targets WHERE campaign_id = $1 ORDER BY id
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign targets: %w", err)
	}
	return targets, nil
}

// TrackRecipient inserts the per-recipient tracking row and reports whether
// this call created it. The unique (campaign_id, recipient) key makes a
// retried fan-out skip recipients that already got a job.
func (s *CampaignStore) TrackRecipient(ctx context.Context, campaignID int64, recipient, correlationID, params string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO campaign_recipients (campaign_id, recipient, correlation_id, params, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (campaign_id, recipient) DO NOTHING
	`, campaignID, recipient, correlationID, params)
	if err != nil {
		return false, fmt.Errorf("failed to track campaign recipient: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// MarkDispatched records the fan-out result on the parent.
func (s *CampaignStore) MarkDispatched(ctx context.Context, campaignID int64, total int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $2, total_count = $3, updated_at = NOW() WHERE id = $1
	`, campaignID, domain.CampaignStatusDispatched, total)
	if err != nil {
		return fmt.Errorf("failed to mark campaign dispatched: %w", err)
	}
	return nil
}

// campaignCounters whitelists the columns IncrementCounter may touch.
var campaignCounters = map[string]bool{
	domain.CampaignCounterSent:      true,
	domain.CampaignCounterDelivered: true,
	domain.CampaignCounterRead:      true,
	domain.CampaignCounterFailed:    true,
}

// IncrementCounter atomically bumps one aggregate counter on the parent
// campaign. O(1) per resolving event; totals are never recomputed by scan.
func (s *CampaignStore) IncrementCounter(ctx context.Context, campaignID int64, counter string) error {
	if !campaignCounters[counter] {
		return fmt.Errorf("unknown campaign counter %q", counter)
	}

	query := fmt.Sprintf(`UPDATE campaigns SET %s = %s + 1, updated_at = NOW() WHERE id = $1`, counter, counter)
	if _, err := s.db.ExecContext(ctx, query, campaignID); err != nil {
		return fmt.Errorf("failed to increment campaign counter: %w", err)
	}

	s.logger.Debug("Campaign counter incremented",
		slog.Int64("campaign_id", campaignID),
		slog.String("counter", counter),
	)
	return nil
}
