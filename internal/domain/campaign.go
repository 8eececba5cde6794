package domain

import "time"

// Campaign statuses.
const (
	CampaignStatusDraft      = "draft"
	CampaignStatusDispatched = "dispatched"
	CampaignStatusCompleted  = "completed"
)

// Campaign is a bulk send referencing a template and a recipient list.
// Counters are only ever advanced by atomic increments as individual
// recipient sends resolve, never recomputed by scanning.
type Campaign struct {
	ID             int64     `db:"id"`
	TenantID       string    `db:"tenant_id"`
	ChannelID      string    `db:"channel_id"`
	Name           string    `db:"name"`
	TemplateName   string    `db:"template_name"`
	TemplateLocale string    `db:"template_locale"`
	Status         string    `db:"status"`
	TotalCount     int       `db:"total_count"`
	SentCount      int       `db:"sent_count"`
	DeliveredCount int       `db:"delivered_count"`
	ReadCount      int       `db:"read_count"`
	FailedCount    int       `db:"failed_count"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// CampaignRecipient is the per-recipient tracking row. The unique key
// (campaign_id, recipient) makes fan-out safe to retry.
type CampaignRecipient struct {
	ID            int64     `db:"id"`
	CampaignID    int64     `db:"campaign_id"`
	Recipient     string    `db:"recipient"`
	CorrelationID string    `db:"correlation_id"`
	Params        string    `db:"params"` // JSON template parameters
	CreatedAt     time.Time `db:"created_at"`
}

// Campaign counter columns accepted by the store's atomic increment.
const (
	CampaignCounterSent      = "sent_count"
	CampaignCounterDelivered = "delivered_count"
	CampaignCounterRead      = "read_count"
	CampaignCounterFailed    = "failed_count"
)
