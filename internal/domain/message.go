package domain

import "time"

// Message is the persisted outbound/inbound message record.
type Message struct {
	ID                int64          `db:"id"`
	CorrelationID     string         `db:"correlation_id"`
	TenantID          string         `db:"tenant_id"`
	ChannelID         string         `db:"channel_id"`
	ConversationID    *int64         `db:"conversation_id"`
	CampaignID        *int64         `db:"campaign_id"`
	Direction         string         `db:"direction"` // outbound, inbound
	Type              string         `db:"type"`
	Body              string         `db:"body"`
	Status            DeliveryStatus `db:"status"`
	ProviderMessageID string         `db:"provider_message_id"`
	MediaRef          string         `db:"media_ref"`
	MediaLocation     string         `db:"media_location"`
	LastError         string         `db:"last_error"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

// Conversation groups messages exchanged with one contact over one channel.
// ReplyWindowUntil is always derived from LastInboundAt, never set directly.
type Conversation struct {
	ID               int64     `db:"id"`
	TenantID         string    `db:"tenant_id"`
	ChannelID        string    `db:"channel_id"`
	ContactAddress   string    `db:"contact_address"`
	LastInboundAt    time.Time `db:"last_inbound_at"`
	ReplyWindowUntil time.Time `db:"reply_window_until"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// ReplyWindowOpen reports whether free-form replies are currently permitted.
func (c *Conversation) ReplyWindowOpen(now time.Time) bool {
	return now.Before(c.ReplyWindowUntil)
}
