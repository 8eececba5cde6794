// Package notify defines the delivery events published to the per-(tenant,
// channel) notification topics.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event types.
const (
	EventMessageSent    = "message.sent"
	EventMessageFailed  = "message.failed"
	EventMessageStatus  = "message.status"
	EventInboundMessage = "message.inbound"
	EventTemplateStatus = "template.status"
)

// Event is one notification published after a persisted change.
type Event struct {
	Type              string    `json:"type"`
	TenantID          string    `json:"tenant_id"`
	ChannelID         string    `json:"channel_id"`
	CorrelationID     string    `json:"correlation_id,omitempty"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Status            string    `json:"status,omitempty"`
	TemplateName      string    `json:"template_name,omitempty"`
	Error             string    `json:"error,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Publisher pushes events onto the notification topic exchange.
// *rabbitmq.Client satisfies it.
type Publisher interface {
	PublishNotification(ctx context.Context, routingKey string, body []byte) error
}

// RoutingKey returns the topic for one (tenant, channel) pair.
func RoutingKey(tenantID, channelID string) string {
	return fmt.Sprintf("notify.%s.%s", tenantID, channelID)
}

// Publish marshals and publishes the event, stamping the timestamp if unset.
func Publish(ctx context.Context, pub Publisher, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return pub.PublishNotification(ctx, RoutingKey(event.TenantID, event.ChannelID), body)
}
