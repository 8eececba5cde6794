// Package webhook turns raw provider callbacks into persisted inbound
// messages, delivery-status advances, and follow-up jobs.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vutran-dev/relay-be/internal/domain"
	"github.com/vutran-dev/relay-be/internal/job"
	"github.com/vutran-dev/relay-be/internal/notify"
)

// Messages is the message-store surface the ingestion pipeline writes through.
type Messages interface {
	AppendInbound(ctx context.Context, msg *domain.Message) error
	AdvanceStatusByProviderID(ctx context.Context, providerMessageID string, status domain.DeliveryStatus) (*domain.Message, error)
}

// Conversations resolves and touches conversation state for inbound traffic.
type Conversations interface {
	TouchInbound(ctx context.Context, tenantID, channelID, contact string, at time.Time, replyWindow time.Duration) (*domain.Conversation, error)
}

// Events deduplicates provider callbacks by event id. Unmark removes the
// dedup row for an event whose ingestion failed, so the broker redelivery is
// processed instead of swallowed as a duplicate.
type Events interface {
	MarkProcessed(ctx context.Context, tenantID, eventID string) (bool, error)
	Unmark(ctx context.Context, tenantID, eventID string) error
}

// Campaigns exposes the counter increments driven by status updates.
type Campaigns interface {
	IncrementCounter(ctx context.Context, campaignID int64, counter string) error
}

// Enqueuer publishes follow-up jobs onto work queues.
type Enqueuer interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Config wires the ingestion pipeline's collaborators.
type Config struct {
	Logger        *slog.Logger
	Messages      Messages
	Conversations Conversations
	Events        Events
	Campaigns     Campaigns
	Notifier      notify.Publisher
	Enqueuer      Enqueuer
	MediaQueue    string
	ReplyWindow   time.Duration
}

// Handler processes webhook-event jobs.
type Handler struct {
	cfg Config
}

// NewHandler creates the webhook handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{cfg: cfg}
}

// Register binds the handler to the job type it owns.
func (h *Handler) Register(d *job.Dispatcher) {
	d.Register(job.TypeWebhookEvent, job.HandlerFunc(h.handleEvent))
}

// handleEvent ingests one provider callback. The event-id dedup runs before
// any other write, so a redelivered callback is a single cheap no-op.
func (h *Handler) handleEvent(ctx context.Context, env *job.Envelope, payload job.Payload) error {
	p := payload.(*job.WebhookEvent)

	logger := h.cfg.Logger.With(
		slog.String("event_id", p.EventID),
		slog.String("tenant_id", env.TenantID),
		slog.String("channel_id", env.ChannelID),
	)

	first, err := h.cfg.Events.MarkProcessed(ctx, env.TenantID, p.EventID)
	if err != nil {
		return domain.Retryable(err)
	}
	if !first {
		logger.Info("Duplicate webhook event, skipping")
		return nil
	}

	// The mark must not outlive a failed ingest: a redelivery would hit the
	// duplicate path above and drop the event for good.
	if err := h.ingest(ctx, logger, env, p.Raw); err != nil {
		if unmarkErr := h.cfg.Events.Unmark(ctx, env.TenantID, p.EventID); unmarkErr != nil {
			logger.Error("Failed to clear event mark after ingest failure",
				slog.Any("error", unmarkErr),
			)
		}
		return err
	}
	return nil
}

// ingest classifies one callback and applies every change it carries.
func (h *Handler) ingest(ctx context.Context, logger *slog.Logger, env *job.Envelope, raw []byte) error {
	classified, err := Classify(raw)
	if err != nil {
		return err
	}
	if classified.Unknown > 0 {
		logger.Warn("Webhook carried unrecognized changes",
			slog.Int("unknown", classified.Unknown),
		)
	}

	for _, inbound := range classified.Inbound {
		if err := h.ingestInbound(ctx, logger, env, inbound); err != nil {
			return err
		}
	}
	for _, update := range classified.Statuses {
		if err := h.applyStatus(ctx, logger, env, update); err != nil {
			return err
		}
	}
	for _, tmpl := range classified.Templates {
		h.publish(ctx, notify.Event{
			Type:         notify.EventTemplateStatus,
			TenantID:     env.TenantID,
			ChannelID:    env.ChannelID,
			Status:       tmpl.Event,
			TemplateName: tmpl.TemplateName,
		})
	}
	return nil
}

// ingestInbound persists one customer message, refreshes the conversation's
// reply window, and schedules the media fetch when the message carries one.
func (h *Handler) ingestInbound(ctx context.Context, logger *slog.Logger, env *job.Envelope, inbound InboundMessage) error {
	conv, err := h.cfg.Conversations.TouchInbound(ctx,
		env.TenantID, env.ChannelID, inbound.From, inbound.Timestamp, h.cfg.ReplyWindow,
	)
	if err != nil {
		return domain.Retryable(err)
	}

	record := &domain.Message{
		CorrelationID:     uuid.New().String(),
		TenantID:          env.TenantID,
		ChannelID:         env.ChannelID,
		ConversationID:    &conv.ID,
		Type:              inbound.Type,
		Body:              inbound.Text,
		ProviderMessageID: inbound.ProviderMessageID,
		MediaRef:          inbound.MediaRef,
	}
	if err := h.cfg.Messages.AppendInbound(ctx, record); err != nil {
		return domain.Retryable(err)
	}

	if inbound.MediaRef != "" {
		if err := h.enqueueMediaDownload(ctx, env, record.CorrelationID, inbound); err != nil {
			// The message row is durable; the fetch can be replayed from
			// the dead-letter area if this publish keeps failing.
			return domain.Retryable(err)
		}
	}

	logger.Info("Inbound message ingested",
		slog.String("provider_message_id", inbound.ProviderMessageID),
		slog.Int64("conversation_id", conv.ID),
	)
	h.publish(ctx, notify.Event{
		Type:              notify.EventInboundMessage,
		TenantID:          env.TenantID,
		ChannelID:         env.ChannelID,
		CorrelationID:     record.CorrelationID,
		ProviderMessageID: inbound.ProviderMessageID,
	})
	return nil
}

// applyStatus advances one message's delivery status. Regressions and
// unmatched provider ids are logged no-ops, not failures: a late or foreign
// status must never bounce the whole event into retry.
func (h *Handler) applyStatus(ctx context.Context, logger *slog.Logger, env *job.Envelope, update StatusUpdate) error {
	msg, err := h.cfg.Messages.AdvanceStatusByProviderID(ctx, update.ProviderMessageID, update.Status)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			logger.Warn("Status update for unknown message",
				slog.String("provider_message_id", update.ProviderMessageID),
				slog.String("status", string(update.Status)),
			)
			return nil
		}
		return domain.Retryable(err)
	}
	if msg == nil {
		logger.Debug("Out-of-order status update ignored",
			slog.String("provider_message_id", update.ProviderMessageID),
			slog.String("status", string(update.Status)),
		)
		return nil
	}

	if msg.CampaignID != nil {
		if counter, ok := campaignCounterFor(update.Status); ok {
			if err := h.cfg.Campaigns.IncrementCounter(ctx, *msg.CampaignID, counter); err != nil {
				logger.Error("Failed to increment campaign counter",
					slog.Int64("campaign_id", *msg.CampaignID),
					slog.Any("error", err),
				)
			}
		}
	}

	h.publish(ctx, notify.Event{
		Type:              notify.EventMessageStatus,
		TenantID:          env.TenantID,
		ChannelID:         env.ChannelID,
		CorrelationID:     msg.CorrelationID,
		ProviderMessageID: update.ProviderMessageID,
		Status:            string(update.Status),
		Error:             update.ErrorDetail,
	})
	return nil
}

func (h *Handler) enqueueMediaDownload(ctx context.Context, env *job.Envelope, correlationID string, inbound InboundMessage) error {
	body, err := json.Marshal(&job.MediaDownload{
		MediaRef: inbound.MediaRef,
		MimeType: inbound.MimeType,
	})
	if err != nil {
		return err
	}
	downloadEnv := &job.Envelope{
		Version:       job.EnvelopeVersion,
		Type:          job.TypeMediaDownload,
		CorrelationID: correlationID,
		TenantID:      env.TenantID,
		ChannelID:     env.ChannelID,
		EnqueuedAt:    time.Now().UTC(),
		Payload:       body,
	}
	encoded, err := downloadEnv.Encode()
	if err != nil {
		return err
	}
	return h.cfg.Enqueuer.Publish(ctx, h.cfg.MediaQueue, encoded)
}

func campaignCounterFor(status domain.DeliveryStatus) (string, bool) {
	switch status {
	case domain.StatusDelivered:
		return domain.CampaignCounterDelivered, true
	case domain.StatusRead:
		return domain.CampaignCounterRead, true
	case domain.StatusFailed:
		return domain.CampaignCounterFailed, true
	default:
		return "", false
	}
}

func (h *Handler) publish(ctx context.Context, event notify.Event) {
	if err := notify.Publish(ctx, h.cfg.Notifier, event); err != nil {
		h.cfg.Logger.Error("Failed to publish notification",
			slog.String("event_type", event.Type),
			slog.Any("error", err),
		)
	}
}
