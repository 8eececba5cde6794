// Package outbound implements the send pipeline: idempotency guard, rate
// limiting, payload rendering, provider call, and terminal-state persistence.
package outbound

import (
	"context"
	"log/slog"
	"time"

	"github.com/vutran-dev/relay-be/internal/domain"
	"github.com/vutran-dev/relay-be/internal/job"
	"github.com/vutran-dev/relay-be/internal/notify"
	"github.com/vutran-dev/relay-be/internal/provider"
)

// Messages is the slice of the message store the pipeline writes through.
type Messages interface {
	UpsertOutbound(ctx context.Context, msg *domain.Message) error
	MarkSent(ctx context.Context, correlationID, providerMessageID string) error
	MarkFailed(ctx context.Context, correlationID, lastError string) error
}

// Idempotency serializes external sends per correlation id. Claim is the
// atomic not-yet-sent gate: exactly one of any number of racing workers
// acquires it, and only the holder may call the provider.
type Idempotency interface {
	Claim(ctx context.Context, correlationID string, ttl time.Duration) (providerMessageID string, acquired bool, err error)
	Complete(ctx context.Context, correlationID, providerMessageID string) error
	Release(ctx context.Context, correlationID string) error
}

// Campaigns exposes the parent-campaign counter increments.
type Campaigns interface {
	IncrementCounter(ctx context.Context, campaignID int64, counter string) error
}

// Limiter is the token-bucket surface the pipeline blocks on.
type Limiter interface {
	WaitForToken(ctx context.Context, key string, cost float64, timeout time.Duration) bool
}

// Config wires the pipeline's collaborators.
type Config struct {
	Logger         *slog.Logger
	Messages       Messages
	Idempotency    Idempotency
	Campaigns      Campaigns
	Notifier       notify.Publisher
	Limiter        Limiter
	Provider       provider.Client
	IdempotencyTTL time.Duration
	SendTimeout    time.Duration
	WaitTimeout    time.Duration
}

// Handler processes every outbound job type.
type Handler struct {
	cfg Config
}

// NewHandler creates the outbound handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{cfg: cfg}
}

// Register binds the handler to every job type it owns.
func (h *Handler) Register(d *job.Dispatcher) {
	for _, t := range []job.Type{
		job.TypeSendText,
		job.TypeSendTemplate,
		job.TypeSendMedia,
		job.TypeSendInteractive,
		job.TypeSendLocation,
		job.TypeSendReaction,
	} {
		d.Register(t, job.HandlerFunc(h.handleSend))
	}
	d.Register(job.TypeMarkRead, job.HandlerFunc(h.handleMarkRead))
}

// handleSend runs the delivery state machine for one send job.
func (h *Handler) handleSend(ctx context.Context, env *job.Envelope, payload job.Payload) error {
	rendered, err := render(env, payload)
	if err != nil {
		return err
	}

	logger := h.cfg.Logger.With(
		slog.String("correlation_id", env.CorrelationID),
		slog.String("job_type", string(env.Type)),
		slog.String("channel_id", env.ChannelID),
	)

	if err := h.cfg.Messages.UpsertOutbound(ctx, rendered.record); err != nil {
		return domain.Retryable(err)
	}

	// The claim is the not-yet-sent gate. A completed claim carries the
	// provider message id of an earlier attempt that crashed before the ack;
	// an empty one means another worker's send is in flight right now, so
	// this delivery backs off and adopts the result on redelivery.
	providerMessageID, acquired, err := h.cfg.Idempotency.Claim(ctx, env.CorrelationID, h.cfg.IdempotencyTTL)
	if err != nil {
		return domain.Retryable(err)
	}
	if !acquired {
		if providerMessageID == "" {
			logger.Info("Send claim held by another worker, backing off")
			return domain.Retryable(domain.ErrSendInFlight)
		}
		logger.Info("Idempotency mark hit, skipping provider call",
			slog.String("provider_message_id", providerMessageID),
		)
		return h.persistSent(ctx, env, rendered, providerMessageID, false)
	}

	// Waiting bounded keeps this worker servicing other channels instead of
	// head-of-line blocking behind one saturated channel.
	if !h.cfg.Limiter.WaitForToken(ctx, env.RateKey(), 1, h.cfg.WaitTimeout) {
		h.releaseClaim(ctx, env.CorrelationID)
		logger.Info("Rate limit wait timed out, requeuing",
			slog.String("rate_key", env.RateKey()),
		)
		return domain.Retryable(domain.ErrRateLimitWait)
	}

	sendCtx, cancel := context.WithTimeout(ctx, h.cfg.SendTimeout)
	defer cancel()

	result, err := h.cfg.Provider.Send(sendCtx, rendered.payload)
	if err != nil {
		// No result to keep; drop the claim so a retry can send.
		h.releaseClaim(ctx, env.CorrelationID)
		if provider.IsPermanent(err) {
			logger.Warn("Provider rejected message permanently", slog.String("error", err.Error()))
			if markErr := h.cfg.Messages.MarkFailed(ctx, env.CorrelationID, err.Error()); markErr != nil {
				logger.Error("Failed to persist failed state", slog.Any("error", markErr))
			}
			h.resolveCampaign(ctx, rendered.campaignID, domain.CampaignCounterFailed)
			h.publish(ctx, notify.Event{
				Type:          notify.EventMessageFailed,
				TenantID:      env.TenantID,
				ChannelID:     env.ChannelID,
				CorrelationID: env.CorrelationID,
				Status:        string(domain.StatusFailed),
				Error:         err.Error(),
			})
			return err
		}
		// Transient or unclassified: the runtime schedules the backoff retry.
		return err
	}

	return h.persistSent(ctx, env, rendered, result.ProviderMessageID, true)
}

// persistSent records the terminal sent state and, for the claim holder,
// completes the claim, bumps the campaign counter, and publishes the
// delivery event. Redeliveries that adopt a completed claim only repair the
// record; the once-per-transition side effects stay with the holder.
func (h *Handler) persistSent(ctx context.Context, env *job.Envelope, rendered *renderedSend, providerMessageID string, fresh bool) error {
	if fresh {
		if err := h.cfg.Idempotency.Complete(ctx, env.CorrelationID, providerMessageID); err != nil {
			// The send happened; releasing the claim now would invite a
			// duplicate send. Keep it and persist with what we have.
			h.cfg.Logger.Error("Failed to record send result on claim",
				slog.String("correlation_id", env.CorrelationID),
				slog.Any("error", err),
			)
		}
	}

	if err := h.cfg.Messages.MarkSent(ctx, env.CorrelationID, providerMessageID); err != nil {
		return domain.Retryable(err)
	}
	if !fresh {
		return nil
	}

	h.resolveCampaign(ctx, rendered.campaignID, domain.CampaignCounterSent)
	h.publish(ctx, notify.Event{
		Type:              notify.EventMessageSent,
		TenantID:          env.TenantID,
		ChannelID:         env.ChannelID,
		CorrelationID:     env.CorrelationID,
		ProviderMessageID: providerMessageID,
		Status:            string(domain.StatusSent),
	})
	return nil
}

// releaseClaim drops a claim whose send never happened. Failure keeps the
// claim until its TTL; redeliveries back off rather than double-send.
func (h *Handler) releaseClaim(ctx context.Context, correlationID string) {
	if err := h.cfg.Idempotency.Release(ctx, correlationID); err != nil {
		h.cfg.Logger.Error("Failed to release send claim",
			slog.String("correlation_id", correlationID),
			slog.Any("error", err),
		)
	}
}

// handleMarkRead forwards a read receipt; there is no local state to update.
func (h *Handler) handleMarkRead(ctx context.Context, env *job.Envelope, payload job.Payload) error {
	p := payload.(*job.MarkRead)

	callCtx, cancel := context.WithTimeout(ctx, h.cfg.SendTimeout)
	defer cancel()

	if err := h.cfg.Provider.MarkRead(callCtx, p.ProviderMessageID); err != nil {
		return err
	}
	return nil
}

func (h *Handler) resolveCampaign(ctx context.Context, campaignID *int64, counter string) {
	if campaignID == nil {
		return
	}
	if err := h.cfg.Campaigns.IncrementCounter(ctx, *campaignID, counter); err != nil {
		h.cfg.Logger.Error("Failed to increment campaign counter",
			slog.Int64("campaign_id", *campaignID),
			slog.String("counter", counter),
			slog.Any("error", err),
		)
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
