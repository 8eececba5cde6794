// Package campaign fans one campaign-dispatch job out into per-recipient
// send-template jobs. Fan-out is idempotent: a retried dispatch only enqueues
// jobs for recipients that have no tracking row yet.
package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vutran-dev/relay-be/internal/domain"
	"github.com/vutran-dev/relay-be/internal/job"
	"github.com/vutran-dev/relay-be/internal/store"
)

// Campaigns is the store surface the fan-out reads and writes.
type Campaigns interface {
	Get(ctx context.Context, id int64) (*domain.Campaign, error)
	Targets(ctx context.Context, campaignID int64) ([]store.CampaignTarget, error)
	TrackRecipient(ctx context.Context, campaignID int64, recipient, correlationID, params string) (bool, error)
	MarkDispatched(ctx context.Context, campaignID int64, total int) error
}

// Enqueuer publishes per-recipient jobs onto the outbound queue.
type Enqueuer interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Config wires the fan-out's collaborators.
type Config struct {
	Logger        *slog.Logger
	Campaigns     Campaigns
	Enqueuer      Enqueuer
	OutboundQueue string
	// Parallelism bounds concurrent track-and-enqueue operations.
	Parallelism int
}

// Handler processes campaign-dispatch jobs.
type Handler struct {
	cfg Config
}

// NewHandler creates the campaign handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 8
	}
	return &Handler{cfg: cfg}
}

// Register binds the handler to the job type it owns.
func (h *Handler) Register(d *job.Dispatcher) {
	d.Register(job.TypeCampaignDispatch, job.HandlerFunc(h.handleDispatch))
}

// handleDispatch loads the campaign and its recipient list, then creates one
// tracking row plus one send-template job per recipient. The tracking insert
// runs before the publish so a crash between the two loses at most one send
// job, never double-enqueues one.
func (h *Handler) handleDispatch(ctx context.Context, env *job.Envelope, payload job.Payload) error {
	p := payload.(*job.CampaignDispatch)

	logger := h.cfg.Logger.With(slog.Int64("campaign_id", p.CampaignID))

	c, err := h.cfg.Campaigns.Get(ctx, p.CampaignID)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return domain.Invalid("campaign %d does not exist", p.CampaignID)
		}
		return domain.Retryable(err)
	}

	targets, err := h.cfg.Campaigns.Targets(ctx, c.ID)
	if err != nil {
		return domain.Retryable(err)
	}

	var enqueued, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Parallelism)

	for _, target := range targets {
		g.Go(func() error {
			correlationID := uuid.New().String()
			fresh, err := h.cfg.Campaigns.TrackRecipient(gctx, c.ID, target.Address, correlationID, target.Params)
			if err != nil {
				return err
			}
			if !fresh {
				skipped.Add(1)
				return nil
			}
			if err := h.enqueueSend(gctx, c, target, correlationID); err != nil {
				return err
			}
			enqueued.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrInvalidJob) {
			return err
		}
		// Tracking rows already written survive; the retry resumes where
		// this pass stopped.
		return domain.Retryable(err)
	}

	if err := h.cfg.Campaigns.MarkDispatched(ctx, c.ID, len(targets)); err != nil {
		return domain.Retryable(err)
	}

	logger.Info("Campaign dispatched",
		slog.Int("total", len(targets)),
		slog.Int64("enqueued", enqueued.Load()),
		slog.Int64("skipped", skipped.Load()),
	)
	return nil
}

func (h *Handler) enqueueSend(ctx context.Context, c *domain.Campaign, target store.CampaignTarget, correlationID string) error {
	params := map[string]string{}
	if target.Params != "" {
		if err := json.Unmarshal([]byte(target.Params), &params); err != nil {
			return domain.Invalid("campaign %d: bad params for %s: %v", c.ID, target.Address, err)
		}
	}

	body, err := json.Marshal(&job.SendTemplate{
		To:           target.Address,
		TemplateName: c.TemplateName,
		Locale:       c.TemplateLocale,
		Params:       params,
		CampaignID:   &c.ID,
	})
	if err != nil {
		return err
	}

	sendEnv := &job.Envelope{
		Version:       job.EnvelopeVersion,
		Type:          job.TypeSendTemplate,
		CorrelationID: correlationID,
		TenantID:      c.TenantID,
		ChannelID:     c.ChannelID,
		EnqueuedAt:    time.Now().UTC(),
		Payload:       body,
	}
	encoded, err := sendEnv.Encode()
	if err != nil {
		return err
	}
	return h.cfg.Enqueuer.Publish(ctx, h.cfg.OutboundQueue, encoded)
}
