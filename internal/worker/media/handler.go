// Package media fetches inbound media from the provider into object storage.
// The fetch is two-phase: resolve a short-lived download URL, then stream the
// bytes. The download URL is never persisted because it expires.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/vutran-dev/relay-be/internal/domain"
	"github.com/vutran-dev/relay-be/internal/job"
	"github.com/vutran-dev/relay-be/internal/objectstore"
	"github.com/vutran-dev/relay-be/internal/provider"
)

// Messages is the store surface the download pipeline writes through.
type Messages interface {
	SetMediaLocation(ctx context.Context, correlationID, location string) error
}

// Config wires the download pipeline's collaborators.
type Config struct {
	Logger       *slog.Logger
	Messages     Messages
	Provider     provider.Client
	Objects      objectstore.Store
	HTTPClient   *http.Client
	FetchTimeout time.Duration
}

// Handler processes media-download jobs.
type Handler struct {
	cfg Config
}

// NewHandler creates the media handler. A nil HTTPClient falls back to a
// default client; the per-fetch timeout always comes from FetchTimeout.
func NewHandler(cfg Config) *Handler {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Handler{cfg: cfg}
}

// Register binds the handler to the job type it owns.
func (h *Handler) Register(d *job.Dispatcher) {
	d.Register(job.TypeMediaDownload, job.HandlerFunc(h.handleDownload))
}

// handleDownload resolves the download URL, streams the object into storage,
// and records the durable location on the message row.
func (h *Handler) handleDownload(ctx context.Context, env *job.Envelope, payload job.Payload) error {
	p := payload.(*job.MediaDownload)

	logger := h.cfg.Logger.With(
		slog.String("correlation_id", env.CorrelationID),
		slog.String("media_ref", p.MediaRef),
	)

	fetchCtx, cancel := context.WithTimeout(ctx, h.cfg.FetchTimeout)
	defer cancel()

	url, err := h.cfg.Provider.FetchDownloadURL(fetchCtx, p.MediaRef)
	if err != nil {
		// Classification passes through: an expired or deleted media ref
		// is permanent, provider hiccups are transient.
		return err
	}

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return provider.WrapPermanent(err)
	}
	resp, err := h.cfg.HTTPClient.Do(req)
	if err != nil {
		return provider.WrapTransient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The short-lived URL outlived its media.
		return provider.WrapPermanent(fmt.Errorf("media %s no longer available: status %d", p.MediaRef, resp.StatusCode))
	default:
		return provider.WrapTransient(fmt.Errorf("media fetch returned status %d", resp.StatusCode))
	}

	objectPath := path.Join(env.TenantID, env.ChannelID, env.CorrelationID)
	location, err := h.cfg.Objects.Put(ctx, resp.Body, p.MimeType, objectPath)
	if err != nil {
		return domain.Retryable(err)
	}

	if err := h.cfg.Messages.SetMediaLocation(ctx, env.CorrelationID, location); err != nil {
		// The object is stored under a deterministic path; a replay
		// overwrites it and retries the row update.
		return domain.Retryable(err)
	}

	logger.Info("Media stored", slog.String("location", location))
	return nil
}
