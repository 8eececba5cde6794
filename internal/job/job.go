// Package job defines the versioned envelope carried on every queue and the
// typed payload schema for each job type.
package job

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/vutran-dev/relay-be/internal/domain"
)

// EnvelopeVersion is the only payload version this build understands.
const EnvelopeVersion = 1

// Job types.
type Type string

const (
	TypeSendText         Type = "send-text"
	TypeSendTemplate     Type = "send-template"
	TypeSendMedia        Type = "send-media"
	TypeSendInteractive  Type = "send-interactive"
	TypeSendLocation     Type = "send-location"
	TypeSendReaction     Type = "send-reaction"
	TypeMarkRead         Type = "mark-read"
	TypeMediaDownload    Type = "media-download"
	TypeWebhookEvent     Type = "webhook-event"
	TypeCampaignDispatch Type = "campaign-dispatch"
)

// Envelope is the self-describing record pushed onto the queues. It is
// immutable once enqueued; requeues publish a copy with Attempt incremented.
type Envelope struct {
	Version       int             `json:"version"`
	Type          Type            `json:"type"`
	CorrelationID string          `json:"correlation_id"`
	TenantID      string          `json:"tenant_id"`
	ChannelID     string          `json:"channel_id"`
	Attempt       int             `json:"attempt"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	Payload       json.RawMessage `json:"payload"`
}

// RateKey returns the (tenant, channel) quota-isolation key.
func (e *Envelope) RateKey() string {
	return e.TenantID + ":" + e.ChannelID
}

// Encode marshals the envelope for publishing.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// NextAttempt returns a copy of the envelope with the attempt counter bumped.
func (e *Envelope) NextAttempt() *Envelope {
	next := *e
	next.Attempt++
	return &next
}

// Decode parses raw queue bytes into an Envelope and checks the fields every
// job type shares. Schema errors are permanent: they cannot self-heal, so
// callers dead-letter instead of retrying.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, domain.Invalid("malformed envelope: %v", err)
	}
	if env.Version != EnvelopeVersion {
		return nil, domain.Invalid("unsupported envelope version %d", env.Version)
	}
	if env.Type == "" {
		return nil, domain.Invalid("missing job type")
	}
	if strings.TrimSpace(env.CorrelationID) == "" {
		return nil, domain.Invalid("missing correlation id")
	}
	if env.TenantID == "" || env.ChannelID == "" {
		return nil, domain.Invalid("missing tenant/channel keys")
	}
	return &env, nil
}
