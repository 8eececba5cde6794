// Package provider defines the contract with the upstream messaging provider.
// The concrete REST client lives outside this repository; workers only depend
// on the Client interface and the error classification here. Idempotency is
// the caller's responsibility, not the client's.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Payload is the rendered, provider-ready body of one send request.
type Payload struct {
	ChannelID string         `json:"channel_id"`
	To        string         `json:"to"`
	Type      string         `json:"type"`
	Body      map[string]any `json:"body"`
}

// SendResult is the normalized success response from the provider.
type SendResult struct {
	ProviderMessageID string `json:"provider_message_id"`
}

// Client is the outbound boundary to the messaging provider.
type Client interface {
	Send(ctx context.Context, payload Payload) (*SendResult, error)
	FetchDownloadURL(ctx context.Context, mediaRef string) (string, error)
	MarkRead(ctx context.Context, providerMessageID string) error
}

// Sentinel errors used to classify provider failures. Transient errors are
// retried with backoff; permanent errors go straight to the dead-letter area.
var (
	ErrTransient = errors.New("transient provider error")
	ErrPermanent = errors.New("permanent provider error")
)

// Error carries the provider's error code alongside the retry classification.
type Error struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
}

// Unwrap maps the classification onto the sentinels so callers can use
// errors.Is without inspecting codes.
func (e *Error) Unwrap() error {
	if e.Retryable {
		return ErrTransient
	}
	return ErrPermanent
}

// WrapTransient annotates err as retryable.
func WrapTransient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// WrapPermanent annotates err as not retryable.
func WrapPermanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %v", ErrPermanent, err)
}

// IsTransient reports whether err should be retried. Context timeouts count
// as transient: the provider may simply have been slow.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

// IsPermanent reports whether err must never be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
