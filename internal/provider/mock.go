package provider

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Scenario enumerates the behaviours the mock provider can simulate.
type Scenario string

const (
	ScenarioSuccess      Scenario = "success"
	ScenarioTransient    Scenario = "transient"
	ScenarioRateLimited  Scenario = "rate_limited"
	ScenarioBadRecipient Scenario = "bad_recipient"
	ScenarioExpiredMedia Scenario = "expired_media"
)

// MockOption customises the mock provider at construction time.
type MockOption func(*Mock)

// WithScenario overrides the default success scenario.
func WithScenario(s Scenario) MockOption {
	return func(m *Mock) { m.scenario = s }
}

// WithLatency sets the artificial latency inserted before responding.
func WithLatency(d time.Duration) MockOption {
	return func(m *Mock) {
		if d > 0 {
			m.latency = d
		}
	}
}

// WithMessageID pins the provider message id returned on success.
func WithMessageID(id string) MockOption {
	return func(m *Mock) { m.fixedID = id }
}

// Mock is a deterministic in-process Client for tests and local runs.
// Payload bodies may carry a "scenario" entry to override the default
// behaviour per call.
type Mock struct {
	scenario Scenario
	latency  time.Duration
	fixedID  string

	sendCalls atomic.Int64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMock constructs a mock provider that succeeds by default.
func NewMock(opts ...MockOption) *Mock {
	m := &Mock{
		scenario: ScenarioSuccess,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// SendCalls returns how many times Send was invoked.
func (m *Mock) SendCalls() int {
	return int(m.sendCalls.Load())
}

// Send simulates a provider send and classifies failures like the real API.
func (m *Mock) Send(ctx context.Context, payload Payload) (*SendResult, error) {
	m.sendCalls.Add(1)

	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.To) == "" {
		return nil, &Error{Code: "131026", Message: "recipient is required", Retryable: false}
	}

	switch m.scenarioFor(payload) {
	case ScenarioSuccess:
		return &SendResult{ProviderMessageID: m.messageID()}, nil
	case ScenarioTransient:
		return nil, &Error{Code: "500", Message: "internal provider error", Retryable: true}
	case ScenarioRateLimited:
		return nil, &Error{Code: "429", Message: "too many requests", Retryable: true}
	case ScenarioBadRecipient:
		return nil, &Error{Code: "131026", Message: "recipient not on platform", Retryable: false}
	default:
		return nil, &Error{Code: "400", Message: "unknown scenario", Retryable: false}
	}
}

// FetchDownloadURL resolves a short-lived download URL for a media reference.
func (m *Mock) FetchDownloadURL(ctx context.Context, mediaRef string) (string, error) {
	if err := m.sleep(ctx); err != nil {
		return "", err
	}
	if mediaRef == "" || m.scenario == ScenarioExpiredMedia {
		return "", &Error{Code: "404", Message: "media reference expired", Retryable: false}
	}
	return "https://media.example.invalid/" + mediaRef, nil
}

// MarkRead acknowledges an inbound message as read.
func (m *Mock) MarkRead(ctx context.Context, providerMessageID string) error {
	if err := m.sleep(ctx); err != nil {
		return err
	}
	if providerMessageID == "" {
		return &Error{Code: "400", Message: "provider message id is required", Retryable: false}
	}
	return nil
}

func (m *Mock) scenarioFor(payload Payload) Scenario {
	if v, ok := payload.Body["scenario"].(string); ok && v != "" {
		return Scenario(v)
	}
	return m.scenario
}

func (m *Mock) messageID() string {
	if m.fixedID != "" {
		return m.fixedID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("wamid.%d", m.rnd.Int63())
}

func (m *Mock) sleep(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
