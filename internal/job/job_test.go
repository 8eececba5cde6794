package job

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vutran-dev/relay-be/internal/domain"
)

func validEnvelope(t *testing.T, jobType Type, payload any) *Envelope {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return &Envelope{
		Version:       EnvelopeVersion,
		Type:          jobType,
		CorrelationID: "corr-1",
		TenantID:      "t1",
		ChannelID:     "ch1",
		EnqueuedAt:    time.Now().UTC(),
		Payload:       body,
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	env := validEnvelope(t, TypeSendText, &SendText{To: "+14155550100", Text: "hello"})
	raw, err := env.Encode()
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, env.CorrelationID, decoded.CorrelationID)
	assert.Equal(t, env.Type, decoded.Type)
	assert.Equal(t, env.TenantID, decoded.TenantID)
	assert.Equal(t, 0, decoded.Attempt)
}

func TestDecodeRejectsBadEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "{{{"},
		{name: "wrong version", raw: `{"version":99,"type":"send-text","correlation_id":"c","tenant_id":"t","channel_id":"ch"}`},
		{name: "missing type", raw: `{"version":1,"correlation_id":"c","tenant_id":"t","channel_id":"ch"}`},
		{name: "missing correlation id", raw: `{"version":1,"type":"send-text","tenant_id":"t","channel_id":"ch"}`},
		{name: "blank correlation id", raw: `{"version":1,"type":"send-text","correlation_id":"  ","tenant_id":"t","channel_id":"ch"}`},
		{name: "missing tenant", raw: `{"version":1,"type":"send-text","correlation_id":"c","channel_id":"ch"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidJob)
		})
	}
}

func TestDecodePayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		jobType Type
		payload any
		wantErr string
	}{
		{name: "valid text", jobType: TypeSendText, payload: &SendText{To: "+1", Text: "hi"}},
		{name: "text without recipient", jobType: TypeSendText, payload: &SendText{Text: "hi"}, wantErr: "recipient is required"},
		{name: "template without locale", jobType: TypeSendTemplate, payload: &SendTemplate{To: "+1", TemplateName: "welcome"}, wantErr: "locale is required"},
		{name: "media with bad kind", jobType: TypeSendMedia, payload: &SendMedia{To: "+1", MediaURL: "u", Kind: "hologram"}, wantErr: "unknown media kind"},
		{name: "location out of range", jobType: TypeSendLocation, payload: &SendLocation{To: "+1", Latitude: 91}, wantErr: "coordinates out of range"},
		{name: "interactive without actions", jobType: TypeSendInteractive, payload: &SendInteractive{To: "+1", Kind: "button", Body: "b"}, wantErr: "actions are required"},
		{name: "webhook without raw", jobType: TypeWebhookEvent, payload: &WebhookEvent{EventID: "e1"}, wantErr: "raw payload is required"},
		{name: "campaign without id", jobType: TypeCampaignDispatch, payload: &CampaignDispatch{}, wantErr: "campaign id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := validEnvelope(t, tt.jobType, tt.payload)
			decoded, err := DecodePayload(env)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidJob)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, decoded)
		})
	}
}

func TestDecodePayloadUnknownType(t *testing.T) {
	env := validEnvelope(t, Type("teleport"), map[string]string{})
	_, err := DecodePayload(env)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidJob)
	assert.Contains(t, err.Error(), "unknown job type")
}

func TestNextAttempt(t *testing.T) {
	env := validEnvelope(t, TypeSendText, &SendText{To: "+1", Text: "hi"})
	env.Attempt = 2

	next := env.NextAttempt()
	assert.Equal(t, 3, next.Attempt)
	assert.Equal(t, 2, env.Attempt, "original envelope is unchanged")
	assert.Equal(t, env.CorrelationID, next.CorrelationID)
}

func TestRateKey(t *testing.T) {
	env := &Envelope{TenantID: "acme", ChannelID: "wa-main"}
	assert.Equal(t, "acme:wa-main", env.RateKey())
}
