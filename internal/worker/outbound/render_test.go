package outbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vutran-dev/relay-be/internal/domain"
	"github.com/vutran-dev/relay-be/internal/job"
)

func TestRenderSendTypes(t *testing.T) {
	campaignID := int64(42)
	env := &job.Envelope{
		Version:       job.EnvelopeVersion,
		CorrelationID: "corr-1",
		TenantID:      "t1",
		ChannelID:     "ch1",
	}

	tests := []struct {
		name     string
		jobType  job.Type
		payload  job.Payload
		wantType string
		check    func(t *testing.T, r *renderedSend)
	}{
		{
			name:     "text",
			jobType:  job.TypeSendText,
			payload:  &job.SendText{To: "+1", Text: "hello"},
			wantType: "text",
			check: func(t *testing.T, r *renderedSend) {
				assert.Equal(t, "hello", r.payload.Body["text"])
				assert.Equal(t, "hello", r.record.Body)
			},
		},
		{
			name:     "template carries campaign",
			jobType:  job.TypeSendTemplate,
			payload:  &job.SendTemplate{To: "+1", TemplateName: "welcome", Locale: "en", CampaignID: &campaignID},
			wantType: "template",
			check: func(t *testing.T, r *renderedSend) {
				require.NotNil(t, r.campaignID)
				assert.Equal(t, int64(42), *r.campaignID)
			},
		},
		{
			name:     "media keeps reference",
			jobType:  job.TypeSendMedia,
			payload:  &job.SendMedia{To: "+1", MediaURL: "mem://obj", Kind: "image", Caption: "receipt"},
			wantType: "image",
			check: func(t *testing.T, r *renderedSend) {
				assert.Equal(t, "mem://obj", r.record.MediaRef)
			},
		},
		{
			name:     "location",
			jobType:  job.TypeSendLocation,
			payload:  &job.SendLocation{To: "+1", Latitude: 48.85, Longitude: 2.35, Name: "Paris"},
			wantType: "location",
			check: func(t *testing.T, r *renderedSend) {
				assert.Equal(t, 48.85, r.payload.Body["latitude"])
			},
		},
		{
			name:     "reaction",
			jobType:  job.TypeSendReaction,
			payload:  &job.SendReaction{To: "+1", TargetProviderMessageID: "wamid.x", Emoji: "👍"},
			wantType: "reaction",
			check: func(t *testing.T, r *renderedSend) {
				assert.Equal(t, "wamid.x", r.payload.Body["message_id"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := *env
			e.Type = tt.jobType
			r, err := render(&e, tt.payload)
			require.NoError(t, err)

			assert.Equal(t, tt.wantType, r.payload.Type)
			assert.Equal(t, "+1", r.payload.To)
			assert.Equal(t, "ch1", r.payload.ChannelID)
			assert.Equal(t, "corr-1", r.record.CorrelationID)
			tt.check(t, r)
		})
	}
}

func TestRenderRejectsNonSendTypes(t *testing.T) {
	env := &job.Envelope{Type: job.TypeMediaDownload, ChannelID: "ch1"}
	_, err := render(env, &job.MediaDownload{MediaRef: "m"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidJob)
}
