package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vutran-dev/relay-be/internal/domain"
)

const inboundTextCallback = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "entry-1",
		"changes": [{
			"field": "messages",
			"value": {
				"messages": [{
					"id": "wamid.in1",
					"from": "+14155550100",
					"timestamp": "1750000000",
					"type": "text",
					"text": {"body": "hi there"}
				}]
			}
		}]
	}]
}`

const statusCallback = `{
	"entry": [{
		"changes": [{
			"field": "messages",
			"value": {
				"statuses": [
					{"id": "wamid.out1", "status": "delivered", "timestamp": "1750000100"},
					{"id": "wamid.out2", "status": "failed", "timestamp": "1750000200",
					 "errors": [{"code": 131026, "title": "recipient not on platform"}]}
				]
			}
		}]
	}]
}`

func TestClassifyInboundText(t *testing.T) {
	c, err := Classify([]byte(inboundTextCallback))
	require.NoError(t, err)

	require.Len(t, c.Inbound, 1)
	inbound := c.Inbound[0]
	assert.Equal(t, "wamid.in1", inbound.ProviderMessageID)
	assert.Equal(t, "+14155550100", inbound.From)
	assert.Equal(t, "text", inbound.Type)
	assert.Equal(t, "hi there", inbound.Text)
	assert.Empty(t, inbound.MediaRef)
	assert.Equal(t, time.Unix(1750000000, 0).UTC(), inbound.Timestamp)
	assert.Empty(t, c.Statuses)
}

func TestClassifyInboundMedia(t *testing.T) {
	raw := `{
		"entry": [{"changes": [{"field": "messages", "value": {
			"messages": [{
				"id": "wamid.in2",
				"from": "+14155550100",
				"timestamp": "1750000000",
				"type": "image",
				"image": {"id": "media-9", "mime_type": "image/jpeg", "caption": "receipt"}
			}]
		}}]}]
	}`

	c, err := Classify([]byte(raw))
	require.NoError(t, err)

	require.Len(t, c.Inbound, 1)
	assert.Equal(t, "media-9", c.Inbound[0].MediaRef)
	assert.Equal(t, "image/jpeg", c.Inbound[0].MimeType)
	assert.Equal(t, "receipt", c.Inbound[0].Text)
}

func TestClassifyStatuses(t *testing.T) {
	c, err := Classify([]byte(statusCallback))
	require.NoError(t, err)

	require.Len(t, c.Statuses, 2)
	assert.Equal(t, domain.StatusDelivered, c.Statuses[0].Status)
	assert.Equal(t, "wamid.out1", c.Statuses[0].ProviderMessageID)
	assert.Equal(t, domain.StatusFailed, c.Statuses[1].Status)
	assert.Equal(t, "131026: recipient not on platform", c.Statuses[1].ErrorDetail)
}

func TestClassifyTemplateUpdate(t *testing.T) {
	raw := `{
		"entry": [{"changes": [{
			"field": "message_template_status_update",
			"value": {"event": "APPROVED", "message_template_name": "welcome"}
		}]}]
	}`

	c, err := Classify([]byte(raw))
	require.NoError(t, err)

	require.Len(t, c.Templates, 1)
	assert.Equal(t, "APPROVED", c.Templates[0].Event)
	assert.Equal(t, "welcome", c.Templates[0].TemplateName)
}

func TestClassifyUnknownChangeCounted(t *testing.T) {
	raw := `{"entry": [{"changes": [{"field": "account_review_update", "value": {}}]}]}`

	c, err := Classify([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Unknown)
	assert.Empty(t, c.Inbound)
}

func TestClassifyUnknownStatusValueCounted(t *testing.T) {
	raw := `{
		"entry": [{"changes": [{"field": "messages", "value": {
			"statuses": [{"id": "wamid.x", "status": "teleported", "timestamp": "1"}]
		}}]}]
	}`

	c, err := Classify([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, c.Statuses)
	assert.Equal(t, 1, c.Unknown)
}

func TestClassifyMalformedBody(t *testing.T) {
	_, err := Classify([]byte("not json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidJob)
}
