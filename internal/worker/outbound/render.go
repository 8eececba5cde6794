package outbound

import (
	"encoding/json"
	"fmt"

	"github.com/vutran-dev/relay-be/internal/domain"
	"github.com/vutran-dev/relay-be/internal/job"
	"github.com/vutran-dev/relay-be/internal/provider"
)

// renderedSend is the provider payload plus everything persistence needs.
type renderedSend struct {
	payload    provider.Payload
	record     *domain.Message
	campaignID *int64
}

// render turns a typed job payload into the provider wire shape and the
// pending message record.
func render(env *job.Envelope, payload job.Payload) (*renderedSend, error) {
	base := provider.Payload{ChannelID: env.ChannelID}
	record := &domain.Message{
		CorrelationID: env.CorrelationID,
		TenantID:      env.TenantID,
		ChannelID:     env.ChannelID,
		Type:          string(env.Type),
	}

	switch p := payload.(type) {
	case *job.SendText:
		base.To = p.To
		base.Type = "text"
		base.Body = map[string]any{"text": p.Text}
		record.Body = p.Text

	case *job.SendTemplate:
		base.To = p.To
		base.Type = "template"
		base.Body = map[string]any{
			"template_name": p.TemplateName,
			"locale":        p.Locale,
			"params":        p.Params,
		}
		record.Body = p.TemplateName
		record.CampaignID = p.CampaignID

	case *job.SendMedia:
		base.To = p.To
		base.Type = p.Kind
		base.Body = map[string]any{
			"media_url": p.MediaURL,
			"caption":   p.Caption,
		}
		record.Body = p.Caption
		record.MediaRef = p.MediaURL

	case *job.SendInteractive:
		base.To = p.To
		base.Type = "interactive"
		base.Body = map[string]any{
			"kind":    p.Kind,
			"body":    p.Body,
			"actions": json.RawMessage(p.Actions),
		}
		record.Body = p.Body

	case *job.SendLocation:
		base.To = p.To
		base.Type = "location"
		base.Body = map[string]any{
			"latitude":  p.Latitude,
			"longitude": p.Longitude,
			"name":      p.Name,
		}
		record.Body = p.Name

	case *job.SendReaction:
		base.To = p.To
		base.Type = "reaction"
		base.Body = map[string]any{
			"message_id": p.TargetProviderMessageID,
			"emoji":      p.Emoji,
		}
		record.Body = p.Emoji

	default:
		return nil, domain.Invalid("job type %q is not an outbound send", env.Type)
	}

	if base.To == "" {
		return nil, domain.Invalid("%s: rendered payload has no recipient", env.Type)
	}

	return &renderedSend{
		payload:    base,
		record:     record,
		campaignID: record.CampaignID,
	}, nil
}

// String implements fmt.Stringer for debug logging without dumping bodies.
func (r *renderedSend) String() string {
	return fmt.Sprintf("send[type=%s to=%s]", r.payload.Type, r.payload.To)
}
