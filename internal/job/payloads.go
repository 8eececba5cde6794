package job

import (
	"encoding/json"
	"strings"

	"github.com/vutran-dev/relay-be/internal/domain"
)

// Payload is implemented by every typed job payload.
type Payload interface {
	Validate() error
}

// SendText delivers a free-form text message.
type SendText struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (p *SendText) Validate() error {
	if strings.TrimSpace(p.To) == "" {
		return domain.Invalid("send-text: recipient is required")
	}
	if p.Text == "" {
		return domain.Invalid("send-text: text is required")
	}
	return nil
}

// SendTemplate delivers a pre-approved template with parameters.
type SendTemplate struct {
	To           string            `json:"to"`
	TemplateName string            `json:"template_name"`
	Locale       string            `json:"locale"`
	Params       map[string]string `json:"params,omitempty"`
	CampaignID   *int64            `json:"campaign_id,omitempty"`
}

func (p *SendTemplate) Validate() error {
	if strings.TrimSpace(p.To) == "" {
		return domain.Invalid("send-template: recipient is required")
	}
	if p.TemplateName == "" {
		return domain.Invalid("send-template: template name is required")
	}
	if p.Locale == "" {
		return domain.Invalid("send-template: locale is required")
	}
	return nil
}

// SendMedia delivers a previously uploaded media object.
type SendMedia struct {
	To       string `json:"to"`
	MediaURL string `json:"media_url"`
	Kind     string `json:"kind"` // image, video, audio, document
	Caption  string `json:"caption,omitempty"`
}

var mediaKinds = map[string]bool{"image": true, "video": true, "audio": true, "document": true}

func (p *SendMedia) Validate() error {
	if strings.TrimSpace(p.To) == "" {
		return domain.Invalid("send-media: recipient is required")
	}
	if p.MediaURL == "" {
		return domain.Invalid("send-media: media url is required")
	}
	if !mediaKinds[p.Kind] {
		return domain.Invalid("send-media: unknown media kind %q", p.Kind)
	}
	return nil
}

// SendInteractive delivers a button or list message.
type SendInteractive struct {
	To      string          `json:"to"`
	Kind    string          `json:"kind"` // button, list
	Body    string          `json:"body"`
	Actions json.RawMessage `json:"actions"`
}

func (p *SendInteractive) Validate() error {
	if strings.TrimSpace(p.To) == "" {
		return domain.Invalid("send-interactive: recipient is required")
	}
	if p.Kind != "button" && p.Kind != "list" {
		return domain.Invalid("send-interactive: unknown kind %q", p.Kind)
	}
	if p.Body == "" || len(p.Actions) == 0 {
		return domain.Invalid("send-interactive: body and actions are required")
	}
	return nil
}

// SendLocation delivers a geographic coordinate pair.
type SendLocation struct {
	To        string  `json:"to"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

func (p *SendLocation) Validate() error {
	if strings.TrimSpace(p.To) == "" {
		return domain.Invalid("send-location: recipient is required")
	}
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return domain.Invalid("send-location: coordinates out of range")
	}
	return nil
}

// SendReaction attaches an emoji reaction to an existing message.
type SendReaction struct {
	To                      string `json:"to"`
	TargetProviderMessageID string `json:"target_provider_message_id"`
	Emoji                   string `json:"emoji"`
}

func (p *SendReaction) Validate() error {
	if strings.TrimSpace(p.To) == "" {
		return domain.Invalid("send-reaction: recipient is required")
	}
	if p.TargetProviderMessageID == "" {
		return domain.Invalid("send-reaction: target message id is required")
	}
	return nil
}

// MarkRead sends a read receipt for an inbound message.
type MarkRead struct {
	ProviderMessageID string `json:"provider_message_id"`
}

func (p *MarkRead) Validate() error {
	if p.ProviderMessageID == "" {
		return domain.Invalid("mark-read: provider message id is required")
	}
	return nil
}

// MediaDownload fetches inbound media from the provider into object storage.
type MediaDownload struct {
	MediaRef string `json:"media_ref"`
	MimeType string `json:"mime_type"`
}

func (p *MediaDownload) Validate() error {
	if p.MediaRef == "" {
		return domain.Invalid("media-download: media reference is required")
	}
	return nil
}

// WebhookEvent wraps one raw provider callback for asynchronous ingestion.
type WebhookEvent struct {
	EventID string          `json:"event_id"`
	Raw     json.RawMessage `json:"raw"`
}

func (p *WebhookEvent) Validate() error {
	if p.EventID == "" {
		return domain.Invalid("webhook-event: event id is required")
	}
	if len(p.Raw) == 0 {
		return domain.Invalid("webhook-event: raw payload is required")
	}
	return nil
}

// CampaignDispatch fans a campaign out into per-recipient send jobs.
type CampaignDispatch struct {
	CampaignID int64 `json:"campaign_id"`
}

func (p *CampaignDispatch) Validate() error {
	if p.CampaignID <= 0 {
		return domain.Invalid("campaign-dispatch: campaign id is required")
	}
	return nil
}

// payloadFor returns a zero value of the payload struct for t, or nil when
// the type is unknown.
func payloadFor(t Type) Payload {
	switch t {
	case TypeSendText:
		return &SendText{}
	case TypeSendTemplate:
		return &SendTemplate{}
	case TypeSendMedia:
		return &SendMedia{}
	case TypeSendInteractive:
		return &SendInteractive{}
	case TypeSendLocation:
		return &SendLocation{}
	case TypeSendReaction:
		return &SendReaction{}
	case TypeMarkRead:
		return &MarkRead{}
	case TypeMediaDownload:
		return &MediaDownload{}
	case TypeWebhookEvent:
		return &WebhookEvent{}
	case TypeCampaignDispatch:
		return &CampaignDispatch{}
	default:
		return nil
	}
}

// DecodePayload unmarshals and validates the envelope's typed payload.
func DecodePayload(env *Envelope) (Payload, error) {
	p := payloadFor(env.Type)
	if p == nil {
		return nil, domain.Invalid("unknown job type %q", env.Type)
	}
	if err := json.Unmarshal(env.Payload, p); err != nil {
		return nil, domain.Invalid("%s: malformed payload: %v", env.Type, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
