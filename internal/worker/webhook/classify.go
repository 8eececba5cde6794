package webhook

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/vutran-dev/relay-be/internal/domain"
)

// InboundMessage is one customer-initiated message extracted from a callback.
type InboundMessage struct {
	ProviderMessageID string
	From              string
	Type              string
	Text              string
	MediaRef          string
	MimeType          string
	Timestamp         time.Time
}

// StatusUpdate is one delivery-status transition extracted from a callback.
type StatusUpdate struct {
	ProviderMessageID string
	Status            domain.DeliveryStatus
	ErrorDetail       string
	Timestamp         time.Time
}

// TemplateUpdate is a template review-state change extracted from a callback.
type TemplateUpdate struct {
	TemplateName string
	Event        string
}

// Classified holds everything recognized in one callback. Unrecognized change
// fields are counted, not dropped silently.
type Classified struct {
	Inbound   []InboundMessage
	Statuses  []StatusUpdate
	Templates []TemplateUpdate
	Unknown   int
}

// Wire shapes for the provider callback body. Only the fields the pipeline
// consumes are decoded.
type callbackBody struct {
	Entry []struct {
		Changes []struct {
			Field string          `json:"field"`
			Value json.RawMessage `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type messagesValue struct {
	Messages []struct {
		ID        string `json:"id"`
		From      string `json:"from"`
		Timestamp string `json:"timestamp"`
		Type      string `json:"type"`
		Text      *struct {
			Body string `json:"body"`
		} `json:"text"`
		Image    *mediaObject `json:"image"`
		Video    *mediaObject `json:"video"`
		Audio    *mediaObject `json:"audio"`
		Document *mediaObject `json:"document"`
	} `json:"messages"`
	Statuses []struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
		Errors    []struct {
			Code  int    `json:"code"`
			Title string `json:"title"`
		} `json:"errors"`
	} `json:"statuses"`
}

type mediaObject struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

type templateValue struct {
	Event               string `json:"event"`
	MessageTemplateName string `json:"message_template_name"`
}

// Classify parses one raw callback body into typed inbound messages, status
// updates, and template updates. A body that does not parse at all is a
// validation error; individual unrecognized changes only bump Unknown.
func Classify(raw []byte) (*Classified, error) {
	var body callbackBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, domain.Invalid("malformed webhook body: %v", err)
	}

	out := &Classified{}
	for _, entry := range body.Entry {
		for _, change := range entry.Changes {
			switch change.Field {
			case "messages":
				if err := classifyMessages(change.Value, out); err != nil {
					return nil, err
				}
			case "message_template_status_update":
				var value templateValue
				if err := json.Unmarshal(change.Value, &value); err != nil {
					return nil, domain.Invalid("malformed template update: %v", err)
				}
				out.Templates = append(out.Templates, TemplateUpdate{
					TemplateName: value.MessageTemplateName,
					Event:        value.Event,
				})
			default:
				out.Unknown++
			}
		}
	}
	return out, nil
}

func classifyMessages(raw json.RawMessage, out *Classified) error {
	var value messagesValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return domain.Invalid("malformed messages change: %v", err)
	}

	for _, msg := range value.Messages {
		inbound := InboundMessage{
			ProviderMessageID: msg.ID,
			From:              msg.From,
			Type:              msg.Type,
			Timestamp:         parseEpoch(msg.Timestamp),
		}
		if msg.Text != nil {
			inbound.Text = msg.Text.Body
		}
		if media := firstMedia(msg.Image, msg.Video, msg.Audio, msg.Document); media != nil {
			inbound.MediaRef = media.ID
			inbound.MimeType = media.MimeType
			inbound.Text = media.Caption
		}
		out.Inbound = append(out.Inbound, inbound)
	}

	for _, st := range value.Statuses {
		status, ok := domain.ParseDeliveryStatus(st.Status)
		if !ok {
			// Provider status values outside the known set are ignored
			// rather than failing the whole event.
			out.Unknown++
			continue
		}
		update := StatusUpdate{
			ProviderMessageID: st.ID,
			Status:            status,
			Timestamp:         parseEpoch(st.Timestamp),
		}
		if len(st.Errors) > 0 {
			update.ErrorDetail = strconv.Itoa(st.Errors[0].Code) + ": " + st.Errors[0].Title
		}
		out.Statuses = append(out.Statuses, update)
	}
	return nil
}

func firstMedia(objs ...*mediaObject) *mediaObject {
	for _, o := range objs {
		if o != nil {
			return o
		}
	}
	return nil
}

// parseEpoch converts the provider's second-resolution epoch string. A blank
// or bad value falls back to now so records always carry a timestamp.
func parseEpoch(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
