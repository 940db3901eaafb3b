// Package broadcast implements the announcement pipeline: the manager bot
// classifies an operator message into an Envelope and publishes it on the
// shared channel; the content bot's Engine drains the channel and fans each
// envelope out to every registered recipient.
package broadcast

import (
	"encoding/json"
	"fmt"
)

// Kind is the envelope discriminant carried on the wire as "content_type".
type Kind string

const (
	KindRawMessage     Kind = "raw_message"
	KindText           Kind = "text"
	KindPhoto          Kind = "photo"
	KindVideo          Kind = "video"
	KindDocument       Kind = "document"
	KindAudio          Kind = "audio"
	KindChannelForward Kind = "channel_forward"
)

// Envelope is the serialized announcement. One flat struct covers every kind;
// Validate pins down which fields each kind requires. Unknown kinds and
// missing payloads are rejected at decode time so the fan-out engine never
// sees a half-formed envelope.
type Envelope struct {
	ContentType Kind `json:"content_type"`

	// raw_message / channel_forward: source coordinates for a platform copy.
	ChatID    int64 `json:"chat_id,omitempty"`
	MessageID int   `json:"message_id,omitempty"`

	// text
	Text string `json:"text,omitempty"`

	// photo / video / document / audio
	FileID  string `json:"file_id,omitempty"`
	Caption string `json:"caption,omitempty"`

	// audio only
	ThumbFileID string `json:"thumb_file_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Performer   string `json:"performer,omitempty"`
	Duration    int    `json:"duration,omitempty"`

	ParseMode string `json:"parse_mode,omitempty"`
}

func (e Envelope) Validate() error {
	switch e.ContentType {
	case KindRawMessage, KindChannelForward:
		if e.ChatID == 0 || e.MessageID == 0 {
			return fmt.Errorf("broadcast: %s envelope missing source coordinates", e.ContentType)
		}
	case KindText:
		if e.Text == "" {
			return fmt.Errorf("broadcast: text envelope has no text")
		}
	case KindPhoto, KindVideo, KindDocument, KindAudio:
		if e.FileID == "" {
			return fmt.Errorf("broadcast: %s envelope has no file_id", e.ContentType)
		}
	case "":
		return fmt.Errorf("broadcast: envelope missing content_type")
	default:
		return fmt.Errorf("broadcast: unknown content_type %q", e.ContentType)
	}
	return nil
}

func Encode(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

func Decode(payload []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		return Envelope{}, fmt.Errorf("broadcast: decode envelope: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
