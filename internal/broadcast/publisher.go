package broadcast

import (
	"context"
	"errors"

	"argbot/internal/kit"
	"argbot/pkg/logx"
)

// Channel is the publish half of the broadcast transport.
type Channel interface {
	PublishBroadcast(ctx context.Context, payload []byte) error
}

// ErrNoContent is returned when an operator message carries none of the
// publishable payload kinds.
var ErrNoContent = errors.New("broadcast: message has no publishable content")

// Publisher assembles envelopes and pushes them onto the channel, exactly
// once per operator action. Publish success only guarantees the envelope
// reached the transport; with no listener connected it is dropped.
type Publisher struct {
	ch  Channel
	log logx.Logger
}

func NewPublisher(ch Channel, log logx.Logger) *Publisher {
	return &Publisher{ch: ch, log: log}
}

// Classify maps a decoded message to its envelope. A message carrying several
// payload fields is classified by the first match in the fixed order
// text, photo, video, document, audio.
func Classify(m kit.Message) (Envelope, error) {
	switch {
	case m.Text != "":
		return Envelope{ContentType: KindText, Text: m.Text, ParseMode: m.ParseMode}, nil
	case m.Photo != nil:
		return Envelope{ContentType: KindPhoto, FileID: m.Photo.FileID, Caption: m.Caption, ParseMode: m.ParseMode}, nil
	case m.Video != nil:
		return Envelope{ContentType: KindVideo, FileID: m.Video.FileID, Caption: m.Caption, ParseMode: m.ParseMode}, nil
	case m.Document != nil:
		return Envelope{ContentType: KindDocument, FileID: m.Document.FileID, Caption: m.Caption, ParseMode: m.ParseMode}, nil
	case m.Audio != nil:
		return Envelope{
			ContentType: KindAudio,
			FileID:      m.Audio.FileID,
			ThumbFileID: m.Audio.ThumbFileID,
			Title:       m.Audio.Title,
			Performer:   m.Audio.Performer,
			Duration:    m.Audio.Duration,
			Caption:     m.Caption,
			ParseMode:   m.ParseMode,
		}, nil
	default:
		return Envelope{}, ErrNoContent
	}
}

// PublishMessage classifies m and publishes the resulting envelope.
// Returns the kind that was published.
func (p *Publisher) PublishMessage(ctx context.Context, m kit.Message) (Kind, error) {
	env, err := Classify(m)
	if err != nil {
		return "", err
	}
	if err := p.publish(ctx, env); err != nil {
		return "", err
	}
	return env.ContentType, nil
}

// PublishRaw publishes a raw-copy envelope for a message the publishing bot
// already holds.
func (p *Publisher) PublishRaw(ctx context.Context, chatID int64, messageID int) error {
	return p.publish(ctx, Envelope{ContentType: KindRawMessage, ChatID: chatID, MessageID: messageID})
}

// PublishForward publishes a channel-forward envelope for a channel post.
func (p *Publisher) PublishForward(ctx context.Context, channelID int64, messageID int) error {
	return p.publish(ctx, Envelope{ContentType: KindChannelForward, ChatID: channelID, MessageID: messageID})
}

func (p *Publisher) publish(ctx context.Context, env Envelope) error {
	payload, err := Encode(env)
	if err != nil {
		return err
	}
	if err := p.ch.PublishBroadcast(ctx, payload); err != nil {
		return err
	}
	p.log.Info("envelope published", logx.String("content_type", string(env.ContentType)))
	return nil
}
