package broadcast

import (
	"context"
	"fmt"

	"argbot/internal/kit"
)

// sendFunc delivers one already-resolved envelope to a single recipient.
type sendFunc func(ctx context.Context, to kit.ChatTarget) error

// resolve maps an envelope's kind to a delivery operation. Resolution happens
// once per envelope, before the per-recipient loop. For audio this is where
// the source bytes (and thumbnail) are downloaded; the returned closure
// re-uploads the same buffers per recipient, because the platform's copy and
// resend primitives cannot attach a thumbnail to audio. A failed source
// download makes resolution fail; there is nothing to send.
func (e *Engine) resolve(ctx context.Context, env Envelope) (sendFunc, error) {
	opt := &kit.SendOptions{ParseMode: env.ParseMode}

	switch env.ContentType {
	case KindText:
		return func(ctx context.Context, to kit.ChatTarget) error {
			_, err := e.adapter.SendText(ctx, to, env.Text, opt)
			return err
		}, nil

	case KindPhoto:
		file := kit.FileRef{FileID: env.FileID}
		return func(ctx context.Context, to kit.ChatTarget) error {
			_, err := e.adapter.SendPhoto(ctx, to, file, env.Caption, opt)
			return err
		}, nil

	case KindVideo:
		file := kit.FileRef{FileID: env.FileID}
		return func(ctx context.Context, to kit.ChatTarget) error {
			_, err := e.adapter.SendVideo(ctx, to, file, env.Caption, opt)
			return err
		}, nil

	case KindDocument:
		file := kit.FileRef{FileID: env.FileID}
		return func(ctx context.Context, to kit.ChatTarget) error {
			_, err := e.adapter.SendDocument(ctx, to, file, env.Caption, opt)
			return err
		}, nil

	case KindRawMessage, KindChannelForward:
		return func(ctx context.Context, to kit.ChatTarget) error {
			return e.adapter.Copy(ctx, to, env.ChatID, env.MessageID)
		}, nil

	case KindAudio:
		data, err := e.adapter.Download(ctx, kit.FileRef{FileID: env.FileID})
		if err != nil {
			return nil, fmt.Errorf("broadcast: download audio source: %w", err)
		}
		var thumb []byte
		if env.ThumbFileID != "" {
			thumb, err = e.adapter.Download(ctx, kit.FileRef{FileID: env.ThumbFileID})
			if err != nil {
				return nil, fmt.Errorf("broadcast: download audio thumbnail: %w", err)
			}
		}
		upload := kit.AudioUpload{
			Data:      data,
			Thumbnail: thumb,
			Title:     env.Title,
			Performer: env.Performer,
			Duration:  env.Duration,
			Caption:   env.Caption,
		}
		return func(ctx context.Context, to kit.ChatTarget) error {
			_, err := e.adapter.SendAudio(ctx, to, upload, opt)
			return err
		}, nil

	default:
		// Decode validates kinds, so this only fires for envelopes built
		// in-process with a bad kind.
		return nil, fmt.Errorf("broadcast: no strategy for content_type %q", env.ContentType)
	}
}
