package store

import (
	"context"
	"fmt"

	"argbot/pkg/logx"
)

// PublishBroadcast pushes a serialized envelope onto the broadcast channel.
// Fire-and-forget: success means the payload reached the channel, not that
// any listener received it. With zero subscribers the payload is dropped.
func (s *Store) PublishBroadcast(ctx context.Context, payload []byte) error {
	if err := s.cli.Publish(ctx, broadcastChannel, payload).Err(); err != nil {
		s.log.Error("broadcast publish failed", logx.Err(err))
		return fmt.Errorf("store: publish broadcast: %w", err)
	}
	s.log.Info("broadcast published", logx.Int("bytes", len(payload)))
	return nil
}

// SubscribeBroadcasts subscribes to the broadcast channel and returns raw
// payloads. The returned channel is closed when ctx is cancelled or the
// subscription breaks; delivery is at-most-once with no replay, so payloads
// published while nobody is subscribed are gone.
func (s *Store) SubscribeBroadcasts(ctx context.Context) (<-chan []byte, error) {
	ps := s.cli.Subscribe(ctx, broadcastChannel)

	// Confirm the subscription before handing out the channel; a listener
	// that thinks it is subscribed but isn't would silently miss everything.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("store: subscribe broadcasts: %w", err)
	}
	s.log.Info("subscribed to broadcast channel", logx.String("channel", broadcastChannel))

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					s.log.Error("broadcast subscription closed by transport")
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
