package broadcast

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"argbot/internal/kit"
	"argbot/pkg/logx"
)

// Registry is the fan-out view of the recipient set.
type Registry interface {
	ListAll(ctx context.Context) ([]int64, error)
}

// Subscriber is the consume half of the broadcast transport.
type Subscriber interface {
	SubscribeBroadcasts(ctx context.Context) (<-chan []byte, error)
}

type EngineConfig struct {
	// RatePerSec caps deliveries per second across a dispatch. Default 10.
	RatePerSec int
}

// Engine is the long-lived fan-out loop. It listens on the broadcast channel,
// resolves each envelope to a send strategy, and delivers it to a snapshot of
// the registry, one recipient at a time. Envelopes are dispatched to
// completion before the next one is picked up.
type Engine struct {
	adapter kit.Adapter
	reg     Registry
	sub     Subscriber
	limiter *rate.Limiter
	log     logx.Logger
}

func NewEngine(cfg EngineConfig, adapter kit.Adapter, reg Registry, sub Subscriber, log logx.Logger) *Engine {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	return &Engine{
		adapter: adapter,
		reg:     reg,
		sub:     sub,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

// Run blocks until ctx is cancelled (returns nil) or the subscription breaks
// (returns the error). The engine is started once per process and never
// restarted here; after a transport failure, broadcast capability is gone
// until the process is restarted by outside supervision.
func (e *Engine) Run(ctx context.Context) error {
	in, err := e.sub.SubscribeBroadcasts(ctx)
	if err != nil {
		return err
	}
	e.log.Info("listening for broadcasts")

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-in:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("broadcast: subscription closed")
			}
			e.dispatch(ctx, payload)
		}
	}
}

// dispatch delivers one envelope. Per-recipient failures are logged and
// skipped; only a malformed envelope or a failed audio source download stops
// the whole dispatch (logged, envelope discarded, loop continues).
func (e *Engine) dispatch(ctx context.Context, payload []byte) {
	env, err := Decode(payload)
	if err != nil {
		e.log.Warn("discarding malformed envelope", logx.Err(err))
		return
	}

	send, err := e.resolve(ctx, env)
	if err != nil {
		e.log.Error("dispatch aborted", logx.String("content_type", string(env.ContentType)), logx.Err(err))
		return
	}

	// One snapshot per envelope: recipients registering mid-dispatch catch
	// the next announcement.
	ids, err := e.reg.ListAll(ctx)
	if err != nil {
		e.log.Error("dispatch aborted: registry snapshot failed", logx.Err(err))
		return
	}

	start := time.Now()
	failed := 0
	for _, id := range ids {
		if err := e.limiter.Wait(ctx); err != nil {
			// Only fails when ctx is done; the process is shutting down.
			e.log.Warn("dispatch interrupted", logx.Err(err))
			break
		}
		if err := send(ctx, kit.ChatTarget{ChatID: id}); err != nil {
			failed++
			e.log.Warn("delivery failed", logx.Int64("chat_id", id), logx.Err(err))
		}
	}

	fields := []logx.Field{
		logx.String("content_type", string(env.ContentType)),
		logx.Int("total", len(ids)),
		logx.Int("failed", failed),
		logx.Duration("dur", time.Since(start)),
	}
	if failed > 0 {
		e.log.Warn("dispatch finished with failures", fields...)
	} else {
		e.log.Info("dispatch finished", fields...)
	}
}
