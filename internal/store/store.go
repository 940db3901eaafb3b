// Package store is the Redis-backed shared state of the two bot processes:
// the recipient registry, the authorized-operator set, per-chat engagement
// metrics, and the broadcast pub/sub channel.
//
// Both processes connect to the same instance; Redis is the only thing they
// share. All single-key mutations are atomic (plain set/hash commands, plus
// one Lua script for the metrics upsert).
package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"argbot/pkg/logx"
)

// Key layout. Kept compatible with the original deployment so an upgraded
// process can read existing state.
const (
	recipientsKey    = "chat_ids"
	authorizedKey    = "authorized_chats"
	metricsKeyPrefix = "chat:metrics:"
	broadcastChannel = "broadcasts"
)

type Store struct {
	cli *redis.Client
	log logx.Logger
}

// Open connects to Redis using a redis:// URL.
func Open(url string, log logx.Logger) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}
	return &Store{cli: redis.NewClient(opts), log: log}, nil
}

// Ping verifies connectivity. Mains call it once at startup so a bad REDIS_URL
// fails fast instead of on the first user interaction.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.cli.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.cli.Close() }
