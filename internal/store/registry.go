package store

import (
	"context"
	"strconv"

	"argbot/pkg/logx"
)

// Register adds a chat to the recipient registry. Idempotent; reports whether
// the chat was newly added. The registry only ever grows.
func (s *Store) Register(ctx context.Context, chatID int64) (bool, error) {
	added, err := s.cli.SAdd(ctx, recipientsKey, chatID).Result()
	if err != nil {
		s.log.Error("register recipient failed", logx.Int64("chat_id", chatID), logx.Err(err))
		return false, err
	}
	s.log.Info("recipient registered", logx.Int64("chat_id", chatID), logx.Bool("new", added == 1))
	return added == 1, nil
}

// ListAll returns a point-in-time snapshot of every registered recipient.
// Order is unspecified. A store error yields an empty snapshot.
func (s *Store) ListAll(ctx context.Context) ([]int64, error) {
	members, err := s.cli.SMembers(ctx, recipientsKey).Result()
	if err != nil {
		s.log.Error("list recipients failed", logx.Err(err))
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			// Foreign junk in the set; skip rather than poison the fan-out.
			s.log.Warn("skipping malformed recipient id", logx.String("member", m))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Authorize marks a chat as an authorized operator. Idempotent.
func (s *Store) Authorize(ctx context.Context, chatID int64) error {
	if err := s.cli.SAdd(ctx, authorizedKey, chatID).Err(); err != nil {
		s.log.Error("authorize failed", logx.Int64("chat_id", chatID), logx.Err(err))
		return err
	}
	s.log.Info("chat authorized", logx.Int64("chat_id", chatID))
	return nil
}

// IsAuthorized reports operator-set membership. Errors resolve to false.
func (s *Store) IsAuthorized(ctx context.Context, chatID int64) (bool, error) {
	ok, err := s.cli.SIsMember(ctx, authorizedKey, chatID).Result()
	if err != nil {
		s.log.Error("authorization check failed", logx.Int64("chat_id", chatID), logx.Err(err))
		return false, err
	}
	return ok, nil
}
