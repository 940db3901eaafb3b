package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"argbot/pkg/logx"
)

// Observation is what the content bot knows about a chat when it serves a
// request. Kind/title/username are fixed at record creation; the invite link
// may be (re)captured later because chats regenerate their links.
type Observation struct {
	Kind       string
	Title      string
	Username   string
	InviteLink string
}

// Record is one metrics entry as stored, with its chat id attached.
type Record struct {
	ChatID     int64
	Kind       string
	Title      string
	Username   string
	InviteLink string
	Count      int64
}

// upsertScript performs the whole check-and-branch server-side so that two
// concurrent observations of the same chat can never both create the record.
// A read-then-write pair here would lose updates.
//
// Returns 1 on create, 0 on increment. The invite link is only overwritten
// with a non-empty value; an observation that failed to resolve a link never
// clears a previously captured one.
var upsertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  redis.call('HINCRBY', KEYS[1], 'count', 1)
  if ARGV[4] ~= '' then
    redis.call('HSET', KEYS[1], 'invite_link', ARGV[4])
  end
  return 0
end
redis.call('HSET', KEYS[1],
  'kind', ARGV[1], 'title', ARGV[2], 'username', ARGV[3],
  'invite_link', ARGV[4], 'count', 1)
return 1
`)

func metricsKey(chatID int64) string {
	return metricsKeyPrefix + strconv.FormatInt(chatID, 10)
}

// UpsertMetric creates the chat's record with count=1 or atomically bumps the
// counter. Reports whether the record was created.
func (s *Store) UpsertMetric(ctx context.Context, chatID int64, obs Observation) (bool, error) {
	res, err := upsertScript.Run(ctx, s.cli,
		[]string{metricsKey(chatID)},
		obs.Kind, obs.Title, obs.Username, obs.InviteLink,
	).Int()
	if err != nil {
		s.log.Error("metric upsert failed", logx.Int64("chat_id", chatID), logx.Err(err))
		return false, err
	}
	return res == 1, nil
}

// ListAllMetrics returns every metric record. Iteration order is unspecified.
// Malformed records are skipped with a warning.
func (s *Store) ListAllMetrics(ctx context.Context) ([]Record, error) {
	var out []Record
	iter := s.cli.Scan(ctx, 0, metricsKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		rec, ok := s.readRecord(ctx, key)
		if ok {
			out = append(out, rec)
		}
	}
	if err := iter.Err(); err != nil {
		s.log.Error("metrics scan failed", logx.Err(err))
		return nil, err
	}
	return out, nil
}

// ClearMetrics resets every record's count to zero and reports how many were
// touched. Display metadata is preserved.
func (s *Store) ClearMetrics(ctx context.Context) (int, error) {
	reset := 0
	iter := s.cli.Scan(ctx, 0, metricsKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := s.cli.HSet(ctx, key, "count", 0).Err(); err != nil {
			s.log.Error("metric reset failed", logx.String("key", key), logx.Err(err))
			continue
		}
		reset++
	}
	if err := iter.Err(); err != nil {
		s.log.Error("metrics scan failed", logx.Err(err))
		return reset, err
	}
	s.log.Info("metrics cleared", logx.Int("reset", reset))
	return reset, nil
}

func (s *Store) readRecord(ctx context.Context, key string) (Record, bool) {
	fields, err := s.cli.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		if err != nil {
			s.log.Warn("metric read failed", logx.String("key", key), logx.Err(err))
		}
		return Record{}, false
	}
	idPart := strings.TrimPrefix(key, metricsKeyPrefix)
	chatID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		s.log.Warn("skipping metric with malformed key", logx.String("key", key))
		return Record{}, false
	}
	count, _ := strconv.ParseInt(fields["count"], 10, 64)
	return Record{
		ChatID:     chatID,
		Kind:       fields["kind"],
		Title:      fields["title"],
		Username:   fields["username"],
		InviteLink: fields["invite_link"],
		Count:      count,
	}, true
}
