package activity

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/LeventeLantos/bulk-messaging/internal/model"
)

const DefaultRedisKey = "activity:log"

// RedisBackend keeps the log in a Redis list, head = newest.
type RedisBackend struct {
	rdb *redis.Client
	key string
}

func NewRedisBackend(rdb *redis.Client, key string) *RedisBackend {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{rdb: rdb, key: key}
}

func (b *RedisBackend) Load(ctx context.Context) ([]model.ActivityEntry, error) {
	raw, err := b.rdb.LRange(ctx, b.key, 0, MaxEntries-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.ActivityEntry, 0, len(raw))
	for i, s := range raw {
		var r model.ActivityRecord
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			log.Warn().Err(err).Str("key", b.key).Int("index", i).Msg("dropping undecodable activity entry")
			continue
		}
		out = append(out, r.Entry())
	}
	return out, nil
}

func (b *RedisBackend) Save(ctx context.Context, entries []model.ActivityEntry) error {
	vals := make([]any, 0, len(entries))
	for _, e := range entries {
		v, err := json.Marshal(e.Record())
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}

	_, err := b.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, b.key)
		if len(vals) > 0 {
			p.RPush(ctx, b.key, vals...)
		}
		return nil
	})
	return err
}
