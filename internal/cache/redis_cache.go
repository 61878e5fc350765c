package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps one hash per job, keyed "receipts:<jobID>", with one
// field per recipient number. The whole hash expires ttl after its last write.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type receipt struct {
	RemoteMessageID string    `json:"remoteMessageId"`
	SentAt          time.Time `json:"sentAt"`
}

func receiptsKey(jobID string) string {
	return "receipts:" + jobID
}

func (c *RedisCache) StoreSent(ctx context.Context, jobID, number, remoteMessageID string, sentAt time.Time) error {
	b, err := json.Marshal(receipt{RemoteMessageID: remoteMessageID, SentAt: sentAt.UTC()})
	if err != nil {
		return err
	}

	key := receiptsKey(jobID)
	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, number, b)
		p.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

// lookup returns the receipt for one recipient of a job, if still cached.
func (c *RedisCache) lookup(ctx context.Context, jobID, number string) (receipt, bool, error) {
	raw, err := c.rdb.HGet(ctx, receiptsKey(jobID), number).Bytes()
	if errors.Is(err, redis.Nil) {
		return receipt{}, false, nil
	}
	if err != nil {
		return receipt{}, false, err
	}

	var r receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return receipt{}, false, err
	}
	return r, true, nil
}
