package sink

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the part of a Redis client used to cache datasets.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisSink stores datasets in Redis so the outline service can serve them
// without reading the disk.
type RedisSink struct {
	Client RedisClient

	// Zero keeps the keys forever.
	TTL time.Duration
}

func (s RedisSink) Name() string {
	return "redis"
}

func (s RedisSink) Write(ctx context.Context, key string, data []byte) error {
	if err := s.Client.Set(ctx, key, data, s.TTL).Err(); err != nil {
		return errors.New("setting redis key failed").
			WithType(ErrTypeWriteFailed).
			WithTag("sink", s.Name()).
			WithTag("key", key).
			Wrap(err)
	}
	return nil
}
