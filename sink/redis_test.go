package sink

import (
	"context"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values map[string]any
	ttls   map[string]time.Duration
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		values: make(map[string]any),
		ttls:   make(map[string]time.Duration),
	}
}

func (r *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := r.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v.([]byte)), nil)
}

func (r *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if r.setErr != nil {
		return redis.NewStatusResult("", r.setErr)
	}
	r.values[key] = value
	r.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisSinkWrite(t *testing.T) {
	t.Run("sets the key with its ttl", func(t *testing.T) {
		client := newFakeRedis()
		s := RedisSink{Client: client, TTL: time.Hour}
		require.Equal(t, "redis", s.Name())

		require.NoError(t, s.Write(context.Background(), "footprints/latest.geojson", []byte("data")))
		require.Equal(t, []byte("data"), client.values["footprints/latest.geojson"])
		require.Equal(t, time.Hour, client.ttls["footprints/latest.geojson"])

		v, err := client.Get(context.Background(), "footprints/latest.geojson").Result()
		require.NoError(t, err)
		require.Equal(t, "data", v)
	})

	t.Run("set error", func(t *testing.T) {
		client := newFakeRedis()
		client.setErr = errors.New("connection refused")

		err := RedisSink{Client: client}.Write(context.Background(), "k", []byte("data"))
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeWriteFailed))
	})
}
