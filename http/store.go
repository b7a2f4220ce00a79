package http

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/cespare/xxhash/v2"
	"github.com/granulemap/granulemap/sink"
	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"
)

const (
	ErrTypeDatasetUnavailable = "dataset_unavailable"
	ErrTypeInvalidDataset     = "invalid_dataset"
	ErrTypeInvalidQuery       = "invalid_query"
)

const readyTimeout = time.Second

// RedisCache is the part of a Redis client used by the dataset store.
type RedisCache interface {
	sink.RedisClient
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// DatasetStore reads the last published dataset. It looks the dataset up in
// Redis first and falls back to the file written by the ingest pipeline.
type DatasetStore struct {
	Path string

	// Optional.
	Cache    RedisCache
	CacheKey string

	// The expiration of the keys the store writes back to the cache.
	CacheTTL time.Duration

	// Skips the cache lookup and write back.
	DisableCache bool

	mutex   sync.Mutex
	decoded decodedDataset
}

type decodedDataset struct {
	sum uint64
	fc  *geojson.FeatureCollection
}

func (s *DatasetStore) cacheEnabled() bool {
	return s.Cache != nil && !s.DisableCache
}

// Load returns the encoded dataset.
func (s *DatasetStore) Load(ctx context.Context) ([]byte, error) {
	if s.cacheEnabled() {
		data, err := s.Cache.Get(ctx, s.CacheKey).Bytes()
		switch {
		case err == nil:
			instrumentCacheLookup(datasetCache, cacheHit)
			return data, nil

		case errors.Is(err, redis.Nil):
			instrumentCacheLookup(datasetCache, cacheMiss)

		default:
			instrumentCacheLookup(datasetCache, cacheError)
			logs.Warn(errors.New("reading cached dataset failed").
				WithTag("key", s.CacheKey).
				Wrap(err))
		}
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, errors.New("reading dataset failed").
			WithType(ErrTypeDatasetUnavailable).
			WithTag("path", s.Path).
			Wrap(err)
	}

	if s.cacheEnabled() {
		if err := s.Cache.Set(ctx, s.CacheKey, data, s.CacheTTL).Err(); err != nil {
			logs.Warn(errors.New("caching dataset failed").
				WithTag("key", s.CacheKey).
				Wrap(err))
		}
	}
	return data, nil
}

// FeatureCollection returns the decoded dataset and the hash of its encoded
// form. The decoded collection is shared between callers and reused until
// the loaded dataset changes, so it must not be modified.
func (s *DatasetStore) FeatureCollection(ctx context.Context) (*geojson.FeatureCollection, uint64, error) {
	data, err := s.Load(ctx)
	if err != nil {
		return nil, 0, err
	}
	sum := xxhash.Sum64(data)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.decoded.fc != nil && s.decoded.sum == sum {
		return s.decoded.fc, sum, nil
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, 0, errors.New("decoding dataset failed").
			WithType(ErrTypeInvalidDataset).
			WithTag("size", len(data)).
			Wrap(err)
	}

	s.decoded = decodedDataset{sum: sum, fc: fc}
	return fc, sum, nil
}

// cached returns the value of a derived response cached under key.
func (s *DatasetStore) cached(ctx context.Context, cache, key string) ([]byte, bool) {
	if !s.cacheEnabled() {
		return nil, false
	}

	data, err := s.Cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		instrumentCacheLookup(cache, cacheHit)
		return data, true

	case errors.Is(err, redis.Nil):
		instrumentCacheLookup(cache, cacheMiss)

	default:
		instrumentCacheLookup(cache, cacheError)
		logs.Warn(errors.New("reading cached response failed").
			WithTag("key", key).
			Wrap(err))
	}
	return nil, false
}

func (s *DatasetStore) cache(ctx context.Context, key string, data []byte) {
	if !s.cacheEnabled() {
		return
	}

	if err := s.Cache.Set(ctx, key, data, s.CacheTTL).Err(); err != nil {
		logs.Warn(errors.New("caching response failed").
			WithTag("key", key).
			Wrap(err))
	}
}

// Ready reports whether a dataset has been published, either on disk or in
// the cache.
func (s *DatasetStore) Ready() bool {
	if _, err := os.Stat(s.Path); err == nil {
		return true
	}
	if !s.cacheEnabled() {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	n, err := s.Cache.Exists(ctx, s.CacheKey).Result()
	if err != nil {
		logs.Warn(errors.New("checking cached dataset failed").
			WithTag("key", s.CacheKey).
			Wrap(err))
		return false
	}
	return n > 0
}
