package services

import (
	"context"
	"errors"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"

	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

const (
	JobStatusTTL          = 24 * time.Hour
	IrrigationScheduleTTL = 900 * time.Second
)

// StatusCache is a best-effort JSON key/value mirror. A miss is (false, nil);
// callers fall back to the database on any error.
type StatusCache interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

type redisStatusCache struct {
	rdb *goredis.Client
	log *logger.Logger
}

func NewRedisStatusCache(baseLog *logger.Logger, rdb *goredis.Client) StatusCache {
	return &redisStatusCache{rdb: rdb, log: baseLog.With("component", "RedisStatusCache")}
}

func (c *redisStatusCache) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := gojson.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *redisStatusCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := gojson.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.SetEx(ctx, key, b, ttl).Err()
}

type memoryStatusCache struct {
	c *cache.Cache
}

// NewMemoryStatusCache is the in-process fallback used without Redis.
func NewMemoryStatusCache() StatusCache {
	return &memoryStatusCache{c: cache.New(JobStatusTTL, 10*time.Minute)}
}

func (m *memoryStatusCache) Get(_ context.Context, key string, out any) (bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return false, nil
	}
	raw, ok := v.([]byte)
	if !ok {
		return false, nil
	}
	if err := gojson.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *memoryStatusCache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	b, err := gojson.Marshal(v)
	if err != nil {
		return err
	}
	m.c.Set(key, b, ttl)
	return nil
}
