package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

type backend interface {
	LoadBoards(ctx context.Context) (domain.BoardData, error)
	SaveBoards(ctx context.Context, data domain.BoardData) error
	LoadAuth(ctx context.Context) (domain.AuthState, error)
	SaveAuth(ctx context.Context, state domain.AuthState) error
}

// Cache wraps a document store with Redis-backed caching of the board
// document. Every mutation goes through SaveBoards, so eviction there keeps
// the cache coherent. Auth documents are small and change rarely; they pass
// through uncached.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) LoadBoards(ctx context.Context) (domain.BoardData, error) {
	if data, ok := c.loadFromCache(ctx); ok {
		return data, nil
	}

	data, err := c.base.LoadBoards(ctx)
	if err != nil {
		return domain.BoardData{}, err
	}

	c.store(ctx, data)
	return data, nil
}

func (c *Cache) SaveBoards(ctx context.Context, data domain.BoardData) error {
	if err := c.base.SaveBoards(ctx, data); err != nil {
		return err
	}

	c.evict(ctx)
	return nil
}

func (c *Cache) LoadAuth(ctx context.Context) (domain.AuthState, error) {
	return c.base.LoadAuth(ctx)
}

func (c *Cache) SaveAuth(ctx context.Context, state domain.AuthState) error {
	return c.base.SaveAuth(ctx, state)
}

func (c *Cache) loadFromCache(ctx context.Context) (domain.BoardData, bool) {
	if c.redis == nil {
		return domain.BoardData{}, false
	}
	raw, err := c.redis.Get(ctx, boardsCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, boardsCacheKey).Err()
		}
		return domain.BoardData{}, false
	}
	var data domain.BoardData
	if err := sonic.ConfigStd.Unmarshal(raw, &data); err != nil {
		_ = c.redis.Del(ctx, boardsCacheKey).Err()
		return domain.BoardData{}, false
	}
	return data, true
}

func (c *Cache) store(ctx context.Context, data domain.BoardData) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	raw, err := sonic.ConfigStd.Marshal(data)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardsCacheKey, raw, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, boardsCacheKey).Result()
}

const boardsCacheKey = "cache:" + BoardDataKey
