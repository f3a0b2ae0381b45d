package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisKV persists document blobs as plain Redis string keys. Values never
// expire; the board and auth documents are the durable source of truth.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV creates a KV over the provided Redis client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
