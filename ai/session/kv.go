package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hrygo/alsassist/ai/cache"
)

// KV is the expiring key-value store sessions are persisted in.
type KV interface {
	// Get returns the stored blob and whether the key existed.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetEX(ctx context.Context, key string, ttl time.Duration, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// RedisKV stores sessions in Redis.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects to the Redis server at url (redis://host:port/db).
func NewRedisKV(ctx context.Context, url string) (*RedisKV, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisKV{client: client}, nil
}

// NewRedisKVFromClient wraps an existing client.
func NewRedisKVFromClient(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisKV) SetEX(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	return r.client.SetEx(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}

// MemoryKV keeps sessions in an in-process LRU cache. Used when no Redis is
// configured; state does not survive a restart.
type MemoryKV struct {
	cache *cache.ByteLRUCache
}

// NewMemoryKV creates an in-process store holding at most capacity sessions.
func NewMemoryKV(capacity int, ttl time.Duration) *MemoryKV {
	return &MemoryKV{cache: cache.NewByteLRUCache(capacity, ttl)}
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (m *MemoryKV) SetEX(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.cache.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.cache.Remove(key)
	return nil
}

func (m *MemoryKV) Close() error {
	m.cache.Clear()
	return nil
}

// Cache exposes the underlying cache. Intended for tests.
func (m *MemoryKV) Cache() *cache.ByteLRUCache {
	return m.cache
}
