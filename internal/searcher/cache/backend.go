package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/redis"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type RedisBackend struct {
	client *pkgredis.Client
	ttl    time.Duration
}

func NewRedisBackend(client *pkgredis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(data), true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	return b.client.Set(ctx, key, value, b.ttl)
}

func (b *RedisBackend) Purge(ctx context.Context) (int64, error) {
	return b.client.FlushByPattern(ctx, keyPrefix+"*")
}

// LocalBackend is a size-bounded LRU with per-entry expiry, private to one
// process.
type LocalBackend struct {
	lru *expirable.LRU[string, []byte]
}

func NewLocalBackend(size int, ttl time.Duration) *LocalBackend {
	return &LocalBackend{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.lru.Get(key)
	return v, ok, nil
}

func (b *LocalBackend) Set(_ context.Context, key string, value []byte) error {
	b.lru.Add(key, value)
	return nil
}

func (b *LocalBackend) Purge(_ context.Context) (int64, error) {
	n := int64(b.lru.Len())
	b.lru.Purge()
	return n, nil
}
