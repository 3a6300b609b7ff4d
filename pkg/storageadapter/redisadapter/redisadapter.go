// Package redisadapter implements storageadapter.Adapter on top of
// go-redis/v9, grounded on the teacher's kernel.RedisLimiterStore
// (redis.NewClient construction, context-scoped calls wrapped with a
// descriptive error).
package redisadapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kontext-systems/audit-core/pkg/storageadapter"
)

// Adapter stores each key as a plain Redis string value.
type Adapter struct {
	client *redis.Client
	prefix string
}

// New constructs an adapter backed by addr/password/db, namespacing every
// key under prefix (e.g. "kontext-audit") to share a Redis instance safely.
func New(addr, password string, db int, prefix string) *Adapter {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Adapter{client: client, prefix: prefix}
}

func (a *Adapter) keyFor(key string) string {
	if a.prefix == "" {
		return key
	}
	return a.prefix + ":" + key
}

func (a *Adapter) Save(ctx context.Context, key string, data []byte) error {
	if err := a.client.Set(ctx, a.keyFor(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redisadapter: save %s: %w", key, err)
	}
	return nil
}

func (a *Adapter) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := a.client.Get(ctx, a.keyFor(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storageadapter.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisadapter: load %s: %w", key, err)
	}
	return data, nil
}

// Close releases the underlying Redis connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}
