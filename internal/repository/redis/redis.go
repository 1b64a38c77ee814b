// Package redis implements repository.KV on a Redis server, so several
// front-end instances can share the persisted profile.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sakif/crewcrew/internal/repository"
)

var _ repository.KV = (*KV)(nil)

// KV stores every key under a common prefix.
type KV struct {
	client *goredis.Client
	prefix string
}

// New connects to addr and pings it before returning.
func New(ctx context.Context, addr, password string, db int, prefix string) (*KV, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return &KV{client: client, prefix: prefix}, nil
}

func (kv *KV) key(k string) string { return kv.prefix + k }

// Get returns repository.ErrKeyNotFound when the key is absent.
func (kv *KV) Get(ctx context.Context, key string) (string, error) {
	v, err := kv.client.Get(ctx, kv.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", repository.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: get %q: %w", key, err)
	}
	return v, nil
}

// Set stores value with no expiry.
func (kv *KV) Set(ctx context.Context, key, value string) error {
	if err := kv.client.Set(ctx, kv.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: set %q: %w", key, err)
	}
	return nil
}

func (kv *KV) Delete(ctx context.Context, key string) error {
	if err := kv.client.Del(ctx, kv.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: del %q: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (kv *KV) Close() error {
	return kv.client.Close()
}
