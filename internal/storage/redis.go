package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "cc:ephemeral:"

// Redis is the ephemeral scope. Every write refreshes the key's TTL so an
// abandoned browser context expires on its own.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisFromURL parses a redis:// URL and pings the server.
func NewRedisFromURL(ctx context.Context, rawURL string, prefix string, ttl time.Duration) (*Redis, *redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedis(client, prefix, ttl), client, nil
}

func (r *Redis) key(namespace string, key string) string {
	return r.prefix + namespace + ":" + key
}

func (r *Redis) Get(ctx context.Context, namespace string, key string) (string, bool, error) {
	if err := validate(namespace, key); err != nil {
		return "", false, err
	}

	value, err := r.client.Get(ctx, r.key(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, namespace string, key string, value string) error {
	if err := validate(namespace, key); err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.key(namespace, key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, namespace string, key string) error {
	if err := validate(namespace, key); err != nil {
		return err
	}

	if err := r.client.Del(ctx, r.key(namespace, key)).Err(); err != nil {
		return fmt.Errorf("redis delete %q: %w", key, err)
	}
	return nil
}

