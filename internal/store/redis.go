package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisKV stores key/value pairs in Redis under an optional key prefix.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV parses redisURL, verifies connectivity and namespaces every key with prefix.
func NewRedisKV(ctx context.Context, redisURL, prefix string) (*RedisKV, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisKV{client: client, prefix: prefix}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return val, nil
}

func (r *RedisKV) Put(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func (r *RedisKV) keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, globEscape(r.prefix+prefix)+"*", 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s*: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RedisKV) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	keys, err := r.keys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, full := range keys {
		val, err := r.client.Get(ctx, full).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // removed between SCAN and GET
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", full, err)
		}
		if err := fn(strings.TrimPrefix(full, r.prefix), val); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisKV) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := r.keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("deleting %s*: %w", prefix, err)
	}
	return int(n), nil
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}

func globEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`).Replace(s)
}
