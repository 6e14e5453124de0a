// Package cache provides the shared key-value cache with per-entry TTL used
// by the configuration resolver.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

// Cache is a string key-value store with TTL. Concurrent sets of one key are
// last-write-wins.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// ── Redis ───────────────────────────────────────────────────

// Redis is a Cache on a Redis server, shared between instances.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis connects to url (redis://...), retrying while the server comes up.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	backoff := retry.WithMaxRetries(5, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis not reachable yet, retrying")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisFromClient(client), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) Close() error { return r.client.Close() }

// ── In-process ──────────────────────────────────────────────

// Memory is a process-local Cache on ristretto.
type Memory struct {
	c *ristretto.Cache[string, string]
}

// NewMemory creates a cache holding up to maxEntries values.
func NewMemory(maxEntries int64) (*Memory, error) {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &Memory{c: c}, nil
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.c.Get(key)
	return v, ok, nil
}

// Set stores value with cost 1 and waits for the write buffer so a
// following Get observes it.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if !m.c.SetWithTTL(key, value, 1, ttl) {
		log.Debug().Str("key", key).Msg("Memory cache dropped a set")
		return nil
	}
	m.c.Wait()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.c.Del(k)
	}
	return nil
}

func (m *Memory) Close() error {
	m.c.Close()
	return nil
}

var (
	_ Cache = (*Redis)(nil)
	_ Cache = (*Memory)(nil)
)
