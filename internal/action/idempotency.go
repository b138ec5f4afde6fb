// Package action implements the action/mutation adapters (C8): factory
// functions that expose thread/agent operations as host-registerable
// endpoints, plus the idempotency store that lets a host dedupe retried
// mutation calls.
package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/intelligencedev/agentcore/internal/config"
)

// DedupeStore records which correlation keys have already been handled, so
// an adapter can refuse to repeat a mutation a host retried after a timeout.
type DedupeStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisDedupeStore is a Redis-backed DedupeStore.
type RedisDedupeStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDedupeStore connects to addr and validates the connection with a ping.
func NewRedisDedupeStore(cfg config.IdempotencyConfig) (*RedisDedupeStore, error) {
	c := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	ttl := time.Duration(cfg.TTL) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDedupeStore{client: c, ttl: ttl}, nil
}

func (s *RedisDedupeStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisDedupeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisDedupeStore) Close() error { return s.client.Close() }

// withDedupe runs fn unless key was already recorded in store, in which case
// it decodes and returns the prior JSON-encoded result without invoking fn
// again. A host supplies key as an idempotency token on retried mutations.
func withDedupe[T any](ctx context.Context, store DedupeStore, key string, fn func() (T, error)) (T, error) {
	if store != nil && key != "" {
		if prior, err := store.Get(ctx, key); err == nil && prior != "" {
			var out T
			if jerr := json.Unmarshal([]byte(prior), &out); jerr == nil {
				return out, nil
			}
		}
	}
	result, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}
	if store != nil && key != "" {
		if b, jerr := json.Marshal(result); jerr == nil {
			_ = store.Set(ctx, key, string(b), 0)
		}
	}
	return result, nil
}
