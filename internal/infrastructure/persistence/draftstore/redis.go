package draftstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	Namespace string // prepended to every key, e.g. "fieldreports:"
}

// RedisBackend stores entries as plain Redis strings.
type RedisBackend struct {
	client    *redis.Client
	namespace string
	logger    *zap.Logger
}

// NewRedisBackend creates a backend with its own client.
func NewRedisBackend(cfg RedisConfig, logger *zap.Logger) *RedisBackend {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return NewRedisBackendWithClient(client, cfg.Namespace, logger)
}

// NewRedisBackendWithClient wraps an existing client.
func NewRedisBackendWithClient(client *redis.Client, namespace string, logger *zap.Logger) *RedisBackend {
	return &RedisBackend{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

func (b *RedisBackend) Name() string { return "redis" }

// Ping tests the Redis connection
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, b.namespace+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := b.client.Get(ctx, b.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return value, true, nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.namespace+key).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Scan walks the keyspace with SCAN MATCH and fetches values with MGET.
func (b *RedisBackend) Scan(ctx context.Context, prefix string) ([]KV, error) {
	pattern := escapeGlob(b.namespace+prefix) + "*"

	var keys []string
	var cursor uint64
	for {
		batch, next, err := b.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan failed: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	// SCAN may return a key more than once
	sort.Strings(keys)
	keys = dedupSorted(keys)

	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	out := make([]KV, 0, len(keys))
	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			// deleted between SCAN and MGET
			continue
		}
		out = append(out, KV{
			Key:   strings.TrimPrefix(keys[i], b.namespace),
			Value: []byte(s),
		})
	}
	return out, nil
}

func escapeGlob(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func dedupSorted(keys []string) []string {
	out := keys[:0]
	for _, k := range keys {
		if len(out) == 0 || out[len(out)-1] != k {
			out = append(out, k)
		}
	}
	return out
}
