package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/itsneelabh/gocart/pkg/logger"
)

// RedisStorage implements Storage on Redis with namespaced keys.
type RedisStorage struct {
	client    *redis.Client
	namespace string
	logger    logger.Logger
}

// NewRedisStorage connects to redisURL and verifies the connection with PING.
func NewRedisStorage(redisURL, namespace string, log logger.Logger) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStorageWithClient(client, namespace, log), nil
}

// NewRedisStorageWithClient wraps an existing client. An empty namespace
// defaults to "gocart".
func NewRedisStorageWithClient(client *redis.Client, namespace string, log logger.Logger) *RedisStorage {
	if namespace == "" {
		namespace = "gocart"
	}
	return &RedisStorage{
		client:    client,
		namespace: namespace,
		logger:    logger.OrNoOp(log).WithComponent("storage/redis"),
	}
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.buildKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

func (r *RedisStorage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.buildKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	r.logger.Debug("Storage set", map[string]interface{}{
		"operation": "storage_set",
		"key":       r.buildKey(key),
		"has_ttl":   ttl > 0,
	})
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.buildKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key %s: %w", key, err)
	}
	return n > 0, nil
}

// buildKey creates a namespaced key
func (r *RedisStorage) buildKey(key string) string {
	return fmt.Sprintf("%s:%s", r.namespace, key)
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
