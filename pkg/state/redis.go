package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mikobot/pkg/logger"
)

// RedisStore is a Redis-backed key-value store. Values are stored as
// JSON under a configurable prefix.
type RedisStore struct {
	log    *logger.Logger
	client *redis.Client
	prefix string
}

// RedisStoreConfig configures the Redis store.
type RedisStoreConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects to Redis and returns a store.
func NewRedisStore(log *logger.Logger, cfg *RedisStoreConfig) (*RedisStore, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "mikobot:state:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	log.Info("Connected to Redis state backend",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("prefix", cfg.Prefix))

	return &RedisStore{log: log, client: client, prefix: cfg.Prefix}, nil
}

// Get retrieves a value from the store.
func (s *RedisStore) Get(ctx context.Context, key string) (any, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		// Legacy plain-string values.
		return raw, true, nil
	}
	return value, true, nil
}

// GetString retrieves a string value.
func (s *RedisStore) GetString(ctx context.Context, key string) (string, bool, error) {
	value, exists, err := s.Get(ctx, key)
	if err != nil || !exists {
		return "", false, err
	}
	str, ok := value.(string)
	return str, ok, nil
}

// GetInt64 retrieves an integer value.
func (s *RedisStore) GetInt64(ctx context.Context, key string) (int64, bool, error) {
	value, exists, err := s.Get(ctx, key)
	if err != nil || !exists {
		return 0, false, err
	}
	return coerceInt64(value)
}

// GetBool retrieves a boolean value.
func (s *RedisStore) GetBool(ctx context.Context, key string) (bool, bool, error) {
	value, exists, err := s.Get(ctx, key)
	if err != nil || !exists {
		return false, false, err
	}
	b, ok := value.(bool)
	return b, ok, nil
}

// Set stores a value.
func (s *RedisStore) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling value: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a value.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// UpdateFunc atomically updates a value via an optimistic WATCH
// transaction, retrying on conflict.
func (s *RedisStore) UpdateFunc(ctx context.Context, key string, updateFn func(current any) any) error {
	prefixedKey := s.prefix + key

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, prefixedKey).Result()
		var current any
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			if uerr := json.Unmarshal([]byte(raw), &current); uerr != nil {
				current = raw
			}
		}

		data, err := json.Marshal(updateFn(current))
		if err != nil {
			return fmt.Errorf("marshaling value: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, prefixedKey, data, 0)
			return nil
		})
		return err
	}

	const maxRetries = 10
	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txf, prefixedKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("redis update: %w", err)
	}
	return fmt.Errorf("redis update: too many conflicts for key %s", key)
}

// Keys returns all keys in the store (prefix stripped).
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
