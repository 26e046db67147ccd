// Package state provides per-user key-value persistence with file and
// redis backends. Command bodies use it for balances, AFK flags and
// similar per-user records; the engine's per-user guard serializes the
// read-modify-write cycles around it.
package state

import (
	"context"
	"fmt"

	"mikobot/pkg/logger"
)

// KV is the interface for key-value storage backends.
type KV interface {
	// Get retrieves a value from the store.
	Get(ctx context.Context, key string) (any, bool, error)

	// GetString retrieves a string value.
	GetString(ctx context.Context, key string) (string, bool, error)

	// GetInt64 retrieves an integer value.
	GetInt64(ctx context.Context, key string) (int64, bool, error)

	// GetBool retrieves a boolean value.
	GetBool(ctx context.Context, key string) (bool, bool, error)

	// Set stores a value.
	Set(ctx context.Context, key string, value any) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// UpdateFunc atomically updates a value using a function.
	UpdateFunc(ctx context.Context, key string, updateFn func(current any) any) error

	// Keys returns all keys in the store.
	Keys(ctx context.Context) ([]string, error)

	// Close closes the store and performs cleanup.
	Close() error
}

// Config configures the state store.
type Config struct {
	Backend string // "file" or "redis"

	// File backend
	FilePath     string
	AutoSaveSecs int

	// Redis backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// New creates a KV store based on configuration.
func New(log *logger.Logger, cfg *Config) (KV, error) {
	switch cfg.Backend {
	case "file", "":
		return NewFileStore(log, cfg.FilePath, cfg.AutoSaveSecs)

	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis address is required")
		}
		return NewRedisStore(log, &RedisStoreConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})

	default:
		return nil, fmt.Errorf("unknown state backend: %s", cfg.Backend)
	}
}
