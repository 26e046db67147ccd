package state

import (
	"context"

	"go.uber.org/fx"

	"mikobot/pkg/config"
	"mikobot/pkg/logger"
)

// Module is the fx module for state persistence.
var Module = fx.Module("state",
	fx.Provide(NewKVStore),
)

// NewKVStore creates the configured KV store for fx.
func NewKVStore(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) (KV, error) {
	storeCfg := &Config{
		Backend:  cfg.State.Backend,
		FilePath: cfg.State.FilePath,
	}
	if cfg.State.Backend == "redis" {
		storeCfg.RedisAddr = cfg.Redis.Addr
		storeCfg.RedisPassword = cfg.Redis.Password
		storeCfg.RedisDB = cfg.Redis.DB
		storeCfg.RedisPrefix = cfg.State.Prefix
	}

	store, err := New(log, storeCfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})

	return store, nil
}
