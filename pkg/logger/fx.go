package logger

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides logger for fx dependency injection.
var Module = fx.Module("logger",
	fx.Provide(ProvideLogger),
)

// Params carries the logger configuration resolved by the config package.
// A separate struct avoids a direct import cycle between config and logger.
type Params struct {
	fx.In

	Config *Config `optional:"true"`
}

// ProvideLogger provides a logger instance for dependency injection.
func ProvideLogger(lc fx.Lifecycle, p Params) (*Logger, error) {
	cfg := p.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}

	log, err := New(cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Logger initialized",
				zap.String("level", string(cfg.Level)),
				zap.String("output", cfg.OutputPath))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// Sync can fail on stdout sinks, that is fine on shutdown.
			_ = log.Sync()
			return nil
		},
	})

	return log, nil
}
