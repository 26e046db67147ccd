package config

import (
	"go.uber.org/fx"

	"mikobot/pkg/logger"
)

// Module provides configuration for fx dependency injection.
var Module = fx.Module("config",
	fx.Provide(NewLoader),
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLoggerConfig),
)

// ProvideConfig provides the loaded and validated configuration.
func ProvideConfig(loader *Loader) (*Config, error) {
	cfg, err := loader.Load("")
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ProvideLoggerConfig maps the logger section to the logger package's config.
func ProvideLoggerConfig(cfg *Config) *logger.Config {
	lcfg := logger.DefaultConfig()
	if cfg.Logger.Level != "" {
		lcfg.Level = logger.Level(cfg.Logger.Level)
	}
	if cfg.Logger.OutputPath != "" {
		lcfg.OutputPath = cfg.Logger.OutputPath
	}
	lcfg.Development = cfg.Logger.Development
	return lcfg
}
