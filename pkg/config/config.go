// Package config provides configuration management for mikobot.
// It uses Viper for flexible configuration loading with support for
// JSON files, environment variables and default values.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete mikobot configuration.
type Config struct {
	Prefix   string         `mapstructure:"prefix" json:"prefix"`
	Logger   LoggerConfig   `mapstructure:"logger" json:"logger"`
	Engine   EngineConfig   `mapstructure:"engine" json:"engine"`
	Bus      BusConfig      `mapstructure:"bus" json:"bus"`
	Redis    RedisConfig    `mapstructure:"redis" json:"redis"`
	State    StateConfig    `mapstructure:"state" json:"state"`
	Channels ChannelsConfig `mapstructure:"channels" json:"channels"`
}

// LoggerConfig controls structured logging output.
type LoggerConfig struct {
	Level       string `mapstructure:"level" json:"level"`
	OutputPath  string `mapstructure:"output_path" json:"output_path"`
	Development bool   `mapstructure:"development" json:"development"`
}

// EngineConfig contains command engine tuning knobs.
// All durations are in seconds; zero means the built-in default
// (ExecTimeoutSeconds zero means no execution timeout at all).
type EngineConfig struct {
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" json:"sweep_interval_seconds"`
	GuardIdleSeconds     int `mapstructure:"guard_idle_seconds" json:"guard_idle_seconds"`
	ExecTimeoutSeconds   int `mapstructure:"exec_timeout_seconds" json:"exec_timeout_seconds"`
}

// SweepInterval returns the guard sweep interval.
func (e EngineConfig) SweepInterval() time.Duration {
	if e.SweepIntervalSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(e.SweepIntervalSeconds) * time.Second
}

// GuardIdle returns the idle threshold after which an unheld guard entry is evicted.
func (e EngineConfig) GuardIdle() time.Duration {
	if e.GuardIdleSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(e.GuardIdleSeconds) * time.Second
}

// ExecTimeout returns the optional per-command execution timeout (zero = none).
func (e EngineConfig) ExecTimeout() time.Duration {
	if e.ExecTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(e.ExecTimeoutSeconds) * time.Second
}

// BusConfig for the message bus.
type BusConfig struct {
	Type       string `mapstructure:"type" json:"type"` // "local" or "redis"
	BufferSize int    `mapstructure:"buffer_size" json:"buffer_size"`
	Prefix     string `mapstructure:"prefix" json:"prefix"` // redis key prefix
}

// RedisConfig is the shared Redis connection configuration
// used by the redis bus and redis state backends.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
}

// StateConfig for per-user key-value persistence.
type StateConfig struct {
	Backend  string `mapstructure:"backend" json:"backend"` // "file" or "redis"
	FilePath string `mapstructure:"file_path" json:"file_path"`
	Prefix   string `mapstructure:"prefix" json:"prefix"` // redis key prefix
}

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram" json:"telegram"`
	Discord  DiscordConfig  `mapstructure:"discord" json:"discord"`
	Slack    SlackConfig    `mapstructure:"slack" json:"slack"`
}

// RoleLists assigns bot-level roles to platform user IDs.
// Users in none of the lists default to the public role.
type RoleLists struct {
	Owners     []string `mapstructure:"owners" json:"owners"`
	Moderators []string `mapstructure:"moderators" json:"moderators"`
	Blocked    []string `mapstructure:"blocked" json:"blocked"`
}

// TelegramConfig for the Telegram channel.
type TelegramConfig struct {
	Enabled bool      `mapstructure:"enabled" json:"enabled"`
	Token   string    `mapstructure:"token" json:"token"`
	Proxy   string    `mapstructure:"proxy" json:"proxy"`
	Roles   RoleLists `mapstructure:"roles" json:"roles"`
}

// DiscordConfig for the Discord channel.
type DiscordConfig struct {
	Enabled bool      `mapstructure:"enabled" json:"enabled"`
	Token   string    `mapstructure:"token" json:"token"`
	Roles   RoleLists `mapstructure:"roles" json:"roles"`
}

// SlackConfig for the Slack channel (Socket Mode).
type SlackConfig struct {
	Enabled  bool      `mapstructure:"enabled" json:"enabled"`
	BotToken string    `mapstructure:"bot_token" json:"bot_token"`
	AppToken string    `mapstructure:"app_token" json:"app_token"`
	Roles    RoleLists `mapstructure:"roles" json:"roles"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Prefix: "!",
		Logger: LoggerConfig{
			Level: "info",
		},
		Bus: BusConfig{
			Type:       "local",
			BufferSize: 100,
		},
		State: StateConfig{
			Backend: "file",
		},
	}
}

// Validate checks the configuration for errors that should
// prevent startup.
func (c *Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("command prefix cannot be empty")
	}
	if c.Bus.Type == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required for redis bus")
	}
	if c.State.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required for redis state backend")
	}
	if c.Channels.Telegram.Enabled && c.Channels.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required when telegram is enabled")
	}
	if c.Channels.Discord.Enabled && c.Channels.Discord.Token == "" {
		return fmt.Errorf("discord token is required when discord is enabled")
	}
	if c.Channels.Slack.Enabled && (c.Channels.Slack.BotToken == "" || c.Channels.Slack.AppToken == "") {
		return fmt.Errorf("slack bot_token and app_token are required when slack is enabled")
	}
	return nil
}
