package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")

	cfg, err := NewLoader().Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Prefix != "!" {
		t.Errorf("Expected default prefix !, got %q", cfg.Prefix)
	}
	if cfg.Bus.Type != "local" {
		t.Errorf("Expected default bus type local, got %q", cfg.Bus.Type)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"prefix": "?", "channels": {"telegram": {"enabled": true, "token": "abc"}}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := NewLoader().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Prefix != "?" {
		t.Errorf("Expected prefix ?, got %q", cfg.Prefix)
	}
	if !cfg.Channels.Telegram.Enabled || cfg.Channels.Telegram.Token != "abc" {
		t.Errorf("Telegram config not loaded: %+v", cfg.Channels.Telegram)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := NewLoader().Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}

	cfg.Channels.Discord.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected error for enabled discord without token")
	}

	cfg = DefaultConfig()
	cfg.Bus.Type = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected error for redis bus without address")
	}
}
