package commands

import (
	"time"

	"go.uber.org/fx"

	"mikobot/pkg/bus"
	"mikobot/pkg/config"
	"mikobot/pkg/i18n"
	"mikobot/pkg/logger"
	"mikobot/pkg/scheduler"
	"mikobot/pkg/state"
)

// Module is the fx module for the command catalog.
var Module = fx.Module("commands",
	fx.Provide(ProvideRegistry),
	fx.Provide(NewProfiles),
	fx.Invoke(registerBuiltins),
)

// ProvideRegistry creates the command registry with the configured prefix.
func ProvideRegistry(cfg *config.Config) *Registry {
	return NewRegistry(cfg.Prefix)
}

type builtinParams struct {
	fx.In

	Log        *logger.Logger
	Registry   *Registry
	Store      state.KV
	Profiles   *Profiles
	Scheduler  *scheduler.Scheduler
	Stats      EngineStats
	Cooldowns  CooldownAdmin
	Channels   ChannelLister
	Bus        bus.Bus
	Translator *i18n.Translator
}

// registerBuiltins registers the built-in command set and seals the
// registry. Resolution is lock-free from here on.
func registerBuiltins(p builtinParams) error {
	deps := &BuiltinDeps{
		Log:        p.Log,
		Store:      p.Store,
		Profiles:   p.Profiles,
		Scheduler:  p.Scheduler,
		Stats:      p.Stats,
		Cooldowns:  p.Cooldowns,
		Channels:   p.Channels,
		Bus:        p.Bus,
		Translator: p.Translator,
		StartedAt:  time.Now(),
	}

	if err := RegisterBuiltins(p.Registry, deps); err != nil {
		return err
	}

	p.Registry.Seal()
	return nil
}
