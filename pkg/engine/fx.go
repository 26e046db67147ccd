package engine

import (
	"context"

	"go.uber.org/fx"

	"mikobot/pkg/commands"
	"mikobot/pkg/config"
	"mikobot/pkg/i18n"
	"mikobot/pkg/logger"
)

// Module is the fx module for the command engine.
var Module = fx.Module("engine",
	fx.Provide(NewCooldownTracker),
	fx.Provide(NewLedger),
	fx.Provide(i18n.New),
	fx.Provide(ProvideUserGuard),
	fx.Provide(ProvideDispatcher),
	fx.Provide(New),
	fx.Provide(
		fx.Annotate(
			newStatsAdapter,
			fx.As(new(commands.EngineStats)),
			fx.As(new(commands.CooldownAdmin)),
		),
	),
)

// ProvideUserGuard creates the per-user guard and runs its idle sweep
// for the process lifetime.
func ProvideUserGuard(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) *UserGuard {
	guard := NewUserGuard(log, cfg.Engine.GuardIdle())

	sweepCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				guard.RunSweeper(sweepCtx, cfg.Engine.SweepInterval())
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})

	return guard
}

// ProvideDispatcher creates the execution dispatcher.
func ProvideDispatcher(log *logger.Logger, ledger *Ledger, cfg *config.Config) *Dispatcher {
	return NewDispatcher(log, ledger, cfg.Engine.ExecTimeout())
}

// statsAdapter exposes ledger and guard statistics plus cooldown
// administration to built-in commands without the commands package
// importing the engine.
type statsAdapter struct {
	ledger    *Ledger
	guard     *UserGuard
	cooldowns *CooldownTracker
}

func newStatsAdapter(ledger *Ledger, guard *UserGuard, cooldowns *CooldownTracker) *statsAdapter {
	return &statsAdapter{ledger: ledger, guard: guard, cooldowns: cooldowns}
}

func (s *statsAdapter) InFlight() int     { return s.ledger.InFlight() }
func (s *statsAdapter) Completed() uint64 { return s.ledger.Completed() }
func (s *statsAdapter) Faulted() uint64   { return s.ledger.Faulted() }
func (s *statsAdapter) GuardEntries() int { return s.guard.Len() }

func (s *statsAdapter) ResetCooldown(platform commands.Platform, command, userID string) {
	s.cooldowns.Reset(platform, command, userID)
}
