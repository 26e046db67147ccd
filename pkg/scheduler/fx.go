package scheduler

import (
	"context"

	"go.uber.org/fx"

	"mikobot/pkg/bus"
	"mikobot/pkg/logger"
	"mikobot/pkg/state"
)

// Module is the fx module for the scheduler.
var Module = fx.Module("scheduler",
	fx.Provide(NewScheduler),
)

// NewScheduler creates a new scheduler for fx.
func NewScheduler(
	lc fx.Lifecycle,
	log *logger.Logger,
	b bus.Bus,
	kv state.KV,
) *Scheduler {
	s := New(log, b, kv)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop()
		},
	})

	return s
}
