package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mikobot/pkg/commands"
	"mikobot/pkg/logger"
)

// ErrExecutionTimeout is recorded when the optional execution timeout
// elapses before an async command body completes.
var ErrExecutionTimeout = errors.New("command execution timed out")

// Dispatcher invokes command bodies, captures their results or
// failures, and measures duration. Neither handler errors nor panics
// propagate past this boundary.
type Dispatcher struct {
	log    *logger.Logger
	ledger *Ledger

	// timeout bounds a single execution. Zero means no timeout.
	timeout time.Duration
}

// NewDispatcher creates a dispatcher recording into ledger.
func NewDispatcher(log *logger.Logger, ledger *Ledger, timeout time.Duration) *Dispatcher {
	return &Dispatcher{log: log, ledger: ledger, timeout: timeout}
}

// Execute runs the command body according to its execution contract and
// returns the normalized result. A faulted execution yields a result
// with Err set; the caller decides the user-facing text.
func (d *Dispatcher) Execute(ctx context.Context, def *commands.Definition, inv *commands.Invocation) *commands.Result {
	started := time.Now()
	d.ledger.Begin(inv, started)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var res *commands.Result
	var err error

	switch def.Mode {
	case commands.ExecAsync:
		res, err = d.runAsync(ctx, def, inv)
	default:
		res, err = d.runGuarded(ctx, def, inv)
	}

	duration := time.Since(started)

	if err != nil {
		d.ledger.End(inv.ID, false)
		d.log.Error("Command faulted",
			zap.String("command", inv.Command),
			zap.String("invocation_id", inv.ID),
			zap.String("platform", string(inv.Platform)),
			zap.String("user", inv.User.ID),
			zap.Duration("duration", duration),
			zap.Error(err))
		return &commands.Result{Err: err}
	}

	if res == nil {
		res = &commands.Result{}
	}
	// Only trusted commands may bypass downstream content filtering.
	if res.Safe && !def.Trusted {
		res.Safe = false
	}

	d.ledger.End(inv.ID, true)
	d.log.Debug("Command completed",
		zap.String("command", inv.Command),
		zap.String("invocation_id", inv.ID),
		zap.Duration("duration", duration))
	return res
}

// runGuarded invokes the handler on the calling goroutine with panic
// capture.
func (d *Dispatcher) runGuarded(ctx context.Context, def *commands.Definition, inv *commands.Invocation) (res *commands.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("command %s panicked: %v", inv.Command, r)
		}
	}()
	return def.Handler(ctx, inv)
}

type asyncOutcome struct {
	res *commands.Result
	err error
}

// runAsync invokes the handler on its own goroutine and waits for it,
// so a slow body cannot monopolize the caller past the configured
// timeout. The goroutine outlives an abandoned wait; its result is
// dropped and the invocation is recorded as faulted.
func (d *Dispatcher) runAsync(ctx context.Context, def *commands.Definition, inv *commands.Invocation) (*commands.Result, error) {
	done := make(chan asyncOutcome, 1)

	go func() {
		res, err := d.runGuarded(ctx, def, inv)
		done <- asyncOutcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("command %s: %w", inv.Command, ErrExecutionTimeout)
		}
		return nil, ctx.Err()
	}
}
