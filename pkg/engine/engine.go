package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mikobot/pkg/commands"
	"mikobot/pkg/i18n"
	"mikobot/pkg/logger"
)

// Inbound is one normalized chat message as delivered by a platform
// adapter.
type Inbound struct {
	// Text is the raw message text, prefix included.
	Text string
	// Platform is the source platform.
	Platform commands.Platform
	// User is the invoking user with their resolved role and language.
	User commands.User
	// Channel is the conversation the message arrived in.
	Channel commands.Channel
	// Extra is an opaque platform-specific payload forwarded to the
	// command body untouched.
	Extra any
}

// Engine is the command pipeline: resolve, gate, cooldown, per-user
// guard, dispatch. One HandleMessage call per inbound message; calls
// are safe to make from arbitrarily many goroutines.
type Engine struct {
	log        *logger.Logger
	registry   *commands.Registry
	cooldowns  *CooldownTracker
	guard      *UserGuard
	ledger     *Ledger
	dispatcher *Dispatcher
	translator *i18n.Translator
}

// New creates an engine around the given collaborators.
func New(
	log *logger.Logger,
	registry *commands.Registry,
	cooldowns *CooldownTracker,
	guard *UserGuard,
	ledger *Ledger,
	dispatcher *Dispatcher,
	translator *i18n.Translator,
) *Engine {
	return &Engine{
		log:        log,
		registry:   registry,
		cooldowns:  cooldowns,
		guard:      guard,
		ledger:     ledger,
		dispatcher: dispatcher,
		translator: translator,
	}
}

// Ledger exposes the invocation ledger for introspection commands.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// Guard exposes the per-user guard for introspection commands.
func (e *Engine) Guard() *UserGuard {
	return e.guard
}

// Registry exposes the command registry.
func (e *Engine) Registry() *commands.Registry {
	return e.registry
}

// HandleMessage runs one inbound message through the pipeline.
// A nil result with nil error means the message was not a command
// invocation and should be ignored. Denials, cooldown rejections and
// faults all come back as results with localized user-facing text;
// none of them are errors to the caller.
func (e *Engine) HandleMessage(ctx context.Context, in Inbound) (*commands.Result, error) {
	def, rawArgs, ok := e.registry.Resolve(in.Text)
	if !ok {
		return nil, nil
	}

	inv := &commands.Invocation{
		ID:       uuid.NewString(),
		Command:  def.Name,
		Args:     commands.SplitArgs(rawArgs),
		RawArgs:  rawArgs,
		User:     in.User,
		Channel:  in.Channel,
		Platform: in.Platform,
		Extra:    in.Extra,
	}

	// Gate before cooldown: a denied invocation must not consume a
	// cooldown window.
	if denial, allowed := CheckAccess(def, inv); !allowed {
		e.log.Debug("Command denied",
			zap.String("command", inv.Command),
			zap.String("user", inv.User.ID),
			zap.String("reason", string(denial.Reason)))
		return e.denialResult(def, inv, denial), nil
	}

	if retryAfter, admitted := e.cooldowns.TryAdmit(
		inv.Platform, def.Name, inv.User.ID, inv.Channel.ID,
		def.UserCooldown, def.ChannelCooldown,
	); !admitted {
		e.log.Debug("Command on cooldown",
			zap.String("command", inv.Command),
			zap.String("user", inv.User.ID),
			zap.Duration("retry_after", retryAfter))
		return e.denialResult(def, inv, Denial{Reason: DenyOnCooldown, RetryAfter: retryAfter}), nil
	}

	// Serialize command bodies per platform-qualified user. Acquire
	// suspends this goroutine only; other users are unaffected.
	lease, err := e.guard.Acquire(ctx, guardKey(inv))
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	res := e.dispatcher.Execute(ctx, def, inv)
	if res.Failed() {
		// Generic failure text only; internal detail stays in logs.
		res.Text = e.translator.T(inv.User.Language, i18n.KeyCommandFailed, map[string]string{
			"command": e.registry.Prefix() + def.Name,
		})
	}
	return res, nil
}

// denialResult builds the localized user-facing result for a denial or
// cooldown rejection. Denial texts are engine-origin and safe by
// construction.
func (e *Engine) denialResult(def *commands.Definition, inv *commands.Invocation, denial Denial) *commands.Result {
	display := e.registry.Prefix() + def.Name
	var text string

	switch denial.Reason {
	case DenyPlatformNotSupported:
		text = e.translator.T(inv.User.Language, i18n.KeyPlatformNotSupported, map[string]string{
			"command":  display,
			"platform": string(inv.Platform),
		})
	case DenyInsufficientRole:
		text = e.translator.T(inv.User.Language, i18n.KeyInsufficientRole, map[string]string{
			"command": display,
		})
	case DenyOnCooldown:
		text = e.translator.T(inv.User.Language, i18n.KeyOnCooldown, map[string]string{
			"command": display,
			"wait":    denial.RetryAfter.Round(waitRounding(denial.RetryAfter)).String(),
		})
	}

	return &commands.Result{Text: text, Safe: true, Ephemeral: true}
}

// waitRounding picks a display granularity for retry-after durations.
func waitRounding(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Millisecond
	}
	return time.Second
}

// guardKey qualifies the user id by platform: the same person on two
// platforms is two independent subjects unless unified upstream.
func guardKey(inv *commands.Invocation) string {
	return string(inv.Platform) + ":" + inv.User.ID
}
