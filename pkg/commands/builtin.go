package commands

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"mikobot/pkg/bus"
	"mikobot/pkg/i18n"
	"mikobot/pkg/logger"
	"mikobot/pkg/scheduler"
	"mikobot/pkg/state"
	"mikobot/pkg/version"
)

// EngineStats exposes execution statistics to introspection commands.
// The engine provides the implementation.
type EngineStats interface {
	InFlight() int
	Completed() uint64
	Faulted() uint64
	GuardEntries() int
}

// CooldownAdmin lets moderator commands clear cooldown state. The
// engine provides the implementation.
type CooldownAdmin interface {
	ResetCooldown(platform Platform, command, userID string)
}

// ChannelLister reports the channel adapters currently running. The
// channel manager provides the implementation.
type ChannelLister interface {
	ListChannels() []string
}

// BuiltinDeps carries everything the built-in command bodies need.
type BuiltinDeps struct {
	Log        *logger.Logger
	Store      state.KV
	Profiles   *Profiles
	Scheduler  *scheduler.Scheduler
	Stats      EngineStats
	Cooldowns  CooldownAdmin
	Channels   ChannelLister
	Bus        bus.Bus
	Translator *i18n.Translator
	StartedAt  time.Time
}

// RegisterBuiltins registers the built-in command set on the registry.
func RegisterBuiltins(reg *Registry, deps *BuiltinDeps) error {
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}

	defs := []*Definition{
		pingCommand(deps),
		helpCommand(reg),
		statusCommand(deps),
		resetCooldownCommand(reg, deps),
		langCommand(deps),
		afkCommand(deps),
		backCommand(deps),
		balanceCommand(deps),
		dailyCommand(deps),
		giveCommand(deps),
		remindCommand(deps),
	}

	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}

	return nil
}

// pingCommand reports liveness and a short execution summary.
func pingCommand(deps *BuiltinDeps) *Definition {
	return &Definition{
		Name:         "ping",
		Description:  "Check that the bot is alive",
		Usage:        "ping",
		UserCooldown: 5 * time.Second,
		Role:         RolePublic,
		Mode:         ExecSync,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			text := fmt.Sprintf("pong! in-flight: %d, completed: %d",
				deps.Stats.InFlight(), deps.Stats.Completed())
			return &Result{Text: text}, nil
		},
	}
}

// helpCommand lists the commands the invoking user may actually run
// here: role-eligible and supported on the platform.
func helpCommand(reg *Registry) *Definition {
	return &Definition{
		Name:         "help",
		Aliases:      []string{"commands"},
		Description:  "List available commands",
		Usage:        "help [command]",
		UserCooldown: 10 * time.Second,
		Role:         RolePublic,
		Mode:         ExecSync,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			if len(inv.Args) > 0 {
				def, ok := reg.Get(inv.Args[0])
				if !ok || def.Role > inv.User.Role || !def.SupportsPlatform(inv.Platform) {
					return &Result{Text: fmt.Sprintf("Unknown command: %s", inv.Args[0]), Ephemeral: true}, nil
				}
				text := fmt.Sprintf("%s%s - %s", reg.Prefix(), def.Name, def.Description)
				if def.Usage != "" {
					text += fmt.Sprintf("\nUsage: %s%s", reg.Prefix(), def.Usage)
				}
				if len(def.Aliases) > 0 {
					text += "\nAliases: " + strings.Join(def.Aliases, ", ")
				}
				return &Result{Text: text, Ephemeral: true}, nil
			}

			defs := reg.List()
			sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, def := range defs {
				if def.Role > inv.User.Role || !def.SupportsPlatform(inv.Platform) {
					continue
				}
				fmt.Fprintf(&b, "%s%s - %s\n", reg.Prefix(), def.Name, def.Description)
			}
			return &Result{Text: strings.TrimRight(b.String(), "\n"), Ephemeral: true}, nil
		},
	}
}

// statusCommand reports runtime and execution statistics to moderators.
func statusCommand(deps *BuiltinDeps) *Definition {
	return &Definition{
		Name:        "status",
		Description: "Show bot runtime status",
		Usage:       "status",
		Role:        RoleBotModerator,
		Mode:        ExecSync,
		Trusted:     true,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			uptime := time.Since(deps.StartedAt).Round(time.Second)

			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)

			var b strings.Builder
			fmt.Fprintf(&b, "%s\n", version.GetFullVersion())
			fmt.Fprintf(&b, "Uptime: %s\n", uptime)
			fmt.Fprintf(&b, "Memory: %.1f MB, goroutines: %d\n", float64(mem.Alloc)/1024/1024, runtime.NumGoroutine())
			fmt.Fprintf(&b, "Channels: %s\n", channelList(deps.Channels))
			fmt.Fprintf(&b, "In-flight: %d\n", deps.Stats.InFlight())
			fmt.Fprintf(&b, "Completed: %d\n", deps.Stats.Completed())
			fmt.Fprintf(&b, "Faulted: %d\n", deps.Stats.Faulted())
			fmt.Fprintf(&b, "Guard entries: %d", deps.Stats.GuardEntries())

			if deps.Bus != nil {
				m := deps.Bus.Metrics()
				fmt.Fprintf(&b, "\nBus sent: %d, delivered: %d, errors: %d",
					m["sent"], m["delivered"], m["errors"])
			}

			return &Result{Text: b.String(), Safe: true, Ephemeral: true}, nil
		},
	}
}

func channelList(channels ChannelLister) string {
	if channels == nil {
		return "none"
	}
	ids := channels.ListChannels()
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}

// resetCooldownCommand clears a user's cooldown for one command, so
// moderators can unblock someone after a mistyped invocation burned
// their window.
func resetCooldownCommand(reg *Registry, deps *BuiltinDeps) *Definition {
	return &Definition{
		Name:        "resetcooldown",
		Description: "Clear a user's cooldown for a command",
		Usage:       "resetcooldown <command> <user-id>",
		Role:        RoleBotModerator,
		Mode:        ExecSync,
		Trusted:     true,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			if len(inv.Args) < 2 {
				return &Result{Text: "Usage: resetcooldown <command> <user-id>", Ephemeral: true}, nil
			}

			// Cooldowns key on the canonical name, so resolve
			// aliases before resetting.
			def, ok := reg.Get(inv.Args[0])
			if !ok {
				return &Result{Text: fmt.Sprintf("Unknown command: %s", inv.Args[0]), Ephemeral: true}, nil
			}

			deps.Cooldowns.ResetCooldown(inv.Platform, def.Name, inv.Args[1])
			return &Result{
				Text:      fmt.Sprintf("Cooldown for %s cleared for user %s", def.Name, inv.Args[1]),
				Ephemeral: true,
			}, nil
		},
	}
}

// langCommand sets the user's preferred response language.
func langCommand(deps *BuiltinDeps) *Definition {
	return &Definition{
		Name:         "lang",
		Aliases:      []string{"language"},
		Description:  "Set your preferred language (en, es, ru)",
		Usage:        "lang <code>",
		UserCooldown: 5 * time.Second,
		Role:         RolePublic,
		Mode:         ExecSync,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			if len(inv.Args) == 0 {
				current := deps.Profiles.Language(ctx, inv.Platform, inv.User.ID)
				if current == "" {
					current = i18n.DefaultLanguage
				}
				return &Result{Text: "Current language: " + current, Ephemeral: true}, nil
			}

			lang := strings.ToLower(inv.Args[0])
			if NormalizeLanguage(lang) != lang {
				return &Result{Text: "Supported languages: en, es, ru", Ephemeral: true}, nil
			}

			p, _, err := deps.Profiles.Get(ctx, inv.Platform, inv.User.ID)
			if err != nil {
				return nil, fmt.Errorf("loading profile: %w", err)
			}
			p.Language = lang
			if err := deps.Profiles.Save(ctx, inv.Platform, inv.User.ID, p); err != nil {
				return nil, fmt.Errorf("saving profile: %w", err)
			}

			return &Result{Text: "Language set to " + lang, Ephemeral: true}, nil
		},
	}
}
