package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mikobot/pkg/i18n"
	"mikobot/pkg/scheduler"
)

const (
	maxRemindersPerUser  = 25
	maxReminderDelay     = 30 * 24 * time.Hour
	minRecurringInterval = time.Minute
)

// remindCommand schedules, lists and cancels reminders, one-shot and
// recurring. The scheduler delivers them to the originating chat via
// the bus.
func remindCommand(deps *BuiltinDeps) *Definition {
	return &Definition{
		Name:         "remind",
		Aliases:      []string{"reminder"},
		Description:  "Schedule a reminder",
		Usage:        "remind <duration> <text> | remind every <interval> <text> | remind list | remind cancel <id>",
		UserCooldown: 5 * time.Second,
		Role:         RolePublic,
		Mode:         ExecAsync,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			if len(inv.Args) == 0 {
				return &Result{Text: "Usage: remind <duration> <text>", Ephemeral: true}, nil
			}

			switch strings.ToLower(inv.Args[0]) {
			case "list":
				return listReminders(ctx, deps, inv)
			case "cancel":
				return cancelReminder(ctx, deps, inv)
			case "every":
				return addRecurringReminder(ctx, deps, inv)
			default:
				return addReminder(ctx, deps, inv)
			}
		},
	}
}

func addReminder(ctx context.Context, deps *BuiltinDeps, inv *Invocation) (*Result, error) {
	delay, err := time.ParseDuration(inv.Args[0])
	if err != nil || delay <= 0 {
		return &Result{Text: "Duration must look like 10m, 2h or 1h30m", Ephemeral: true}, nil
	}
	if delay > maxReminderDelay {
		return &Result{Text: "Reminders can be at most 30 days out", Ephemeral: true}, nil
	}

	text := strings.TrimSpace(strings.TrimPrefix(inv.RawArgs, inv.Args[0]))
	if text == "" {
		return &Result{Text: "Reminder text cannot be empty", Ephemeral: true}, nil
	}

	pending, err := deps.Scheduler.ListReminders(ctx, inv.User.ID)
	if err != nil {
		return nil, fmt.Errorf("listing reminders: %w", err)
	}
	if len(pending) >= maxRemindersPerUser {
		return &Result{Text: fmt.Sprintf("You already have %d pending reminders", len(pending)), Ephemeral: true}, nil
	}

	r, err := deps.Scheduler.AddReminder(ctx, &scheduler.Reminder{
		ChannelID: string(inv.Platform),
		ChatID:    inv.Channel.ID,
		UserID:    inv.User.ID,
		Username:  inv.User.Name,
		Text:      text,
		DueAt:     time.Now().Add(delay),
	})
	if err != nil {
		return nil, fmt.Errorf("adding reminder: %w", err)
	}

	return &Result{Text: fmt.Sprintf("Reminder %s set for %s from now", shortID(r.ID), delay)}, nil
}

func addRecurringReminder(ctx context.Context, deps *BuiltinDeps, inv *Invocation) (*Result, error) {
	if len(inv.Args) < 2 {
		return &Result{Text: "Usage: remind every <interval> <text>", Ephemeral: true}, nil
	}

	interval, err := time.ParseDuration(inv.Args[1])
	if err != nil || interval <= 0 {
		return &Result{Text: "Interval must look like 30m, 2h or 1h30m", Ephemeral: true}, nil
	}
	if interval < minRecurringInterval {
		return &Result{Text: "Recurring reminders run at most once a minute", Ephemeral: true}, nil
	}

	text := strings.TrimSpace(strings.TrimPrefix(inv.RawArgs, inv.Args[0]))
	text = strings.TrimSpace(strings.TrimPrefix(text, inv.Args[1]))
	if text == "" {
		return &Result{Text: "Reminder text cannot be empty", Ephemeral: true}, nil
	}

	pending, err := deps.Scheduler.ListReminders(ctx, inv.User.ID)
	if err != nil {
		return nil, fmt.Errorf("listing reminders: %w", err)
	}
	if len(pending) >= maxRemindersPerUser {
		return &Result{Text: fmt.Sprintf("You already have %d pending reminders", len(pending)), Ephemeral: true}, nil
	}

	r, err := deps.Scheduler.AddRecurring(ctx, &scheduler.Reminder{
		ChannelID: string(inv.Platform),
		ChatID:    inv.Channel.ID,
		UserID:    inv.User.ID,
		Username:  inv.User.Name,
		Text:      text,
		Cron:      "@every " + interval.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("adding recurring reminder: %w", err)
	}

	return &Result{Text: fmt.Sprintf("Reminder %s set for every %s", shortID(r.ID), interval)}, nil
}

func listReminders(ctx context.Context, deps *BuiltinDeps, inv *Invocation) (*Result, error) {
	pending, err := deps.Scheduler.ListReminders(ctx, inv.User.ID)
	if err != nil {
		return nil, fmt.Errorf("listing reminders: %w", err)
	}
	if len(pending) == 0 {
		return &Result{Text: "You have no pending reminders", Ephemeral: true}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pending reminders (%d):\n", len(pending))
	for _, r := range pending {
		if r.Cron != "" {
			fmt.Fprintf(&b, "%s - every %s - %s\n",
				shortID(r.ID), strings.TrimPrefix(r.Cron, "@every "), r.Text)
			continue
		}
		fmt.Fprintf(&b, "%s - in %s - %s\n",
			shortID(r.ID), time.Until(r.DueAt).Round(time.Second), r.Text)
	}
	return &Result{Text: strings.TrimRight(b.String(), "\n"), Ephemeral: true}, nil
}

func cancelReminder(ctx context.Context, deps *BuiltinDeps, inv *Invocation) (*Result, error) {
	if len(inv.Args) < 2 {
		return &Result{
			Text:      deps.Translator.T(inv.User.Language, i18n.KeyUnknownSubcommand, map[string]string{"usage": "remind cancel <id>"}),
			Ephemeral: true,
		}, nil
	}

	// Accept the short prefix shown by list; resolve it to a full ID.
	prefix := strings.ToLower(inv.Args[1])
	pending, err := deps.Scheduler.ListReminders(ctx, inv.User.ID)
	if err != nil {
		return nil, fmt.Errorf("listing reminders: %w", err)
	}

	var match *scheduler.Reminder
	for _, r := range pending {
		if strings.HasPrefix(strings.ToLower(r.ID), prefix) {
			if match != nil {
				return &Result{Text: "Reminder id is ambiguous, use more characters", Ephemeral: true}, nil
			}
			match = r
		}
	}
	if match == nil {
		return &Result{Text: "No reminder with that id", Ephemeral: true}, nil
	}

	if err := deps.Scheduler.CancelReminder(ctx, match.ID, inv.User.ID); err != nil {
		return nil, fmt.Errorf("cancelling reminder: %w", err)
	}

	return &Result{Text: fmt.Sprintf("Reminder %s cancelled", shortID(match.ID)), Ephemeral: true}, nil
}

// shortID returns the first uuid segment, enough to identify a
// reminder within one user's list.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
