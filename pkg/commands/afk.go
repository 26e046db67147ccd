package commands

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// afkCommand marks the user away. The flag lives on the profile so it
// survives restarts.
func afkCommand(deps *BuiltinDeps) *Definition {
	return &Definition{
		Name:         "afk",
		Aliases:      []string{"away"},
		Description:  "Mark yourself away",
		Usage:        "afk [reason]",
		UserCooldown: 10 * time.Second,
		Role:         RolePublic,
		Mode:         ExecSync,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			p, _, err := deps.Profiles.Get(ctx, inv.Platform, inv.User.ID)
			if err != nil {
				return nil, fmt.Errorf("loading profile: %w", err)
			}

			p.AFK = true
			p.AFKReason = strings.TrimSpace(inv.RawArgs)
			p.AFKSince = time.Now()

			if err := deps.Profiles.Save(ctx, inv.Platform, inv.User.ID, p); err != nil {
				return nil, fmt.Errorf("saving profile: %w", err)
			}

			text := fmt.Sprintf("%s is now AFK", inv.User.Name)
			if p.AFKReason != "" {
				text += ": " + p.AFKReason
			}
			return &Result{Text: text}, nil
		},
	}
}

// backCommand clears the away flag and reports how long it was set.
func backCommand(deps *BuiltinDeps) *Definition {
	return &Definition{
		Name:         "back",
		Description:  "Clear your away status",
		Usage:        "back",
		UserCooldown: 10 * time.Second,
		Role:         RolePublic,
		Mode:         ExecSync,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			p, ok, err := deps.Profiles.Get(ctx, inv.Platform, inv.User.ID)
			if err != nil {
				return nil, fmt.Errorf("loading profile: %w", err)
			}
			if !ok || !p.AFK {
				return &Result{Text: "You were not AFK", Ephemeral: true}, nil
			}

			away := time.Since(p.AFKSince).Round(time.Second)

			p.AFK = false
			p.AFKReason = ""
			p.AFKSince = time.Time{}

			// A profile holding nothing beyond defaults is deleted
			// rather than stored.
			if p.Language == "" && p.PreferredName == "" {
				err = deps.Profiles.Clear(ctx, inv.Platform, inv.User.ID)
			} else {
				err = deps.Profiles.Save(ctx, inv.Platform, inv.User.ID, p)
			}
			if err != nil {
				return nil, fmt.Errorf("saving profile: %w", err)
			}

			return &Result{Text: fmt.Sprintf("Welcome back, %s! You were away for %s", inv.User.Name, away)}, nil
		},
	}
}
