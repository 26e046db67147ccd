package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	economyKeyPrefix = "economy"
	dailyAmount      = 100
)

func economyKey(platform Platform, userID string) string {
	return fmt.Sprintf("%s:%s:%s", economyKeyPrefix, platform, strings.TrimSpace(userID))
}

// balanceCommand shows the user's coin balance.
func balanceCommand(deps *BuiltinDeps) *Definition {
	return &Definition{
		Name:         "balance",
		Aliases:      []string{"bal", "coins"},
		Description:  "Show your coin balance",
		Usage:        "balance",
		UserCooldown: 5 * time.Second,
		Role:         RolePublic,
		Mode:         ExecSync,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			v, ok, err := deps.Store.Get(ctx, economyKey(inv.Platform, inv.User.ID))
			if err != nil {
				return nil, fmt.Errorf("loading balance: %w", err)
			}

			var balance int64
			if ok {
				balance = toInt64(v)
			}

			return &Result{Text: fmt.Sprintf("%s has %d coins", inv.User.Name, balance), Ephemeral: true}, nil
		},
	}
}

// dailyCommand grants the daily allowance. The cooldown tracker
// enforces the once-per-20h limit; the body only adds coins.
func dailyCommand(deps *BuiltinDeps) *Definition {
	return &Definition{
		Name:         "daily",
		Description:  "Collect your daily coins",
		Usage:        "daily",
		UserCooldown: 20 * time.Hour,
		Role:         RolePublic,
		Mode:         ExecAsync,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			var balance int64
			err := deps.Store.UpdateFunc(ctx, economyKey(inv.Platform, inv.User.ID), func(current any) any {
				balance = toInt64(current) + dailyAmount
				return balance
			})
			if err != nil {
				return nil, fmt.Errorf("updating balance: %w", err)
			}

			return &Result{Text: fmt.Sprintf("%s collected %d coins, balance is now %d",
				inv.User.Name, int64(dailyAmount), balance)}, nil
		},
	}
}

// giveCommand transfers coins to another user on the same platform.
func giveCommand(deps *BuiltinDeps) *Definition {
	return &Definition{
		Name:         "give",
		Aliases:      []string{"pay"},
		Description:  "Give coins to another user",
		Usage:        "give <user_id> <amount>",
		UserCooldown: 10 * time.Second,
		Role:         RolePublic,
		Mode:         ExecAsync,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			if len(inv.Args) < 2 {
				return &Result{Text: "Usage: give <user_id> <amount>", Ephemeral: true}, nil
			}

			target := strings.TrimSpace(inv.Args[0])
			if target == "" || target == inv.User.ID {
				return &Result{Text: "You cannot give coins to yourself", Ephemeral: true}, nil
			}

			amount, err := strconv.ParseInt(inv.Args[1], 10, 64)
			if err != nil || amount <= 0 {
				return &Result{Text: "Amount must be a positive number", Ephemeral: true}, nil
			}

			// Debit first; the per-user guard serializes all commands of
			// the sender, so the balance cannot change underneath.
			insufficient := false
			err = deps.Store.UpdateFunc(ctx, economyKey(inv.Platform, inv.User.ID), func(current any) any {
				balance := toInt64(current)
				if balance < amount {
					insufficient = true
					return balance
				}
				return balance - amount
			})
			if err != nil {
				return nil, fmt.Errorf("debiting sender: %w", err)
			}
			if insufficient {
				return &Result{Text: "You do not have enough coins", Ephemeral: true}, nil
			}

			err = deps.Store.UpdateFunc(ctx, economyKey(inv.Platform, target), func(current any) any {
				return toInt64(current) + amount
			})
			if err != nil {
				// Refund the debit so the failure does not burn coins.
				_ = deps.Store.UpdateFunc(ctx, economyKey(inv.Platform, inv.User.ID), func(current any) any {
					return toInt64(current) + amount
				})
				return nil, fmt.Errorf("crediting recipient: %w", err)
			}

			return &Result{Text: fmt.Sprintf("%s gave %d coins to %s", inv.User.Name, amount, target)}, nil
		},
	}
}

// toInt64 coerces stored values back to int64. JSON round-trips turn
// numbers into float64 or json.Number depending on the backend.
func toInt64(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case json.Number:
		n, _ := val.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}
