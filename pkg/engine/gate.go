// Package engine turns normalized inbound chat messages into rate-limited,
// permission-checked, race-free command executions with normalized results.
package engine

import (
	"time"

	"mikobot/pkg/commands"
)

// DenialReason is the symbolic reason an invocation was not admitted.
type DenialReason string

const (
	// DenyInsufficientRole when the user's role is below the command's requirement.
	DenyInsufficientRole DenialReason = "insufficient_role"
	// DenyPlatformNotSupported when the command is not eligible on the source platform.
	DenyPlatformNotSupported DenialReason = "platform_not_supported"
	// DenyOnCooldown when the cooldown tracker rejected the invocation.
	DenyOnCooldown DenialReason = "on_cooldown"
)

// Denial describes a rejected invocation. RetryAfter is set only for
// cooldown rejections.
type Denial struct {
	Reason     DenialReason
	RetryAfter time.Duration
}

// CheckAccess evaluates platform eligibility and role sufficiency for a
// resolved command. It is pure: no shared state, no side effects, and
// therefore needs no synchronization. Platform is checked first so a
// user is not told about permissions on a command that cannot run here
// at all.
func CheckAccess(def *commands.Definition, inv *commands.Invocation) (Denial, bool) {
	if !def.SupportsPlatform(inv.Platform) {
		return Denial{Reason: DenyPlatformNotSupported}, false
	}
	if inv.User.Role < def.Role {
		return Denial{Reason: DenyInsufficientRole}, false
	}
	return Denial{}, true
}
