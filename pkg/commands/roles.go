package commands

import (
	"strings"

	"mikobot/pkg/config"
)

// ResolveRole maps a platform user ID to its configured bot-level role.
// Users in none of the lists are public; the blocked list wins over the
// others.
func ResolveRole(lists config.RoleLists, userID string) Role {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return RolePublic
	}

	if containsID(lists.Blocked, userID) {
		return RoleBlocked
	}
	if containsID(lists.Owners, userID) {
		return RoleBotOwner
	}
	if containsID(lists.Moderators, userID) {
		return RoleBotModerator
	}
	return RolePublic
}

func containsID(ids []string, userID string) bool {
	for _, id := range ids {
		if strings.TrimSpace(id) == userID {
			return true
		}
	}
	return false
}
