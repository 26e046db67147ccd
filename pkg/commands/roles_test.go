package commands

import (
	"testing"

	"mikobot/pkg/config"
)

func TestResolveRole(t *testing.T) {
	lists := config.RoleLists{
		Owners:     []string{"100"},
		Moderators: []string{"200", "201"},
		Blocked:    []string{"300", "100"},
	}

	cases := []struct {
		userID string
		want   Role
	}{
		{"100", RoleBlocked}, // blocked wins over owner
		{"200", RoleBotModerator},
		{"201", RoleBotModerator},
		{"300", RoleBlocked},
		{"999", RolePublic},
		{"", RolePublic},
	}

	for _, tc := range cases {
		if got := ResolveRole(lists, tc.userID); got != tc.want {
			t.Errorf("ResolveRole(%q) = %v, want %v", tc.userID, got, tc.want)
		}
	}
}
