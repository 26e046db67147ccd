package commands

import (
	"context"
	"testing"
)

func noopHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	return &Result{Text: "ok"}, nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry("!")
	if err := r.Register(&Definition{
		Name:    "ping",
		Aliases: []string{"p"},
		Handler: noopHandler,
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	r.Seal()

	def, args, ok := r.Resolve("!ping   hello world")
	if !ok {
		t.Fatal("Expected ping to resolve")
	}
	if def.Name != "ping" {
		t.Errorf("Expected ping, got %s", def.Name)
	}
	if args != "hello world" {
		t.Errorf("Expected args %q, got %q", "hello world", args)
	}

	// Alias and case-insensitive lookup.
	if def, _, ok := r.Resolve("!P"); !ok || def.Name != "ping" {
		t.Error("Expected alias p to resolve case-insensitively")
	}

	// No prefix is not a command.
	if _, _, ok := r.Resolve("ping"); ok {
		t.Error("Expected text without prefix to not resolve")
	}

	// Unknown alias is a silent miss.
	if _, _, ok := r.Resolve("!pong"); ok {
		t.Error("Expected unknown alias to not resolve")
	}
}

func TestRegistryResolveSplitsOnAnyWhitespace(t *testing.T) {
	r := NewRegistry("!")
	if err := r.Register(&Definition{Name: "ping", Handler: noopHandler}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	r.Seal()

	// A tab after the command token is a separator, not part of the alias.
	def, args, ok := r.Resolve("!ping\thello world")
	if !ok || def.Name != "ping" {
		t.Fatal("Expected ping to resolve with tab separator")
	}
	if args != "hello world" {
		t.Errorf("Expected args %q, got %q", "hello world", args)
	}

	if def, args, ok := r.Resolve("!ping\n"); !ok || def.Name != "ping" || args != "" {
		t.Errorf("Expected bare command with trailing newline to resolve, got ok=%v args=%q", ok, args)
	}
}

func TestRegistryDuplicateAlias(t *testing.T) {
	r := NewRegistry("!")
	if err := r.Register(&Definition{Name: "ping", Aliases: []string{"p"}, Handler: noopHandler}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := r.Register(&Definition{Name: "pong", Aliases: []string{"p"}, Handler: noopHandler})
	if err == nil {
		t.Fatal("Expected duplicate alias to fail registration")
	}

	// Duplicate canonical name counts too.
	if err := r.Register(&Definition{Name: "ping", Handler: noopHandler}); err == nil {
		t.Fatal("Expected duplicate name to fail registration")
	}
}

func TestRegistryRejectsUntrustableCommand(t *testing.T) {
	r := NewRegistry("!")
	err := r.Register(&Definition{
		Name:    "shady",
		Trusted: true,
		Role:    RolePublic,
		Handler: noopHandler,
	})
	if err == nil {
		t.Fatal("Expected trusted command below bot_moderator to be rejected")
	}
}

func TestRegistrySealedRejectsRegistration(t *testing.T) {
	r := NewRegistry("!")
	r.Seal()
	if err := r.Register(&Definition{Name: "late", Handler: noopHandler}); err == nil {
		t.Fatal("Expected registration after Seal to fail")
	}
}

func TestDefinitionSupportsPlatform(t *testing.T) {
	all := &Definition{Name: "a", Handler: noopHandler}
	if !all.SupportsPlatform(PlatformSlack) {
		t.Error("Empty platform set should allow all platforms")
	}

	tg := &Definition{Name: "b", Platforms: []Platform{PlatformTelegram}, Handler: noopHandler}
	if tg.SupportsPlatform(PlatformDiscord) {
		t.Error("Platform-limited command should reject other platforms")
	}
	if !tg.SupportsPlatform(PlatformTelegram) {
		t.Error("Platform-limited command should accept its platform")
	}
}

func TestRoleOrdering(t *testing.T) {
	order := []Role{RoleBlocked, RoleBot, RolePublic, RoleChannelModerator, RoleBotModerator, RoleBotOwner}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Fatalf("Role ordering broken at %s >= %s", order[i-1], order[i])
		}
	}
}

func TestSplitArgs(t *testing.T) {
	args := SplitArgs("  a   b\tc ")
	if len(args) != 3 || args[0] != "a" || args[2] != "c" {
		t.Errorf("Unexpected split: %v", args)
	}
}
