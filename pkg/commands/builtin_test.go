package commands

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mikobot/pkg/bus"
	"mikobot/pkg/i18n"
	"mikobot/pkg/logger"
	"mikobot/pkg/scheduler"
	"mikobot/pkg/state"
)

type fakeStats struct {
	inFlight  int
	completed uint64
	faulted   uint64
	guards    int
}

func (s *fakeStats) InFlight() int     { return s.inFlight }
func (s *fakeStats) Completed() uint64 { return s.completed }
func (s *fakeStats) Faulted() uint64   { return s.faulted }
func (s *fakeStats) GuardEntries() int { return s.guards }

type fakeCooldowns struct {
	platform Platform
	command  string
	userID   string
	calls    int
}

func (c *fakeCooldowns) ResetCooldown(platform Platform, command, userID string) {
	c.platform = platform
	c.command = command
	c.userID = userID
	c.calls++
}

type fakeChannels struct {
	ids []string
}

func (c *fakeChannels) ListChannels() []string { return c.ids }

func newBuiltinDeps(t *testing.T) (*Registry, *BuiltinDeps) {
	t.Helper()

	log, err := logger.New(&logger.Config{Level: logger.LevelError})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	kv, err := state.NewFileStore(log, filepath.Join(t.TempDir(), "state.json"), 0)
	if err != nil {
		t.Fatalf("Failed to create state store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	b := bus.NewLocalBus(log, 10)
	if err := b.Start(); err != nil {
		t.Fatalf("Failed to start bus: %v", err)
	}
	t.Cleanup(func() { b.Stop() })

	sched := scheduler.New(log, b, kv)
	if err := sched.Start(); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}
	t.Cleanup(func() { sched.Stop() })

	deps := &BuiltinDeps{
		Log:        log,
		Store:      kv,
		Profiles:   NewProfiles(kv),
		Scheduler:  sched,
		Stats:      &fakeStats{inFlight: 1, completed: 42, faulted: 2, guards: 3},
		Cooldowns:  &fakeCooldowns{},
		Channels:   &fakeChannels{ids: []string{"telegram"}},
		Bus:        b,
		Translator: i18n.New(),
		StartedAt:  time.Now(),
	}

	reg := NewRegistry("!")
	if err := RegisterBuiltins(reg, deps); err != nil {
		t.Fatalf("RegisterBuiltins failed: %v", err)
	}
	reg.Seal()

	return reg, deps
}

func invoke(t *testing.T, reg *Registry, user User, text string) *Result {
	t.Helper()

	def, rawArgs, ok := reg.Resolve(text)
	if !ok {
		t.Fatalf("Command did not resolve: %q", text)
	}

	inv := &Invocation{
		ID:       "inv-1",
		Command:  def.Name,
		Args:     SplitArgs(rawArgs),
		RawArgs:  rawArgs,
		User:     user,
		Channel:  Channel{ID: "chat-1"},
		Platform: PlatformTelegram,
	}

	res, err := def.Handler(context.Background(), inv)
	if err != nil {
		t.Fatalf("Handler %s failed: %v", def.Name, err)
	}
	return res
}

func TestPingCommand(t *testing.T) {
	reg, _ := newBuiltinDeps(t)

	res := invoke(t, reg, User{ID: "u1", Name: "alice", Role: RolePublic}, "!ping")
	if !strings.Contains(res.Text, "pong") {
		t.Errorf("Expected pong response, got %q", res.Text)
	}
	if !strings.Contains(res.Text, "completed: 42") {
		t.Errorf("Expected completed count in response, got %q", res.Text)
	}
}

func TestHelpFiltersByRoleAndPlatform(t *testing.T) {
	reg, _ := newBuiltinDeps(t)

	public := invoke(t, reg, User{ID: "u1", Name: "alice", Role: RolePublic}, "!help")
	if strings.Contains(public.Text, "!status") {
		t.Error("Public help should not list moderator commands")
	}
	if !strings.Contains(public.Text, "!ping") {
		t.Error("Public help should list ping")
	}

	mod := invoke(t, reg, User{ID: "u2", Name: "mod", Role: RoleBotModerator}, "!help")
	if !strings.Contains(mod.Text, "!status") {
		t.Error("Moderator help should list status")
	}
}

func TestHelpSingleCommand(t *testing.T) {
	reg, _ := newBuiltinDeps(t)

	res := invoke(t, reg, User{ID: "u1", Role: RolePublic}, "!help remind")
	if !strings.Contains(res.Text, "!remind") {
		t.Errorf("Expected remind usage, got %q", res.Text)
	}

	// Commands above the user's role look unknown
	res = invoke(t, reg, User{ID: "u1", Role: RolePublic}, "!help status")
	if !strings.Contains(res.Text, "Unknown command") {
		t.Errorf("Expected unknown command for hidden help, got %q", res.Text)
	}
}

func TestStatusCommand(t *testing.T) {
	reg, _ := newBuiltinDeps(t)

	res := invoke(t, reg, User{ID: "mod", Role: RoleBotModerator}, "!status")
	if !res.Safe {
		t.Error("Status is trusted and should keep its Safe flag")
	}
	for _, want := range []string{"Uptime", "Channels: telegram", "In-flight: 1", "Completed: 42", "Faulted: 2", "Guard entries: 3", "Bus sent:"} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("Status output missing %q: %q", want, res.Text)
		}
	}
}

func TestResetCooldownCommand(t *testing.T) {
	reg, deps := newBuiltinDeps(t)
	mod := User{ID: "mod", Role: RoleBotModerator}

	// Aliases resolve to the canonical command name before resetting
	res := invoke(t, reg, mod, "!resetcooldown commands u1")
	if !strings.Contains(res.Text, "help") {
		t.Errorf("Expected canonical name in response, got %q", res.Text)
	}

	cd := deps.Cooldowns.(*fakeCooldowns)
	if cd.calls != 1 {
		t.Fatalf("Expected 1 reset call, got %d", cd.calls)
	}
	if cd.platform != PlatformTelegram || cd.command != "help" || cd.userID != "u1" {
		t.Errorf("Unexpected reset key: %s/%s/%s", cd.platform, cd.command, cd.userID)
	}

	res = invoke(t, reg, mod, "!resetcooldown nosuchcommand u1")
	if !strings.Contains(res.Text, "Unknown command") {
		t.Errorf("Expected unknown command error, got %q", res.Text)
	}
	if cd.calls != 1 {
		t.Errorf("Unknown command should not reset anything, calls = %d", cd.calls)
	}

	res = invoke(t, reg, mod, "!resetcooldown ping")
	if !strings.Contains(res.Text, "Usage") {
		t.Errorf("Expected usage hint, got %q", res.Text)
	}
}

func TestAFKRoundTrip(t *testing.T) {
	reg, _ := newBuiltinDeps(t)
	user := User{ID: "u1", Name: "alice", Role: RolePublic}

	res := invoke(t, reg, user, "!afk grabbing lunch")
	if !strings.Contains(res.Text, "AFK") || !strings.Contains(res.Text, "grabbing lunch") {
		t.Errorf("Unexpected afk response: %q", res.Text)
	}

	res = invoke(t, reg, user, "!back")
	if !strings.Contains(res.Text, "Welcome back") {
		t.Errorf("Unexpected back response: %q", res.Text)
	}

	res = invoke(t, reg, user, "!back")
	if !strings.Contains(res.Text, "not AFK") {
		t.Errorf("Second back should report not AFK: %q", res.Text)
	}
}

func TestBackDropsDefaultProfile(t *testing.T) {
	reg, deps := newBuiltinDeps(t)
	ctx := context.Background()

	// A profile holding only the AFK flag disappears after back
	alice := User{ID: "u1", Name: "alice", Role: RolePublic}
	invoke(t, reg, alice, "!afk lunch")
	invoke(t, reg, alice, "!back")

	if _, ok, err := deps.Profiles.Get(ctx, PlatformTelegram, "u1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	} else if ok {
		t.Error("Expected default-only profile to be removed after back")
	}

	// A profile with a language preference survives
	bob := User{ID: "u2", Name: "bob", Role: RolePublic}
	invoke(t, reg, bob, "!lang ru")
	invoke(t, reg, bob, "!afk meeting")
	invoke(t, reg, bob, "!back")

	p, ok, err := deps.Profiles.Get(ctx, PlatformTelegram, "u2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || p.Language != "ru" {
		t.Errorf("Expected language preference to survive back, got %+v, ok=%v", p, ok)
	}
	if p.AFK {
		t.Error("Expected AFK flag cleared")
	}
}

func TestEconomyDailyAndBalance(t *testing.T) {
	reg, _ := newBuiltinDeps(t)
	user := User{ID: "u1", Name: "alice", Role: RolePublic}

	res := invoke(t, reg, user, "!balance")
	if !strings.Contains(res.Text, "0 coins") {
		t.Errorf("Expected empty balance, got %q", res.Text)
	}

	res = invoke(t, reg, user, "!daily")
	if !strings.Contains(res.Text, "100") {
		t.Errorf("Expected daily grant, got %q", res.Text)
	}

	res = invoke(t, reg, user, "!balance")
	if !strings.Contains(res.Text, "100 coins") {
		t.Errorf("Expected 100 coins after daily, got %q", res.Text)
	}
}

func TestEconomyGive(t *testing.T) {
	reg, _ := newBuiltinDeps(t)
	alice := User{ID: "u1", Name: "alice", Role: RolePublic}
	bob := User{ID: "u2", Name: "bob", Role: RolePublic}

	invoke(t, reg, alice, "!daily")

	res := invoke(t, reg, alice, "!give u2 40")
	if !strings.Contains(res.Text, "gave 40 coins") {
		t.Errorf("Unexpected give response: %q", res.Text)
	}

	res = invoke(t, reg, alice, "!balance")
	if !strings.Contains(res.Text, "60 coins") {
		t.Errorf("Expected 60 coins after give, got %q", res.Text)
	}
	res = invoke(t, reg, bob, "!balance")
	if !strings.Contains(res.Text, "40 coins") {
		t.Errorf("Expected 40 coins received, got %q", res.Text)
	}

	// Overdraw is rejected without changing balances
	res = invoke(t, reg, alice, "!give u2 1000")
	if !strings.Contains(res.Text, "not have enough") {
		t.Errorf("Expected insufficient funds, got %q", res.Text)
	}

	res = invoke(t, reg, alice, "!give u1 10")
	if !strings.Contains(res.Text, "yourself") {
		t.Errorf("Expected self-give rejection, got %q", res.Text)
	}

	res = invoke(t, reg, alice, "!give u2 -5")
	if !strings.Contains(res.Text, "positive") {
		t.Errorf("Expected negative amount rejection, got %q", res.Text)
	}
}

func TestRemindLifecycle(t *testing.T) {
	reg, _ := newBuiltinDeps(t)
	user := User{ID: "u1", Name: "alice", Role: RolePublic}

	res := invoke(t, reg, user, "!remind 1h water the plants")
	if !strings.Contains(res.Text, "Reminder") || !strings.Contains(res.Text, "1h0m0s") {
		t.Errorf("Unexpected remind response: %q", res.Text)
	}

	res = invoke(t, reg, user, "!remind list")
	if !strings.Contains(res.Text, "water the plants") {
		t.Errorf("Expected reminder in list, got %q", res.Text)
	}

	// Extract the short id shown by list
	lines := strings.Split(res.Text, "\n")
	if len(lines) < 2 {
		t.Fatalf("Unexpected list output: %q", res.Text)
	}
	shortID := strings.SplitN(lines[1], " ", 2)[0]

	res = invoke(t, reg, user, "!remind cancel "+shortID)
	if !strings.Contains(res.Text, "cancelled") {
		t.Errorf("Expected cancellation, got %q", res.Text)
	}

	res = invoke(t, reg, user, "!remind list")
	if !strings.Contains(res.Text, "no pending") {
		t.Errorf("Expected empty list after cancel, got %q", res.Text)
	}
}

func TestRemindRejectsBadInput(t *testing.T) {
	reg, _ := newBuiltinDeps(t)
	user := User{ID: "u1", Role: RolePublic}

	res := invoke(t, reg, user, "!remind nonsense text")
	if !strings.Contains(res.Text, "Duration") {
		t.Errorf("Expected duration error, got %q", res.Text)
	}

	res = invoke(t, reg, user, "!remind 10m")
	if !strings.Contains(res.Text, "empty") {
		t.Errorf("Expected empty text error, got %q", res.Text)
	}

	res = invoke(t, reg, user, "!remind 2000h too far")
	if !strings.Contains(res.Text, "30 days") {
		t.Errorf("Expected max delay error, got %q", res.Text)
	}
}

func TestRemindRecurring(t *testing.T) {
	reg, _ := newBuiltinDeps(t)
	user := User{ID: "u1", Name: "alice", Role: RolePublic}

	res := invoke(t, reg, user, "!remind every 1h stretch")
	if !strings.Contains(res.Text, "every 1h0m0s") {
		t.Errorf("Unexpected recurring response: %q", res.Text)
	}

	res = invoke(t, reg, user, "!remind list")
	if !strings.Contains(res.Text, "every 1h0m0s") || !strings.Contains(res.Text, "stretch") {
		t.Errorf("Expected recurring reminder in list, got %q", res.Text)
	}

	lines := strings.Split(res.Text, "\n")
	if len(lines) < 2 {
		t.Fatalf("Unexpected list output: %q", res.Text)
	}
	shortID := strings.SplitN(lines[1], " ", 2)[0]

	res = invoke(t, reg, user, "!remind cancel "+shortID)
	if !strings.Contains(res.Text, "cancelled") {
		t.Errorf("Expected cancellation, got %q", res.Text)
	}

	res = invoke(t, reg, user, "!remind every 5s hydrate")
	if !strings.Contains(res.Text, "once a minute") {
		t.Errorf("Expected minimum interval error, got %q", res.Text)
	}

	res = invoke(t, reg, user, "!remind every 1h")
	if !strings.Contains(res.Text, "empty") {
		t.Errorf("Expected empty text error, got %q", res.Text)
	}
}

func TestLangCommand(t *testing.T) {
	reg, deps := newBuiltinDeps(t)
	user := User{ID: "u1", Name: "alice", Role: RolePublic}

	res := invoke(t, reg, user, "!lang")
	if !strings.Contains(res.Text, "en") {
		t.Errorf("Expected default language, got %q", res.Text)
	}

	res = invoke(t, reg, user, "!lang es")
	if !strings.Contains(res.Text, "es") {
		t.Errorf("Expected language set, got %q", res.Text)
	}

	if got := deps.Profiles.Language(context.Background(), PlatformTelegram, "u1"); got != "es" {
		t.Errorf("Expected persisted language es, got %q", got)
	}

	res = invoke(t, reg, user, "!lang klingon")
	if !strings.Contains(res.Text, "Supported languages") {
		t.Errorf("Expected unsupported language message, got %q", res.Text)
	}
}
