package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mikobot/pkg/commands"
	"mikobot/pkg/i18n"
)

func newTestEngine(t *testing.T, defs ...*commands.Definition) *Engine {
	t.Helper()

	registry := commands.NewRegistry("!")
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			t.Fatalf("Register %s failed: %v", def.Name, err)
		}
	}
	registry.Seal()

	log := testLogger(t)
	ledger := NewLedger()
	return New(
		log,
		registry,
		NewCooldownTracker(),
		NewUserGuard(log, time.Minute),
		ledger,
		NewDispatcher(log, ledger, 0),
		i18n.New(),
	)
}

func inbound(text string) Inbound {
	return Inbound{
		Text:     text,
		Platform: commands.PlatformTelegram,
		User:     commands.User{ID: "alice", Name: "alice", Role: commands.RolePublic, Language: "en"},
		Channel:  commands.Channel{ID: "chan1", Name: "general"},
	}
}

func pingDef(cooldown time.Duration) *commands.Definition {
	return &commands.Definition{
		Name:         "ping",
		UserCooldown: cooldown,
		Role:         commands.RolePublic,
		Handler: func(ctx context.Context, inv *commands.Invocation) (*commands.Result, error) {
			return &commands.Result{Text: "pong"}, nil
		},
	}
}

func TestHandleMessageResolutionMissIsSilent(t *testing.T) {
	e := newTestEngine(t, pingDef(0))

	for _, text := range []string{"hello there", "!unknown", "", "ping"} {
		res, err := e.HandleMessage(context.Background(), inbound(text))
		if err != nil {
			t.Errorf("HandleMessage(%q) errored: %v", text, err)
		}
		if res != nil {
			t.Errorf("HandleMessage(%q) should be a silent no-op, got %+v", text, res)
		}
	}
}

func TestHandleMessagePingCooldownCycle(t *testing.T) {
	e := newTestEngine(t, pingDef(5*time.Second))
	base := time.Now()
	e.cooldowns.now = fixedClock(base)

	res, err := e.HandleMessage(context.Background(), inbound("!ping"))
	if err != nil || res == nil {
		t.Fatalf("First ping failed: res=%v err=%v", res, err)
	}
	if res.Text != "pong" {
		t.Errorf("Expected pong, got %q", res.Text)
	}

	// Immediately again: rejected with a localized cooldown message.
	res, err = e.HandleMessage(context.Background(), inbound("!ping"))
	if err != nil || res == nil {
		t.Fatalf("Second ping failed: res=%v err=%v", res, err)
	}
	if res.Text == "pong" {
		t.Fatal("Second ping within cooldown must not execute")
	}
	if !strings.Contains(res.Text, "!ping") {
		t.Errorf("Cooldown message should name the command, got %q", res.Text)
	}

	// After the cooldown passes the command runs again.
	e.cooldowns.now = fixedClock(base.Add(5 * time.Second))
	res, _ = e.HandleMessage(context.Background(), inbound("!ping"))
	if res == nil || res.Text != "pong" {
		t.Fatalf("Third ping after cooldown should execute, got %v", res)
	}
}

func TestHandleMessageRoleDenialConsumesNothing(t *testing.T) {
	var executed atomic.Int32
	def := &commands.Definition{
		Name:         "purge",
		Role:         commands.RoleBotModerator,
		UserCooldown: time.Minute,
		Handler: func(ctx context.Context, inv *commands.Invocation) (*commands.Result, error) {
			executed.Add(1)
			return &commands.Result{Text: "purged"}, nil
		},
	}
	e := newTestEngine(t, def)

	res, err := e.HandleMessage(context.Background(), inbound("!purge"))
	if err != nil || res == nil {
		t.Fatalf("Denial should produce a result: res=%v err=%v", res, err)
	}
	if executed.Load() != 0 {
		t.Error("Denied command must not execute")
	}
	if e.guard.Len() != 0 {
		t.Error("Guard must never be acquired for a denied invocation")
	}

	// The denial did not consume the cooldown: a moderator in the
	// same window is admitted.
	mod := inbound("!purge")
	mod.User = commands.User{ID: "mod", Role: commands.RoleBotModerator, Language: "en"}
	res, _ = e.HandleMessage(context.Background(), mod)
	if res == nil || res.Text != "purged" {
		t.Fatalf("Moderator should be admitted, got %v", res)
	}
}

func TestHandleMessageFaultReleasesGuard(t *testing.T) {
	calls := atomic.Int32{}
	def := &commands.Definition{
		Name: "flaky",
		Handler: func(ctx context.Context, inv *commands.Invocation) (*commands.Result, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("backend unavailable")
			}
			return &commands.Result{Text: "recovered"}, nil
		},
	}
	e := newTestEngine(t, def)

	res, err := e.HandleMessage(context.Background(), inbound("!flaky"))
	if err != nil || res == nil {
		t.Fatalf("Fault should produce a result: res=%v err=%v", res, err)
	}
	if !res.Failed() {
		t.Fatal("Expected fault result")
	}
	if strings.Contains(res.Text, "backend unavailable") {
		t.Error("Internal error detail must not leak into chat text")
	}
	if e.ledger.Completed() != 0 {
		t.Errorf("Completed count must be unchanged after a fault, got %d", e.ledger.Completed())
	}

	// The guard was released: the next invocation proceeds without deadlock.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err = e.HandleMessage(ctx, inbound("!flaky"))
	if err != nil {
		t.Fatalf("Second invocation after fault failed: %v", err)
	}
	if res == nil || res.Text != "recovered" {
		t.Fatalf("Expected recovery, got %v", res)
	}
}

func TestHandleMessageSerializesSameUser(t *testing.T) {
	var inBody atomic.Int32
	var overlaps atomic.Int32
	def := &commands.Definition{
		Name: "work",
		Handler: func(ctx context.Context, inv *commands.Invocation) (*commands.Result, error) {
			if inBody.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(2 * time.Millisecond)
			inBody.Add(-1)
			return &commands.Result{Text: "ok"}, nil
		},
	}
	e := newTestEngine(t, def)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.HandleMessage(context.Background(), inbound("!work")); err != nil {
				t.Errorf("HandleMessage failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if overlaps.Load() != 0 {
		t.Errorf("Command bodies for the same user overlapped %d times", overlaps.Load())
	}
	if e.ledger.Completed() != 8 {
		t.Errorf("Expected 8 completions, got %d", e.ledger.Completed())
	}
}

func TestHandleMessagePlatformDenialLocalized(t *testing.T) {
	def := &commands.Definition{
		Name:      "embed",
		Platforms: []commands.Platform{commands.PlatformDiscord},
		Handler: func(ctx context.Context, inv *commands.Invocation) (*commands.Result, error) {
			return &commands.Result{Text: "rich"}, nil
		},
	}
	e := newTestEngine(t, def)

	in := inbound("!embed")
	in.User.Language = "es"
	res, err := e.HandleMessage(context.Background(), in)
	if err != nil || res == nil {
		t.Fatalf("Expected denial result: res=%v err=%v", res, err)
	}
	if !strings.Contains(res.Text, "telegram") {
		t.Errorf("Denial should name the platform, got %q", res.Text)
	}
	if !strings.Contains(res.Text, "disponible") {
		t.Errorf("Denial should be localized to es, got %q", res.Text)
	}
}
