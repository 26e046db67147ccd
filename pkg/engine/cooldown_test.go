package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mikobot/pkg/commands"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestCooldownSingleAdmissionUnderConcurrency(t *testing.T) {
	tracker := NewCooldownTracker()
	base := time.Now()
	tracker.now = fixedClock(base)

	const attempts = 64
	var admitted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := tracker.TryAdmit(commands.PlatformTelegram, "ping", "alice", "chan1", 5*time.Second, 0); ok {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := admitted.Load(); got != 1 {
		t.Errorf("Expected exactly 1 admission, got %d", got)
	}
}

func TestCooldownExpiry(t *testing.T) {
	tracker := NewCooldownTracker()
	base := time.Now()
	tracker.now = fixedClock(base)

	if _, ok := tracker.TryAdmit(commands.PlatformTelegram, "ping", "alice", "chan1", 5*time.Second, 0); !ok {
		t.Fatal("First attempt should be admitted")
	}

	tracker.now = fixedClock(base.Add(3 * time.Second))
	retryAfter, ok := tracker.TryAdmit(commands.PlatformTelegram, "ping", "alice", "chan1", 5*time.Second, 0)
	if ok {
		t.Fatal("Attempt within cooldown should be rejected")
	}
	if retryAfter != 2*time.Second {
		t.Errorf("Expected retry after 2s, got %v", retryAfter)
	}

	// Elapsed exactly equal to the cooldown counts as expired.
	tracker.now = fixedClock(base.Add(5 * time.Second))
	if _, ok := tracker.TryAdmit(commands.PlatformTelegram, "ping", "alice", "chan1", 5*time.Second, 0); !ok {
		t.Fatal("Attempt at exact cooldown boundary should be admitted")
	}
}

func TestCooldownRejectionDoesNotConsume(t *testing.T) {
	tracker := NewCooldownTracker()
	base := time.Now()
	tracker.now = fixedClock(base)

	// alice admits, stamping both her user key and the shared channel key.
	if _, ok := tracker.TryAdmit(commands.PlatformDiscord, "roll", "alice", "general", time.Second, 10*time.Second); !ok {
		t.Fatal("First attempt should be admitted")
	}

	// bob is rejected on the channel key halfway through.
	tracker.now = fixedClock(base.Add(5 * time.Second))
	if _, ok := tracker.TryAdmit(commands.PlatformDiscord, "roll", "bob", "general", time.Second, 10*time.Second); ok {
		t.Fatal("bob should be rejected on the channel cooldown")
	}

	// bob's rejection must not have refreshed the channel timestamp:
	// carol is admitted once the original window expires.
	tracker.now = fixedClock(base.Add(10 * time.Second))
	if _, ok := tracker.TryAdmit(commands.PlatformDiscord, "roll", "carol", "general", time.Second, 10*time.Second); !ok {
		t.Fatal("carol should be admitted after the original channel window")
	}
}

func TestCooldownAllOrNothing(t *testing.T) {
	tracker := NewCooldownTracker()
	base := time.Now()
	tracker.now = fixedClock(base)

	if _, ok := tracker.TryAdmit(commands.PlatformSlack, "post", "alice", "general", 2*time.Second, 30*time.Second); !ok {
		t.Fatal("First attempt should be admitted")
	}

	// alice again after her user cooldown expired but inside the
	// channel window: rejected, and her user key must stay untouched.
	tracker.now = fixedClock(base.Add(3 * time.Second))
	if _, ok := tracker.TryAdmit(commands.PlatformSlack, "post", "alice", "general", 2*time.Second, 30*time.Second); ok {
		t.Fatal("alice should be rejected on the channel cooldown")
	}

	// In a different channel the user key governs alone; had the
	// rejected attempt stamped it, this would now fail.
	if _, ok := tracker.TryAdmit(commands.PlatformSlack, "post", "alice", "other", 2*time.Second, 0); !ok {
		t.Fatal("alice should be admitted in another channel")
	}
}

func TestCooldownSubjectsAreIndependent(t *testing.T) {
	tracker := NewCooldownTracker()
	base := time.Now()
	tracker.now = fixedClock(base)

	// A user id equal to a channel id must not collide.
	if _, ok := tracker.TryAdmit(commands.PlatformTelegram, "ping", "42", "", 5*time.Second, 0); !ok {
		t.Fatal("User-keyed attempt should be admitted")
	}
	if _, ok := tracker.TryAdmit(commands.PlatformTelegram, "ping", "", "42", 0, 5*time.Second); !ok {
		t.Fatal("Channel-keyed attempt with same id should be admitted")
	}

	// Platforms are independent keyspaces too.
	if _, ok := tracker.TryAdmit(commands.PlatformDiscord, "ping", "42", "", 5*time.Second, 0); !ok {
		t.Fatal("Same user id on another platform should be admitted")
	}
}

func TestCooldownZeroDurationAlwaysAdmits(t *testing.T) {
	tracker := NewCooldownTracker()
	for i := 0; i < 10; i++ {
		if _, ok := tracker.TryAdmit(commands.PlatformTelegram, "help", "alice", "chan1", 0, 0); !ok {
			t.Fatal("Zero cooldown should always admit")
		}
	}
}

func TestCooldownReset(t *testing.T) {
	tracker := NewCooldownTracker()
	base := time.Now()
	tracker.now = fixedClock(base)

	tracker.TryAdmit(commands.PlatformTelegram, "ping", "alice", "", time.Hour, 0)
	if _, ok := tracker.TryAdmit(commands.PlatformTelegram, "ping", "alice", "", time.Hour, 0); ok {
		t.Fatal("Second attempt should be rejected")
	}

	tracker.Reset(commands.PlatformTelegram, "ping", "alice")
	if _, ok := tracker.TryAdmit(commands.PlatformTelegram, "ping", "alice", "", time.Hour, 0); !ok {
		t.Fatal("Attempt after reset should be admitted")
	}
}
