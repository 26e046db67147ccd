package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"mikobot/pkg/commands"
)

// LedgerEntry describes one in-flight invocation.
type LedgerEntry struct {
	ID       string
	Command  string
	Platform commands.Platform
	UserID   string
	Started  time.Time
}

// Ledger tracks in-flight invocations and completed-command counters.
// It exists for introspection (status commands, logs), not correctness.
type Ledger struct {
	mu       sync.RWMutex
	inflight map[string]LedgerEntry

	completed atomic.Uint64
	faulted   atomic.Uint64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{inflight: make(map[string]LedgerEntry)}
}

// Begin records the start of an invocation.
func (l *Ledger) Begin(inv *commands.Invocation, started time.Time) {
	l.mu.Lock()
	l.inflight[inv.ID] = LedgerEntry{
		ID:       inv.ID,
		Command:  inv.Command,
		Platform: inv.Platform,
		UserID:   inv.User.ID,
		Started:  started,
	}
	l.mu.Unlock()
}

// End removes the in-flight entry and bumps the matching counter.
// Only successful completions increment the completed count.
func (l *Ledger) End(invocationID string, ok bool) {
	l.mu.Lock()
	delete(l.inflight, invocationID)
	l.mu.Unlock()

	if ok {
		l.completed.Add(1)
	} else {
		l.faulted.Add(1)
	}
}

// InFlight returns the number of currently executing invocations.
func (l *Ledger) InFlight() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.inflight)
}

// Completed returns the total number of successfully completed commands.
func (l *Ledger) Completed() uint64 {
	return l.completed.Load()
}

// Faulted returns the total number of faulted commands.
func (l *Ledger) Faulted() uint64 {
	return l.faulted.Load()
}

// Snapshot returns a copy of the in-flight entries.
func (l *Ledger) Snapshot() []LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]LedgerEntry, 0, len(l.inflight))
	for _, e := range l.inflight {
		entries = append(entries, e)
	}
	return entries
}
