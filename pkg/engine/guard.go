package engine

import (
	"context"
	"sync"
	"time"

	"mikobot/pkg/logger"

	"go.uber.org/zap"
)

// guardEntry is one per-user mutual-exclusion handle. sem is a
// one-slot semaphore; refs counts the holder plus any waiters so the
// sweep can tell an entry is still in use even while nobody holds it
// yet.
type guardEntry struct {
	sem      chan struct{}
	refs     int
	lastUsed time.Time
}

// UserGuard serializes command execution per platform-qualified user.
// Entries are created lazily on first use and evicted by a periodic
// sweep once they have been unheld and idle longer than the configured
// threshold. Held or awaited entries are never evicted.
type UserGuard struct {
	log     *logger.Logger
	mu      sync.Mutex
	entries map[string]*guardEntry
	idle    time.Duration

	// now is swapped in tests to control time.
	now func() time.Time
}

// NewUserGuard creates a guard with the given idle-eviction threshold.
func NewUserGuard(log *logger.Logger, idle time.Duration) *UserGuard {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &UserGuard{
		log:     log,
		entries: make(map[string]*guardEntry),
		idle:    idle,
		now:     time.Now,
	}
}

// Lease is a held per-user lock. Release must be called on every exit
// path; releasing twice is a programming error and panics like a double
// mutex unlock would.
type Lease struct {
	guard    *UserGuard
	key      string
	entry    *guardEntry
	released bool
	mu       sync.Mutex
}

// Acquire blocks until the caller holds the exclusive lease for key or
// ctx is done. Contended acquirers are not served in FIFO order; only
// exclusivity is guaranteed.
func (g *UserGuard) Acquire(ctx context.Context, key string) (*Lease, error) {
	g.mu.Lock()
	entry, ok := g.entries[key]
	if !ok {
		entry = &guardEntry{sem: make(chan struct{}, 1)}
		g.entries[key] = entry
	}
	entry.refs++
	g.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		return &Lease{guard: g, key: key, entry: entry}, nil
	case <-ctx.Done():
		g.mu.Lock()
		entry.refs--
		entry.lastUsed = g.now()
		g.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Release returns the lease. Safe to call exactly once.
func (l *Lease) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		panic("engine: lease released twice")
	}
	l.released = true
	l.mu.Unlock()

	<-l.entry.sem

	l.guard.mu.Lock()
	l.entry.refs--
	l.entry.lastUsed = l.guard.now()
	l.guard.mu.Unlock()
}

// Sweep removes entries that are unheld and idle past the threshold.
// Returns the number of evicted entries. The refs re-check under the
// map lock closes the race against a concurrent Acquire that already
// picked the entry up.
func (g *UserGuard) Sweep() int {
	cutoff := g.now().Add(-g.idle)

	g.mu.Lock()
	defer g.mu.Unlock()

	evicted := 0
	for key, entry := range g.entries {
		if entry.refs > 0 {
			continue
		}
		if entry.lastUsed.After(cutoff) {
			continue
		}
		delete(g.entries, key)
		evicted++
	}

	if evicted > 0 && g.log != nil {
		g.log.Debug("Swept idle user guards", zap.Int("evicted", evicted))
	}
	return evicted
}

// Len returns the number of live guard entries.
func (g *UserGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// RunSweeper runs periodic sweeps until ctx is done.
func (g *UserGuard) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
