package engine

import (
	"hash/fnv"
	"sync"
	"time"

	"mikobot/pkg/commands"
)

// subjectKind separates the two independent cooldown keyspaces.
type subjectKind byte

const (
	subjectUser subjectKind = iota
	subjectChannel
)

// cooldownKey identifies one tracked cooldown record.
type cooldownKey struct {
	kind     subjectKind
	platform commands.Platform
	subject  string
	command  string
}

const cooldownShards = 32

type cooldownShard struct {
	mu   sync.Mutex
	last map[cooldownKey]time.Time
}

// CooldownTracker records last-admitted timestamps per (user, command)
// and (channel, command) key. Admission is all-or-nothing across both
// keys: a rejected attempt never updates either timestamp. The maps are
// sharded so concurrent callers for unrelated keys never contend on a
// single lock.
type CooldownTracker struct {
	shards [cooldownShards]cooldownShard

	// now is swapped in tests to control time.
	now func() time.Time
}

// NewCooldownTracker creates an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	t := &CooldownTracker{now: time.Now}
	for i := range t.shards {
		t.shards[i].last = make(map[cooldownKey]time.Time)
	}
	return t
}

// TryAdmit decides whether an invocation may run now. On success the
// current time is stored for both keys atomically with the decision, so
// two concurrent callers within the same window cannot both pass. On
// rejection it returns the longest remaining wait and updates nothing.
// A zero cooldown duration disables tracking for that subject.
// Elapsed time exactly equal to the cooldown counts as expired.
func (t *CooldownTracker) TryAdmit(platform commands.Platform, command, userID, channelID string, userCooldown, channelCooldown time.Duration) (time.Duration, bool) {
	type check struct {
		key      cooldownKey
		cooldown time.Duration
	}

	checks := make([]check, 0, 2)
	if userCooldown > 0 && userID != "" {
		checks = append(checks, check{
			key:      cooldownKey{kind: subjectUser, platform: platform, subject: userID, command: command},
			cooldown: userCooldown,
		})
	}
	if channelCooldown > 0 && channelID != "" {
		checks = append(checks, check{
			key:      cooldownKey{kind: subjectChannel, platform: platform, subject: channelID, command: command},
			cooldown: channelCooldown,
		})
	}
	if len(checks) == 0 {
		return 0, true
	}

	// Lock the involved shards in index order so two invocations
	// touching the same pair of shards cannot deadlock.
	indexes := make([]int, 0, 2)
	for _, c := range checks {
		idx := shardIndex(c.key)
		dup := false
		for _, seen := range indexes {
			if seen == idx {
				dup = true
				break
			}
		}
		if !dup {
			indexes = append(indexes, idx)
		}
	}
	if len(indexes) == 2 && indexes[0] > indexes[1] {
		indexes[0], indexes[1] = indexes[1], indexes[0]
	}
	for _, idx := range indexes {
		t.shards[idx].mu.Lock()
	}
	defer func() {
		for i := len(indexes) - 1; i >= 0; i-- {
			t.shards[indexes[i]].mu.Unlock()
		}
	}()

	now := t.now()

	var retryAfter time.Duration
	for _, c := range checks {
		if last, ok := t.shards[shardIndex(c.key)].last[c.key]; ok {
			remaining := c.cooldown - now.Sub(last)
			if remaining > retryAfter {
				retryAfter = remaining
			}
		}
	}
	if retryAfter > 0 {
		return retryAfter, false
	}

	for _, c := range checks {
		t.shards[shardIndex(c.key)].last[c.key] = now
	}
	return 0, true
}

// Reset clears the cooldown for one user-scoped key. Backs the
// moderator resetcooldown command; not part of the admission path.
func (t *CooldownTracker) Reset(platform commands.Platform, command, userID string) {
	key := cooldownKey{kind: subjectUser, platform: platform, subject: userID, command: command}
	shard := &t.shards[shardIndex(key)]
	shard.mu.Lock()
	delete(shard.last, key)
	shard.mu.Unlock()
}

func shardIndex(key cooldownKey) int {
	h := fnv.New32a()
	h.Write([]byte{byte(key.kind)})
	h.Write([]byte(key.platform))
	h.Write([]byte(key.subject))
	h.Write([]byte(key.command))
	return int(h.Sum32() % cooldownShards)
}
