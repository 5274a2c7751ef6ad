package antinuke

import (
	"context"
	"sync"
	"time"
)

const DefaultDebounce = 5 * time.Second

// Debouncer latches a (module, guild) pair so only one punishment pass runs
// per latch lifetime. Latches expire on their own; there is no release.
type Debouncer interface {
	TryAcquire(ctx context.Context, module ModuleID, guildID string) bool
}

type latchKey struct {
	module  ModuleID
	guildID string
}

type MemoryDebouncer struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   Clock
	latches map[latchKey]time.Time
}

func NewMemoryDebouncer(ttl time.Duration) *MemoryDebouncer {
	if ttl <= 0 {
		ttl = DefaultDebounce
	}
	return &MemoryDebouncer{ttl: ttl, clock: realClock{}, latches: make(map[latchKey]time.Time)}
}

func (d *MemoryDebouncer) WithClock(clock Clock) {
	d.clock = clock
}

func (d *MemoryDebouncer) TTL() time.Duration { return d.ttl }

func (d *MemoryDebouncer) TryAcquire(_ context.Context, module ModuleID, guildID string) bool {
	key := latchKey{module: module, guildID: guildID}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	if expires, ok := d.latches[key]; ok && now.Before(expires) {
		return false
	}
	d.latches[key] = now.Add(d.ttl)
	d.sweepLocked(now)
	return true
}

// Held reports whether a live latch exists for the pair.
func (d *MemoryDebouncer) Held(module ModuleID, guildID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	expires, ok := d.latches[latchKey{module: module, guildID: guildID}]
	return ok && d.clock.Now().Before(expires)
}

func (d *MemoryDebouncer) sweepLocked(now time.Time) {
	if len(d.latches) < 256 {
		return
	}
	for key, expires := range d.latches {
		if !now.Before(expires) {
			delete(d.latches, key)
		}
	}
}
