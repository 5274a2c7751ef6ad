package antinuke

import (
	"sync"
	"time"

	"sentinel-antinuke/internal/utils"
)

const DefaultWindow = 60 * time.Second

type windowKey struct {
	module  ModuleID
	guildID string
	actorID string
}

// ActionWindow tracks recent action timestamps per (module, guild, actor).
// The map lock only guards lookup; each key has its own window lock.
type ActionWindow struct {
	mu      sync.Mutex
	span    time.Duration
	windows map[windowKey]*utils.SlidingWindow
}

func NewActionWindow(span time.Duration) *ActionWindow {
	if span <= 0 {
		span = DefaultWindow
	}
	return &ActionWindow{span: span, windows: make(map[windowKey]*utils.SlidingWindow)}
}

// RecordAndCount appends now to the key's log, prunes entries older than the
// span and returns the resulting count, the new entry included.
func (w *ActionWindow) RecordAndCount(module ModuleID, guildID, actorID string, now time.Time) int {
	return w.get(windowKey{module: module, guildID: guildID, actorID: actorID}, true).Add(now)
}

// Count prunes and returns the key's current count without recording.
func (w *ActionWindow) Count(module ModuleID, guildID, actorID string, now time.Time) int {
	window := w.get(windowKey{module: module, guildID: guildID, actorID: actorID}, false)
	if window == nil {
		return 0
	}
	return window.Count(now)
}

// ResetGuild forgets every window belonging to guildID.
func (w *ActionWindow) ResetGuild(guildID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key := range w.windows {
		if key.guildID == guildID {
			delete(w.windows, key)
		}
	}
}

func (w *ActionWindow) get(key windowKey, create bool) *utils.SlidingWindow {
	w.mu.Lock()
	defer w.mu.Unlock()
	window := w.windows[key]
	if window == nil && create {
		window = utils.NewSlidingWindow(w.span)
		w.windows[key] = window
	}
	return window
}
