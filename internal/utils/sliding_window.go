package utils

import (
	"sync"
	"time"
)

// SlidingWindow is a timestamp log that keeps hits no older than window
// relative to the time of the latest query.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

// Add records now and returns the number of hits in the window, the new one
// included. The hit is appended before pruning so it can never prune itself.
func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.hits = append(w.hits, now)
	w.pruneLocked(now)
	return len(w.hits)
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	return len(w.hits)
}

// pruneLocked drops hits with now-hit > window. Callers racing on the same
// window may append slightly out of order, so every entry is checked instead
// of cutting a sorted prefix.
func (w *SlidingWindow) pruneLocked(now time.Time) {
	kept := w.hits[:0]
	for _, hit := range w.hits {
		if now.Sub(hit) <= w.window {
			kept = append(kept, hit)
		}
	}
	for i := len(kept); i < len(w.hits); i++ {
		w.hits[i] = time.Time{}
	}
	w.hits = kept
}
