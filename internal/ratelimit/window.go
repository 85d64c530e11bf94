package ratelimit

import (
	"time"

	"github.com/oicur0t/ratelog/pkg/clock"
)

// Window is a token budget with a single reset tick.
// Once at least one full window has passed since the last reset, the budget
// goes back to limit in one step; unused budget never carries over.
type Window struct {
	clock     clock.Clock
	limit     int
	window    time.Duration
	lastCheck time.Time
	remaining int
}

// NewWindow creates a window limiter with a full budget starting now
func NewWindow(clk clock.Clock, limit int, window time.Duration) *Window {
	return &Window{
		clock:     clk,
		limit:     limit,
		window:    window,
		lastCheck: clk.Now(),
		remaining: limit,
	}
}

// Allow admits one line if the current window still has budget
func (w *Window) Allow() bool {
	w.tick(w.clock.Now())

	if w.remaining > 0 {
		w.remaining--
		return true
	}

	return false
}

// Remaining returns the budget left, applying a pending reset first
func (w *Window) Remaining() int {
	w.tick(w.clock.Now())
	return w.remaining
}

// Reset refills the budget and starts a new window now
func (w *Window) Reset() {
	w.remaining = w.limit
	w.lastCheck = w.clock.Now()
}

// Limit returns the per-window budget
func (w *Window) Limit() int {
	return w.limit
}

func (w *Window) tick(now time.Time) {
	if now.Sub(w.lastCheck) >= w.window {
		w.remaining = w.limit
		w.lastCheck = now
	}
}
