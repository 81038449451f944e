package rig

import (
	"sync"
	"time"

	"github.com/lumen-motion/avatar.track/internal/timeutil"
)

// Watchdog tracks wall-clock time since the last accepted frame and exposes
// a debounced "receiving" signal. It carries no other side effects; external
// record/replay controllers and the locomotion smoothing reset both key off
// this one boolean.
type Watchdog struct {
	mu        sync.Mutex
	lastFrame time.Time
	timeout   time.Duration
}

// NewWatchdog creates a Watchdog with the given timeout, seeded with the
// current time so the receiving signal does not read false before the first
// frame has had a chance to arrive.
func NewWatchdog(timeout time.Duration, clock timeutil.Clock) *Watchdog {
	return &Watchdog{
		lastFrame: clock.Now(),
		timeout:   timeout,
	}
}

// FrameAccepted records now as the most recent accepted frame time.
func (w *Watchdog) FrameAccepted(now time.Time) {
	w.mu.Lock()
	w.lastFrame = now
	w.mu.Unlock()
}

// ReceivingAt reports whether a frame was accepted within the timeout as of
// now. The boundary is inclusive: exactly timeout since the last frame still
// counts as receiving.
func (w *Watchdog) ReceivingAt(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return now.Sub(w.lastFrame) <= w.timeout
}

// LastFrameAt returns the timestamp of the most recently accepted frame.
func (w *Watchdog) LastFrameAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastFrame
}
