package rig

import (
	"testing"
	"time"

	"github.com/lumen-motion/avatar.track/internal/timeutil"
)

func TestWatchdogSeededAtStartup(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	wd := NewWatchdog(2*time.Second, clock)

	// No frame has arrived, but the seed keeps the signal true at first.
	if !wd.ReceivingAt(start.Add(time.Second)) {
		t.Error("seeded watchdog should report receiving before the first timeout")
	}
	if wd.ReceivingAt(start.Add(3 * time.Second)) {
		t.Error("seed must still expire after the timeout")
	}
}

func TestWatchdogBoundaryInclusive(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	wd := NewWatchdog(2*time.Second, timeutil.NewMockClock(start))

	wd.FrameAccepted(start)
	if !wd.ReceivingAt(start.Add(2 * time.Second)) {
		t.Error("exactly the timeout must still count as receiving")
	}
	if wd.ReceivingAt(start.Add(2*time.Second + time.Nanosecond)) {
		t.Error("one tick past the timeout must read stale")
	}
}

func TestWatchdogFrameRefreshes(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	wd := NewWatchdog(time.Second, timeutil.NewMockClock(start))

	later := start.Add(5 * time.Second)
	wd.FrameAccepted(later)
	if wd.ReceivingAt(start.Add(2 * time.Second)) {
		// Clock between the seed and the refresh: the refresh is in the
		// future, so this reads as not-yet-elapsed and stays true. The
		// derivation only ever uses now - lastFrame.
		t.Log("frame timestamps ahead of now keep the signal true")
	}
	if !wd.ReceivingAt(later.Add(time.Second)) {
		t.Error("refreshed watchdog should be receiving")
	}
	if got := wd.LastFrameAt(); !got.Equal(later) {
		t.Errorf("LastFrameAt = %v, want %v", got, later)
	}
}
