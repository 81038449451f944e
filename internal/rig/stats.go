package rig

import (
	"sync"
	"time"

	"github.com/lumen-motion/avatar.track/internal/monitoring"
)

// FrameStats tracks ingestion statistics with thread-safe operations.
type FrameStats struct {
	mu        sync.Mutex
	accepted  int64
	rejected  int64
	ticks     int64
	lastReset time.Time
}

// NewFrameStats creates a FrameStats instance.
func NewFrameStats() *FrameStats {
	return &FrameStats{lastReset: time.Now()}
}

// AddAccepted increments the accepted frame count.
func (fs *FrameStats) AddAccepted() {
	fs.mu.Lock()
	fs.accepted++
	fs.mu.Unlock()
}

// AddRejected increments the rejected (malformed) frame count.
func (fs *FrameStats) AddRejected() {
	fs.mu.Lock()
	fs.rejected++
	fs.mu.Unlock()
}

// AddTick increments the solver tick count.
func (fs *FrameStats) AddTick() {
	fs.mu.Lock()
	fs.ticks++
	fs.mu.Unlock()
}

// Snapshot returns the counters without resetting them.
func (fs *FrameStats) Snapshot() (accepted, rejected, ticks int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.accepted, fs.rejected, fs.ticks
}

// GetAndReset returns current counters and the interval they cover, then
// resets them.
func (fs *FrameStats) GetAndReset() (accepted, rejected, ticks int64, duration time.Duration) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := time.Now()
	duration = now.Sub(fs.lastReset)
	accepted, rejected, ticks = fs.accepted, fs.rejected, fs.ticks
	fs.accepted, fs.rejected, fs.ticks = 0, 0, 0
	fs.lastReset = now
	return
}

// LogStats emits a periodic rate line on the diag stream and resets.
func (fs *FrameStats) LogStats() {
	accepted, rejected, ticks, duration := fs.GetAndReset()
	if accepted == 0 && rejected == 0 {
		return
	}
	secs := duration.Seconds()
	if secs <= 0 {
		return
	}
	monitoring.Diagf("pose stats (/sec): %.1f frames, %.1f ticks, %d rejected over %v",
		float64(accepted)/secs, float64(ticks)/secs, rejected, duration.Round(time.Second))
}
