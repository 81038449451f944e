package rig

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lumen-motion/avatar.track/internal/geom"
)

// Locomotion translates the scalar forward/back delta and hip drift into
// root displacement. Two independent channels:
//
//   - forward/back: dead-zoned, exponentially smoothed, applied along the
//     character's facing direction only on ticks where a fresh delta cleared
//     the dead zone. The smoothing runs every tick regardless, so a missing
//     sample decays the value instead of holding it.
//   - lateral/depth drift: the raw XZ displacement of the virtual hip
//     between consecutive ticks, scaled down and added directly to world
//     position.
type Locomotion struct {
	// DeadZone is the minimum |delta| accepted. The boundary is inclusive:
	// a delta of exactly DeadZone is accepted; anything strictly below is
	// zeroed and marked not-updated.
	DeadZone float64

	// SmoothFactor is the per-tick blend toward the raw value, in (0, 1].
	SmoothFactor float64

	// Speed converts the smoothed delta into displacement per second.
	Speed float64

	// DriftScale scales raw hip XZ displacement into world translation.
	DriftScale float64

	// DepthScale converts mid-hip depth change into a derived delta when
	// the source does not supply one.
	DepthScale float64

	raw      float64
	smoothed float64
	updated  bool

	prevDepth    float64
	hasPrevDepth bool

	prevHip    geom.Vec
	hasPrevHip bool
}

// SubmitDelta feeds one raw forward/back delta through the dead zone.
// Returns whether the value was accepted. Rejected values reset the pending
// raw input to zero so the smoother decays.
func (l *Locomotion) SubmitDelta(raw float64) bool {
	if math.Abs(raw) < l.DeadZone {
		l.raw = 0
		return false
	}
	l.raw = raw
	l.updated = true
	return true
}

// DeriveDelta produces a forward/back delta from consecutive mid-hip depth
// samples, for sources that do not supply one explicitly. The first sample
// only primes the history.
func (l *Locomotion) DeriveDelta(midHipDepth float64) (float64, bool) {
	if !l.hasPrevDepth {
		l.prevDepth = midHipDepth
		l.hasPrevDepth = true
		return 0, false
	}
	delta := (midHipDepth - l.prevDepth) * l.DepthScale
	l.prevDepth = midHipDepth
	return delta, true
}

// Step advances the smoother by one tick and returns the root displacement
// for the forward/back channel. forward is the character's current facing
// direction. Movement is applied only on ticks where a new delta was
// accepted; the smoother itself always advances, decaying toward zero when
// recent inputs were rejected.
func (l *Locomotion) Step(forward geom.Vec, dt float64) geom.Vec {
	l.smoothed = geom.Lerp(l.smoothed, l.raw, l.SmoothFactor)

	if !l.updated {
		return geom.Vec{}
	}
	l.updated = false

	return r3.Scale(-math.Abs(l.smoothed)*l.Speed*dt, forward)
}

// HipDrift returns the world translation for this tick's hip drift channel:
// the raw XZ displacement of the virtual hip since the previous tick, scaled
// by DriftScale. The vertical component is never translated.
func (l *Locomotion) HipDrift(hip geom.Vec) geom.Vec {
	if !l.hasPrevHip {
		l.prevHip = hip
		l.hasPrevHip = true
		return geom.Vec{}
	}
	d := r3.Sub(hip, l.prevHip)
	l.prevHip = hip
	return geom.Vec{X: d.X * l.DriftScale, Z: d.Z * l.DriftScale}
}

// Reset clears the smoother and history, used when the stream goes quiet so
// a stale delta cannot shove the character when frames resume.
func (l *Locomotion) Reset() {
	l.raw = 0
	l.smoothed = 0
	l.updated = false
	l.hasPrevDepth = false
	l.hasPrevHip = false
}

// Smoothed returns the current smoothed delta. Not synchronized; callers
// off the tick goroutine read the per-tick published copy instead.
func (l *Locomotion) Smoothed() float64 { return l.smoothed }
