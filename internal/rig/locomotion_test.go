package rig

import (
	"math"
	"testing"

	"github.com/lumen-motion/avatar.track/internal/geom"
)

func testLocomotion() *Locomotion {
	return &Locomotion{
		DeadZone:     0.05,
		SmoothFactor: 0.2,
		Speed:        1.5,
		DriftScale:   0.1,
		DepthScale:   1.0,
	}
}

func TestDeadZoneBoundaryInclusive(t *testing.T) {
	l := testLocomotion()

	if !l.SubmitDelta(0.05) {
		t.Error("a delta of exactly the dead zone must be accepted")
	}
	if !l.SubmitDelta(-0.05) {
		t.Error("the boundary is inclusive on both signs")
	}
	if l.SubmitDelta(0.0499) {
		t.Error("a delta strictly inside the dead zone must be rejected")
	}
	if l.SubmitDelta(-0.0499) {
		t.Error("a negative delta strictly inside the dead zone must be rejected")
	}
}

func TestRejectedDeltaZeroesRawInput(t *testing.T) {
	l := testLocomotion()
	forward := geom.Vec{Z: 1}

	l.SubmitDelta(1.0)
	l.Step(forward, 1.0/30)
	if l.Smoothed() == 0 {
		t.Fatal("accepted delta should raise the smoothed value")
	}

	// A rejected submit resets the raw input, so the smoother decays toward
	// zero instead of holding the stale value.
	before := l.Smoothed()
	l.SubmitDelta(0.001)
	l.Step(forward, 1.0/30)
	after := l.Smoothed()
	if math.Abs(after) >= math.Abs(before) {
		t.Errorf("smoothed value did not decay: %v then %v", before, after)
	}
	if want := before * (1 - l.SmoothFactor); math.Abs(after-want) > 1e-12 {
		t.Errorf("decay = %v, want %v", after, want)
	}
}

func TestMovementOnlyOnAcceptedTicks(t *testing.T) {
	l := testLocomotion()
	forward := geom.Vec{Z: 1}

	// No accepted delta yet: the smoother may advance but nothing moves.
	if d := l.Step(forward, 1.0/30); d != (geom.Vec{}) {
		t.Errorf("moved without an accepted delta: %+v", d)
	}

	l.SubmitDelta(1.0)
	d := l.Step(forward, 1.0/30)
	if d == (geom.Vec{}) {
		t.Fatal("accepted delta must move the root")
	}
	// Displacement opposes the facing direction and scales with speed and dt.
	want := -math.Abs(0.2) * 1.5 / 30
	if math.Abs(d.Z-want) > 1e-12 || d.X != 0 || d.Y != 0 {
		t.Errorf("displacement = %+v, want Z=%v", d, want)
	}

	// The accepted flag is consumed: the next tick is stationary again even
	// though the smoothed value is still nonzero.
	if d := l.Step(forward, 1.0/30); d != (geom.Vec{}) {
		t.Errorf("flag not consumed, moved again: %+v", d)
	}
}

func TestDisplacementDirectionIgnoresDeltaSign(t *testing.T) {
	l := testLocomotion()
	forward := geom.Vec{Z: 1}

	l.SubmitDelta(-1.0)
	d := l.Step(forward, 1.0/30)
	if d.Z >= 0 {
		t.Errorf("negative delta must still move against the facing: %+v", d)
	}
}

func TestDeriveDeltaPrimesOnFirstSample(t *testing.T) {
	l := testLocomotion()

	if _, ok := l.DeriveDelta(2.0); ok {
		t.Error("first depth sample must only prime the history")
	}
	delta, ok := l.DeriveDelta(2.3)
	if !ok || math.Abs(delta-0.3) > 1e-12 {
		t.Errorf("derived delta = %v ok=%v, want 0.3", delta, ok)
	}
}

func TestHipDriftXZOnly(t *testing.T) {
	l := testLocomotion()

	if d := l.HipDrift(geom.Vec{X: 1, Y: 1, Z: 1}); d != (geom.Vec{}) {
		t.Fatalf("first hip sample must only prime the history, got %+v", d)
	}
	d := l.HipDrift(geom.Vec{X: 2, Y: 5, Z: 0.5})
	want := geom.Vec{X: 0.1, Z: -0.05}
	if math.Abs(d.X-want.X) > 1e-12 || math.Abs(d.Z-want.Z) > 1e-12 || d.Y != 0 {
		t.Errorf("drift = %+v, want %+v", d, want)
	}
}

func TestLocomotionReset(t *testing.T) {
	l := testLocomotion()
	forward := geom.Vec{Z: 1}

	l.SubmitDelta(1.0)
	l.Step(forward, 1.0/30)
	l.DeriveDelta(3.0)
	l.HipDrift(geom.Vec{X: 1})

	l.Reset()
	if l.Smoothed() != 0 {
		t.Error("Reset must clear the smoothed value")
	}
	if d := l.Step(forward, 1.0/30); d != (geom.Vec{}) {
		t.Errorf("Reset must clear the accepted flag, moved %+v", d)
	}
	if _, ok := l.DeriveDelta(5.0); ok {
		t.Error("Reset must clear the depth history")
	}
	if d := l.HipDrift(geom.Vec{X: 9}); d != (geom.Vec{}) {
		t.Errorf("Reset must clear the hip history, got %+v", d)
	}
}
