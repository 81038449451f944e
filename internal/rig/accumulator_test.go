package rig

import (
	"testing"

	"github.com/lumen-motion/avatar.track/internal/geom"
)

func TestAccumulatorExactAverage(t *testing.T) {
	// Constant input must average exactly, not approximately. Values with
	// short mantissas keep the sums representable.
	acc := NewAccumulator(2.0)
	v := geom.Vec{X: 1.5, Y: -2.25, Z: 0.5}

	const window = 4
	for i := 0; i < window; i++ {
		acc.Accumulate(LeftWrist, v)
	}

	avg, ok := acc.Flush(LeftWrist, window)
	if !ok {
		t.Fatal("expected a full window to flush")
	}
	want := geom.Vec{X: 3.0, Y: -4.5, Z: 1.0}
	if avg != want {
		t.Errorf("Flush = %+v, want exactly %+v", avg, want)
	}
}

func TestAccumulatorFlushResetsSlot(t *testing.T) {
	acc := NewAccumulator(1.0)
	acc.Accumulate(Nose, geom.Vec{X: 1})
	if _, ok := acc.Flush(Nose, 1); !ok {
		t.Fatal("expected flush")
	}
	if _, ok := acc.Flush(Nose, 1); ok {
		t.Error("slot must be empty immediately after a flush")
	}
}

func TestAccumulatorBelowWindowHolds(t *testing.T) {
	acc := NewAccumulator(1.0)
	acc.Accumulate(LeftKnee, geom.Vec{X: 2})
	acc.Accumulate(LeftKnee, geom.Vec{X: 2})

	if _, ok := acc.Flush(LeftKnee, 3); ok {
		t.Fatal("partial window must not flush")
	}

	// The partial sum must survive the failed flush.
	acc.Accumulate(LeftKnee, geom.Vec{X: 2})
	avg, ok := acc.Flush(LeftKnee, 3)
	if !ok || avg.X != 2 {
		t.Errorf("Flush = %+v ok=%v, want X=2", avg, ok)
	}
}

func TestAccumulatorWindowOnePassThrough(t *testing.T) {
	acc := NewAccumulator(1.0)
	v := geom.Vec{X: 0.125, Y: 7, Z: -3}
	acc.Accumulate(RightAnkle, v)
	avg, ok := acc.Flush(RightAnkle, 1)
	if !ok || avg != v {
		t.Errorf("window=1 should pass through unchanged, got %+v ok=%v", avg, ok)
	}
}

func TestAccumulatorSlotsIndependent(t *testing.T) {
	// A slow landmark must not stall a fast one.
	acc := NewAccumulator(1.0)
	acc.Accumulate(LeftWrist, geom.Vec{X: 1})
	acc.Accumulate(LeftWrist, geom.Vec{X: 1})
	acc.Accumulate(RightWrist, geom.Vec{X: 5})

	flushed := map[Landmark]geom.Vec{}
	acc.FlushAll(2, func(l Landmark, v geom.Vec) { flushed[l] = v })

	if len(flushed) != 1 {
		t.Fatalf("expected exactly one flushed slot, got %d", len(flushed))
	}
	if v, ok := flushed[LeftWrist]; !ok || v.X != 1 {
		t.Errorf("LeftWrist flush = %+v ok=%v", v, ok)
	}
}

func TestAccumulatorReset(t *testing.T) {
	acc := NewAccumulator(1.0)
	acc.Accumulate(Nose, geom.Vec{X: 9})
	acc.Reset()
	if _, ok := acc.Flush(Nose, 1); ok {
		t.Error("Reset must discard partial sums")
	}
}
