package rig

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lumen-motion/avatar.track/internal/geom"
)

// Accumulator buffers landmark samples between ticks as a per-landmark
// running sum and count, and releases the average once a slot has collected
// a full window of samples. It is the synchronization boundary between the
// ingestion goroutine(s) and the tick loop: writers call Accumulate under
// the slot lock, the tick loop calls Flush, and a sum/count pair is always
// observed whole.
//
// Values are taken as-is; range validation happens upstream in the frame
// parser.
type Accumulator struct {
	mu         sync.Mutex
	sums       [LandmarkCount]geom.Vec
	counts     [LandmarkCount]uint32
	multiplier float64
}

// NewAccumulator creates an Accumulator. multiplier scales every flushed
// average (source units -> scene units); zero means 1.
func NewAccumulator(multiplier float64) *Accumulator {
	if multiplier == 0 {
		multiplier = 1
	}
	return &Accumulator{multiplier: multiplier}
}

// Accumulate adds point into the slot for the given landmark.
func (a *Accumulator) Accumulate(l Landmark, point geom.Vec) {
	if !l.Valid() {
		return
	}
	a.mu.Lock()
	a.sums[l] = r3.Add(a.sums[l], point)
	a.counts[l]++
	a.mu.Unlock()
}

// AccumulateFrame adds a whole frame of points, one per landmark, under a
// single lock acquisition.
func (a *Accumulator) AccumulateFrame(points *[LandmarkCount]geom.Vec) {
	a.mu.Lock()
	for i := range points {
		a.sums[i] = r3.Add(a.sums[i], points[i])
		a.counts[i]++
	}
	a.mu.Unlock()
}

// Flush returns the averaged position for the landmark, scaled by the
// configured multiplier, when the slot has collected at least windowSize
// samples, and resets the slot. Otherwise it leaves the slot untouched and
// reports ok = false, so slower landmarks never stall faster ones. A
// windowSize of 1 (or less) degenerates to unfiltered pass-through.
func (a *Accumulator) Flush(l Landmark, windowSize int) (avg geom.Vec, ok bool) {
	if !l.Valid() {
		return geom.Vec{}, false
	}
	if windowSize < 1 {
		windowSize = 1
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked(l, windowSize)
}

// FlushAll flushes every landmark slot that has a full window, invoking fn
// for each released average. Slots below the window are left accumulating.
func (a *Accumulator) FlushAll(windowSize int, fn func(Landmark, geom.Vec)) {
	if windowSize < 1 {
		windowSize = 1
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < LandmarkCount; i++ {
		if avg, ok := a.flushLocked(Landmark(i), windowSize); ok {
			fn(Landmark(i), avg)
		}
	}
}

func (a *Accumulator) flushLocked(l Landmark, windowSize int) (geom.Vec, bool) {
	count := a.counts[l]
	if count < uint32(windowSize) {
		return geom.Vec{}, false
	}
	avg := r3.Scale(a.multiplier/float64(count), a.sums[l])
	a.sums[l] = geom.Vec{}
	a.counts[l] = 0
	return avg, true
}

// Reset clears all slots, discarding any partial sums.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	for i := range a.sums {
		a.sums[i] = geom.Vec{}
		a.counts[i] = 0
	}
	a.mu.Unlock()
}
