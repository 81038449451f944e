package rig

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lumen-motion/avatar.track/internal/geom"
	"github.com/lumen-motion/avatar.track/internal/monitoring"
	"github.com/lumen-motion/avatar.track/internal/timeutil"
)

// CalibrationState is the explicit lifecycle of the retargeting engine.
type CalibrationState int32

const (
	// Uncalibrated: no snapshot installed, the solver idles.
	Uncalibrated CalibrationState = iota
	// Calibrating: a snapshot is being assembled this tick.
	Calibrating
	// Calibrated: a snapshot is installed; the solver runs once the settle
	// delay after capture has elapsed.
	Calibrated
)

// String returns the state name.
func (s CalibrationState) String() string {
	switch s {
	case Uncalibrated:
		return "uncalibrated"
	case Calibrating:
		return "calibrating"
	case Calibrated:
		return "calibrated"
	}
	return "unknown"
}

// AvatarConfig carries the tuning knobs for one avatar pipeline. Zero
// values fall back to the defaults noted per field.
type AvatarConfig struct {
	// WindowSize is the accumulation window per landmark (default 1:
	// unfiltered pass-through).
	WindowSize int
	// PositionMultiplier scales flushed averages into scene units
	// (default 1).
	PositionMultiplier float64
	// Timeout is the watchdog stale threshold (default 500ms).
	Timeout time.Duration
	// PositionRate is the exponential approach rate of landmark positions
	// toward flushed targets, 1/s (default 30).
	PositionRate float64
	// SolverRate is the shared bone-orientation approach rate, 1/s
	// (default 12).
	SolverRate float64
	// SettleDelay holds the solver off after a calibration pass
	// (default 250ms).
	SettleDelay time.Duration
	// FootTracking enables the foot/toe bone pair.
	FootTracking bool

	// Locomotion knobs; see Locomotion for semantics.
	DeadZone     float64 // default 0.05
	SmoothFactor float64 // default 0.2
	Speed        float64 // default 1.5
	DriftScale   float64 // default 0.1
	DepthScale   float64 // default 1.0
}

func (c *AvatarConfig) withDefaults() AvatarConfig {
	out := *c
	if out.WindowSize < 1 {
		out.WindowSize = 1
	}
	if out.PositionMultiplier == 0 {
		out.PositionMultiplier = 1
	}
	if out.Timeout == 0 {
		out.Timeout = 500 * time.Millisecond
	}
	if out.PositionRate == 0 {
		out.PositionRate = 30
	}
	if out.SolverRate == 0 {
		out.SolverRate = 12
	}
	if out.SettleDelay == 0 {
		out.SettleDelay = 250 * time.Millisecond
	}
	if out.DeadZone == 0 {
		out.DeadZone = 0.05
	}
	if out.SmoothFactor == 0 {
		out.SmoothFactor = 0.2
	}
	if out.Speed == 0 {
		out.Speed = 1.5
	}
	if out.DriftScale == 0 {
		out.DriftScale = 0.1
	}
	if out.DepthScale == 0 {
		out.DepthScale = 1.0
	}
	return out
}

// Avatar is one end-to-end pipeline instance: frames in, bone orientations
// out. Frame submission is safe from any goroutine; Tick, Calibrate, and
// skeleton reads must stay on the goroutine that owns the skeleton.
type Avatar struct {
	cfg    AvatarConfig
	clock  timeutil.Clock
	acc    *Accumulator
	wd     *Watchdog
	skel   *Skeleton
	solver Solver
	loco   Locomotion
	stats  *FrameStats

	metrics *Metrics // optional

	snap  atomic.Pointer[CalibrationSnapshot]
	state atomic.Int32

	// Float64bits of the smoothed locomotion delta, published once per
	// tick so Status never reads the smoother mid-write.
	smoothedDelta atomic.Uint64

	mu           sync.Mutex // guards pendingDelta only
	pendingDelta *float64

	// Tick-goroutine state below.
	targets   [LandmarkCount]geom.Vec
	hasTarget [LandmarkCount]bool
	positions [LandmarkCount]geom.Vec
	hasPos    [LandmarkCount]bool
	virtual   [VirtualJointCount]geom.Vec

	resumeAt     time.Time
	lastTick     time.Time
	hasTicked    bool
	wasReceiving bool
}

// NewAvatar wires a pipeline around an externally-owned skeleton.
func NewAvatar(skel *Skeleton, cfg AvatarConfig, clock timeutil.Clock) *Avatar {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	resolved := cfg.withDefaults()
	a := &Avatar{
		cfg:    resolved,
		clock:  clock,
		acc:    NewAccumulator(resolved.PositionMultiplier),
		wd:     NewWatchdog(resolved.Timeout, clock),
		skel:   skel,
		solver: Solver{Rate: resolved.SolverRate},
		loco: Locomotion{
			DeadZone:     resolved.DeadZone,
			SmoothFactor: resolved.SmoothFactor,
			Speed:        resolved.Speed,
			DriftScale:   resolved.DriftScale,
			DepthScale:   resolved.DepthScale,
		},
		stats: NewFrameStats(),
	}
	a.state.Store(int32(Uncalibrated))
	return a
}

// SetMetrics attaches Prometheus instruments. Call before the first frame.
func (a *Avatar) SetMetrics(m *Metrics) { a.metrics = m }

// Stats exposes the ingestion counters.
func (a *Avatar) Stats() *FrameStats { return a.stats }

// Skeleton returns the skeleton this avatar writes into.
func (a *Avatar) Skeleton() *Skeleton { return a.skel }

// SubmitFrame is the single ingestion entry point: one decoded frame of 33
// points, an optional forward/back delta, and its arrival timestamp.
func (a *Avatar) SubmitFrame(f Frame) {
	a.acc.AccumulateFrame(&f.Points)
	ts := f.Timestamp
	if ts.IsZero() {
		ts = a.clock.Now()
	}
	a.wd.FrameAccepted(ts)

	if f.ForwardDelta != nil {
		d := *f.ForwardDelta
		a.mu.Lock()
		a.pendingDelta = &d
		a.mu.Unlock()
	}

	a.stats.AddAccepted()
	if a.metrics != nil {
		a.metrics.FramesAccepted.Inc()
	}
}

// SubmitRaw validates and decodes a flat scalar array, then submits it.
// Malformed arrays are dropped with a warning and a counter bump; no state
// is mutated.
func (a *Avatar) SubmitRaw(values []float64, ts time.Time) error {
	f, err := FrameFromFloats(values, ts)
	if err != nil {
		a.stats.AddRejected()
		if a.metrics != nil {
			a.metrics.FramesRejected.WithLabelValues(RejectMalformed).Inc()
		}
		monitoring.Opsf("dropping frame: %v", err)
		return err
	}
	a.SubmitFrame(f)
	return nil
}

// RejectRaw records a frame a transport dropped before it could decode a
// scalar array (unparseable wire bytes). Safe from any goroutine.
func (a *Avatar) RejectRaw() {
	a.stats.AddRejected()
	if a.metrics != nil {
		a.metrics.FramesRejected.WithLabelValues(RejectParse).Inc()
	}
}

// ApplyPose is the alternate ingestion path for sources that already
// deliver decoded landmark arrays. Points beyond the 33rd are ignored;
// fewer than 33 is a malformed frame.
func (a *Avatar) ApplyPose(points []geom.Vec) error {
	if len(points) < LandmarkCount {
		a.stats.AddRejected()
		if a.metrics != nil {
			a.metrics.FramesRejected.WithLabelValues(RejectMalformed).Inc()
		}
		monitoring.Opsf("dropping pose: %d points, need %d", len(points), LandmarkCount)
		return fmt.Errorf("%w, got %d points", ErrMalformedFrame, len(points))
	}
	var f Frame
	copy(f.Points[:], points[:LandmarkCount])
	a.SubmitFrame(f)
	return nil
}

// IsReceiving reports whether frames arrived within the watchdog timeout.
func (a *Avatar) IsReceiving() bool {
	return a.wd.ReceivingAt(a.clock.Now())
}

// State returns the calibration lifecycle state.
func (a *Avatar) State() CalibrationState {
	return CalibrationState(a.state.Load())
}

// Calibration returns the installed snapshot, or nil.
func (a *Avatar) Calibration() *CalibrationSnapshot {
	return a.snap.Load()
}

// LandmarkPosition returns the smoothed position of a landmark, if it has
// produced one.
func (a *Avatar) LandmarkPosition(l Landmark) (geom.Vec, bool) {
	if !l.Valid() || !a.hasPos[l] {
		return geom.Vec{}, false
	}
	return a.positions[l], true
}

// VirtualJointPosition returns the synthesized joint position, valid once
// its constituent landmarks have positions.
func (a *Avatar) VirtualJointPosition(v VirtualJoint) (geom.Vec, bool) {
	if !v.Valid() {
		return geom.Vec{}, false
	}
	switch v {
	case VirtualNeck:
		if !a.hasPos[LeftShoulder] || !a.hasPos[RightShoulder] {
			return geom.Vec{}, false
		}
	case VirtualHip:
		if !a.hasPos[LeftHip] || !a.hasPos[RightHip] {
			return geom.Vec{}, false
		}
	}
	return a.virtual[v], true
}

// AnchorPosition implements AnchorSource over the smoothed landmark and
// virtual joint tables.
func (a *Avatar) AnchorPosition(anchor Anchor) (geom.Vec, bool) {
	switch anchor.Kind {
	case AnchorLandmark:
		return a.LandmarkPosition(Landmark(anchor.Index))
	case AnchorVirtual:
		return a.VirtualJointPosition(VirtualJoint(anchor.Index))
	}
	return geom.Vec{}, false
}

// Calibrate captures and installs a fresh calibration snapshot from the
// current smoothed positions and bone rotations. Re-running replaces the
// prior set atomically. Must be called from the tick goroutine.
func (a *Avatar) Calibrate() error {
	now := a.clock.Now()
	a.state.Store(int32(Calibrating))

	snap := Calibrate(a.skel, a, a.cfg.FootTracking, now)
	if len(snap.Entries) == 0 {
		a.state.Store(int32(Uncalibrated))
		return fmt.Errorf("calibration captured no bones: no stable landmark positions yet")
	}

	a.snap.Store(snap)
	a.resumeAt = now.Add(a.cfg.SettleDelay)
	a.state.Store(int32(Calibrated))
	if a.metrics != nil {
		a.metrics.Calibrations.Inc()
	}
	return nil
}

// LoadCalibration installs a persisted snapshot, skipping live capture.
// The snapshot's anchor references are reused verbatim.
func (a *Avatar) LoadCalibration(snap *CalibrationSnapshot) error {
	if snap == nil || len(snap.Entries) == 0 {
		return fmt.Errorf("empty calibration snapshot")
	}
	for _, e := range snap.Entries {
		if !e.Bone.Valid() {
			return fmt.Errorf("calibration references unknown bone %d", int(e.Bone))
		}
	}
	a.snap.Store(snap)
	a.resumeAt = a.clock.Now().Add(a.cfg.SettleDelay)
	a.state.Store(int32(Calibrated))
	monitoring.Opsf("loaded calibration with %d bones", len(snap.Entries))
	return nil
}

// Tick runs one synchronous pipeline pass: flush accumulated landmarks,
// smooth positions, synthesize virtual joints, solve bone orientations, and
// translate locomotion. Cost is bounded by the fixed landmark and bone
// counts. Must run on the goroutine that owns the skeleton.
func (a *Avatar) Tick(now time.Time) {
	start := time.Now()

	var dt float64
	if a.hasTicked {
		dt = now.Sub(a.lastTick).Seconds()
		if dt < 0 {
			dt = 0
		}
	}
	a.lastTick = now
	a.hasTicked = true

	receiving := a.wd.ReceivingAt(now)
	if a.wasReceiving && !receiving {
		// Stream went quiet: drop smoothing history so stale motion cannot
		// shove the character when frames resume.
		a.loco.Reset()
		monitoring.Opsf("frame stream stale: watchdog timeout elapsed")
	}
	a.wasReceiving = receiving
	if a.metrics != nil {
		if receiving {
			a.metrics.Receiving.Set(1)
		} else {
			a.metrics.Receiving.Set(0)
		}
	}

	// Release averaged landmark targets; each slot flushes independently.
	a.acc.FlushAll(a.cfg.WindowSize, func(l Landmark, avg geom.Vec) {
		a.targets[l] = avg
		a.hasTarget[l] = true
	})

	// Approach targets exponentially instead of snapping, so a large
	// window cannot produce visible stepping.
	alpha := geom.ApproachFactor(a.cfg.PositionRate, dt)
	for i := 0; i < LandmarkCount; i++ {
		if !a.hasTarget[i] {
			continue
		}
		if !a.hasPos[i] {
			a.positions[i] = a.targets[i]
			a.hasPos[i] = true
			continue
		}
		a.positions[i] = geom.LerpVec(a.positions[i], a.targets[i], alpha)
	}

	a.virtual = SynthesizeVirtualJoints(&a.positions)

	a.tickLocomotionInput(receiving)

	if CalibrationState(a.state.Load()) == Calibrated && !now.Before(a.resumeAt) {
		snap := a.snap.Load()
		st := a.solver.Step(a.skel, snap, a, dt)
		if a.metrics != nil {
			a.metrics.BonesUpdated.Add(float64(st.BonesUpdated))
			a.metrics.BonesSkipped.Add(float64(st.BonesSkipped))
		}

		forward := a.skel.Root.Forward()
		a.skel.Root.Position = r3.Add(a.skel.Root.Position, a.loco.Step(forward, dt))
		if hip, ok := a.VirtualJointPosition(VirtualHip); ok {
			a.skel.Root.Position = r3.Add(a.skel.Root.Position, a.loco.HipDrift(hip))
		}
	}

	a.smoothedDelta.Store(math.Float64bits(a.loco.Smoothed()))

	a.stats.AddTick()
	if a.metrics != nil {
		a.metrics.Ticks.Inc()
		a.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}
}

// tickLocomotionInput feeds the forward/back channel: an explicit source
// delta when one arrived since the last tick, otherwise a delta derived
// from mid-hip depth drift while the stream is live.
func (a *Avatar) tickLocomotionInput(receiving bool) {
	a.mu.Lock()
	pending := a.pendingDelta
	a.pendingDelta = nil
	a.mu.Unlock()

	switch {
	case pending != nil:
		a.loco.SubmitDelta(*pending)
	case receiving:
		if hip, ok := a.VirtualJointPosition(VirtualHip); ok {
			if delta, ok := a.loco.DeriveDelta(hip.Z); ok {
				a.loco.SubmitDelta(delta)
			}
		}
	}
}

// Status is the API-facing summary of the pipeline.
type Status struct {
	State           string  `json:"state"`
	Receiving       bool    `json:"receiving"`
	FramesAccepted  int64   `json:"frames_accepted"`
	FramesRejected  int64   `json:"frames_rejected"`
	Ticks           int64   `json:"ticks"`
	CalibratedBones int     `json:"calibrated_bones"`
	SmoothedDelta   float64 `json:"smoothed_delta"`
}

// Status reports the current pipeline state. Safe to call from any
// goroutine; it reads only counters and atomics. The smoothed delta is the
// value published by the most recent tick.
func (a *Avatar) Status() Status {
	accepted, rejected, ticks := a.stats.Snapshot()
	var bones int
	if snap := a.snap.Load(); snap != nil {
		bones = len(snap.Entries)
	}
	return Status{
		State:           a.State().String(),
		Receiving:       a.IsReceiving(),
		FramesAccepted:  accepted,
		FramesRejected:  rejected,
		Ticks:           ticks,
		CalibratedBones: bones,
		SmoothedDelta:   math.Float64frombits(a.smoothedDelta.Load()),
	}
}
