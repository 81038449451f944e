// Package engine runs the pipeline's tick loop on a single goroutine and
// marshals control-plane requests onto it, so the skeleton only ever sees
// one writer.
package engine

import (
	"context"
	"time"

	"github.com/lumen-motion/avatar.track/internal/geom"
	"github.com/lumen-motion/avatar.track/internal/monitoring"
	"github.com/lumen-motion/avatar.track/internal/replay"
	"github.com/lumen-motion/avatar.track/internal/rig"
	"github.com/lumen-motion/avatar.track/internal/timeutil"
)

// Config wires a loop.
type Config struct {
	Avatar   *rig.Avatar
	Interval time.Duration
	Recorder *replay.Recorder // optional
	Clock    timeutil.Clock   // nil: wall clock
}

// Loop owns the tick goroutine. Everything that touches the skeleton funnels
// through Run's select: the ticker, and commands submitted via Do.
type Loop struct {
	avatar   *rig.Avatar
	interval time.Duration
	recorder *replay.Recorder
	clock    timeutil.Clock
	cmds     chan func()
}

// New builds a loop; Run starts it.
func New(cfg Config) *Loop {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Loop{
		avatar:   cfg.Avatar,
		interval: cfg.Interval,
		recorder: cfg.Recorder,
		clock:    clock,
		cmds:     make(chan func()),
	}
}

// Avatar exposes the pipeline for operations that are safe from any
// goroutine (frame submission, status reads).
func (l *Loop) Avatar() *rig.Avatar { return l.avatar }

// Run ticks the pipeline until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	monitoring.Opsf("tick loop started at %v per tick", l.interval)
	for {
		select {
		case <-ctx.Done():
			if l.recorder != nil {
				if err := l.recorder.Close(l.clock.Now()); err != nil {
					monitoring.Opsf("closing recording session: %v", err)
				}
			}
			return ctx.Err()
		case fn := <-l.cmds:
			fn()
		case <-ticker.C:
			now := l.clock.Now()
			l.avatar.Tick(now)
			if l.recorder != nil {
				if err := l.recorder.Observe(l.avatar.IsReceiving(), l.avatar.Skeleton(), now); err != nil {
					monitoring.Opsf("recorder: %v", err)
				}
			}
		}
	}
}

// Do runs fn on the tick goroutine and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case l.cmds <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports the pipeline summary.
func (l *Loop) Status() rig.Status { return l.avatar.Status() }

// Calibration returns the installed snapshot, or nil.
func (l *Loop) Calibration() *rig.CalibrationSnapshot { return l.avatar.Calibration() }

// Calibrate captures a fresh snapshot on the tick goroutine and returns it.
func (l *Loop) Calibrate(ctx context.Context) (*rig.CalibrationSnapshot, error) {
	var calErr error
	if err := l.Do(ctx, func() { calErr = l.avatar.Calibrate() }); err != nil {
		return nil, err
	}
	if calErr != nil {
		return nil, calErr
	}
	return l.avatar.Calibration(), nil
}

// LoadCalibration installs a persisted snapshot on the tick goroutine.
func (l *Loop) LoadCalibration(ctx context.Context, snap *rig.CalibrationSnapshot) error {
	var loadErr error
	if err := l.Do(ctx, func() { loadErr = l.avatar.LoadCalibration(snap) }); err != nil {
		return err
	}
	return loadErr
}

// SubmitPose feeds a decoded landmark array; safe from any goroutine.
func (l *Loop) SubmitPose(points []geom.Vec) error {
	return l.avatar.ApplyPose(points)
}

// LandmarkSet is a read-out of the current smoothed tracking state.
type LandmarkSet struct {
	Landmarks map[string]geom.Vec `json:"landmarks"`
	Virtual   map[string]geom.Vec `json:"virtual"`
}

// Landmarks snapshots the smoothed landmark and virtual joint positions on
// the tick goroutine.
func (l *Loop) Landmarks(ctx context.Context) (LandmarkSet, error) {
	set := LandmarkSet{
		Landmarks: map[string]geom.Vec{},
		Virtual:   map[string]geom.Vec{},
	}
	err := l.Do(ctx, func() {
		for i := 0; i < rig.LandmarkCount; i++ {
			lm := rig.Landmark(i)
			if pos, ok := l.avatar.LandmarkPosition(lm); ok {
				set.Landmarks[lm.String()] = pos
			}
		}
		for i := 0; i < rig.VirtualJointCount; i++ {
			vj := rig.VirtualJoint(i)
			if pos, ok := l.avatar.VirtualJointPosition(vj); ok {
				set.Virtual[vj.String()] = pos
			}
		}
	})
	return set, err
}
