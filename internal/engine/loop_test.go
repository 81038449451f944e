package engine

import (
	"context"
	"testing"
	"time"

	"github.com/lumen-motion/avatar.track/internal/geom"
	"github.com/lumen-motion/avatar.track/internal/rig"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	avatar := rig.NewAvatar(rig.NewHumanoidSkeleton(), rig.AvatarConfig{}, nil)
	loop := New(Config{Avatar: avatar, Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return loop
}

func TestLoopTicks(t *testing.T) {
	loop := startLoop(t)

	deadline := time.After(5 * time.Second)
	for loop.Status().Ticks == 0 {
		select {
		case <-deadline:
			t.Fatal("loop never ticked")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestLoopDoRunsOnLoopGoroutine(t *testing.T) {
	loop := startLoop(t)

	ran := false
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := loop.Do(ctx, func() { ran = true }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !ran {
		t.Error("Do returned before the command ran")
	}
}

func TestLoopCalibrateThroughCommands(t *testing.T) {
	loop := startLoop(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// One distinct anchor pair is enough for a partial calibration.
	points := make([]geom.Vec, rig.LandmarkCount)
	points[rig.LeftShoulder] = geom.Vec{X: 0.2, Y: 1.45}
	points[rig.LeftElbow] = geom.Vec{X: 0.25, Y: 1.15}
	if err := loop.SubmitPose(points); err != nil {
		t.Fatalf("SubmitPose: %v", err)
	}

	// Wait until the tick loop has flushed positions.
	deadline := time.After(5 * time.Second)
	for {
		set, err := loop.Landmarks(ctx)
		if err != nil {
			t.Fatalf("Landmarks: %v", err)
		}
		if len(set.Landmarks) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("positions never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	snap, err := loop.Calibrate(ctx)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if snap.Entry(rig.BoneLeftUpperArm) == nil {
		t.Error("calibration missing the one resolvable bone")
	}
	if loop.Status().State != "calibrated" {
		t.Errorf("state = %q", loop.Status().State)
	}
}

func TestLoopCalibrateFailsWithoutPositions(t *testing.T) {
	loop := startLoop(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := loop.Calibrate(ctx); err == nil {
		t.Error("calibration must fail before any landmark has a position")
	}
}

func TestLoopDoHonoursContext(t *testing.T) {
	avatar := rig.NewAvatar(rig.NewHumanoidSkeleton(), rig.AvatarConfig{}, nil)
	loop := New(Config{Avatar: avatar, Interval: time.Hour})

	// Loop not running: Do must give up when the context expires.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := loop.Do(ctx, func() {}); err == nil {
		t.Error("Do against a stopped loop should fail with the context error")
	}
}
