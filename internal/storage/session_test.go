package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lumen-motion/avatar.track/internal/geom"
	"github.com/lumen-motion/avatar.track/internal/rig"
)

func samplePose(seq int, at time.Time) PoseSample {
	return PoseSample{
		Seq:        seq,
		CapturedAt: at,
		Root: rig.RootTransform{
			Position: geom.Vec{X: 0.5, Z: float64(seq) * -0.01},
			Rotation: geom.AxisAngle(geom.Vec{Y: 1}, 0.1*float64(seq)),
		},
		Bones: []BoneRotation{
			{Bone: rig.BoneHips, Rotation: geom.Identity()},
			{Bone: rig.BoneLeftUpperArm, Rotation: geom.AxisAngle(geom.Vec{X: 1}, 0.3)},
		},
	}
}

func TestSessionRecordAndReplay(t *testing.T) {
	store := NewSessionStore(openTestDB(t))
	start := time.Date(2026, 4, 2, 14, 0, 0, 0, time.UTC)

	id, err := store.Begin("primary", start)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	want := []PoseSample{
		samplePose(0, start),
		samplePose(1, start.Add(33*time.Millisecond)),
		samplePose(2, start.Add(66*time.Millisecond)),
	}
	for _, sample := range want {
		if err := store.AppendPose(id, sample); err != nil {
			t.Fatalf("AppendPose %d: %v", sample.Seq, err)
		}
	}
	if err := store.End(id, start.Add(100*time.Millisecond)); err != nil {
		t.Fatalf("End: %v", err)
	}

	got, err := store.Poses(id)
	if err != nil {
		t.Fatalf("Poses: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("replayed poses mismatch (-recorded +loaded):\n%s", diff)
	}

	info, err := store.Session(id)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if info.Poses != 3 || info.Avatar != "primary" {
		t.Errorf("info = %+v, want 3 poses for primary", info)
	}
	if info.EndedAt == nil || !info.EndedAt.Equal(start.Add(100*time.Millisecond)) {
		t.Errorf("ended_at = %v", info.EndedAt)
	}
}

func TestSessionsListNewestFirst(t *testing.T) {
	store := NewSessionStore(openTestDB(t))
	start := time.Date(2026, 4, 2, 14, 0, 0, 0, time.UTC)

	older, err := store.Begin("primary", start)
	if err != nil {
		t.Fatalf("Begin older: %v", err)
	}
	newer, err := store.Begin("primary", start.Add(time.Hour))
	if err != nil {
		t.Fatalf("Begin newer: %v", err)
	}

	list, err := store.Sessions()
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("listed %d sessions, want 2", len(list))
	}
	if list[0].ID != newer || list[1].ID != older {
		t.Errorf("order = %s, %s; want newest first", list[0].ID, list[1].ID)
	}
	if list[0].EndedAt != nil {
		t.Error("open session should have no end time")
	}
}

func TestSessionEndMissing(t *testing.T) {
	store := NewSessionStore(openTestDB(t))
	if err := store.End("no-such-session", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("End missing = %v, want ErrNotFound", err)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	store := NewSessionStore(openTestDB(t))
	start := time.Date(2026, 4, 2, 14, 0, 0, 0, time.UTC)

	id, err := store.Begin("primary", start)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := store.AppendPose(id, samplePose(0, start)); err != nil {
		t.Fatalf("AppendPose: %v", err)
	}
	if err := store.DeleteSession(id); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	if _, err := store.Session(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted session still present: %v", err)
	}
	poses, err := store.Poses(id)
	if err != nil {
		t.Fatalf("Poses after delete: %v", err)
	}
	if len(poses) != 0 {
		t.Errorf("cascade left %d poses behind", len(poses))
	}
}
