// Package replay records skeleton output to pose sessions and plays stored
// sessions back onto a skeleton.
package replay

import (
	"fmt"
	"time"

	"github.com/lumen-motion/avatar.track/internal/monitoring"
	"github.com/lumen-motion/avatar.track/internal/rig"
	"github.com/lumen-motion/avatar.track/internal/storage"
)

// Recorder tracks the receiving signal and mirrors it into session
// boundaries: a session opens when frames start arriving and closes when the
// stream goes stale. Call Observe once per pipeline tick.
type Recorder struct {
	store  *storage.SessionStore
	avatar string

	sessionID string
	seq       int
}

// NewRecorder builds a recorder writing to the given store.
func NewRecorder(store *storage.SessionStore, avatar string) *Recorder {
	return &Recorder{store: store, avatar: avatar}
}

// SessionID returns the open session's id, or empty.
func (r *Recorder) SessionID() string { return r.sessionID }

// Observe records one tick. While receiving, the current skeleton pose is
// appended to the open session (opening one first if needed); when the
// stream goes stale the session is closed.
func (r *Recorder) Observe(receiving bool, skel *rig.Skeleton, now time.Time) error {
	if !receiving {
		if r.sessionID == "" {
			return nil
		}
		return r.Close(now)
	}

	if r.sessionID == "" {
		id, err := r.store.Begin(r.avatar, now)
		if err != nil {
			return fmt.Errorf("open recording session: %w", err)
		}
		r.sessionID = id
		r.seq = 0
		monitoring.Opsf("recording session %s started", id)
	}

	sample := CapturePose(skel, r.seq, now)
	if err := r.store.AppendPose(r.sessionID, sample); err != nil {
		return fmt.Errorf("append pose %d: %w", r.seq, err)
	}
	r.seq++
	return nil
}

// Close ends the open session, if any.
func (r *Recorder) Close(now time.Time) error {
	if r.sessionID == "" {
		return nil
	}
	id := r.sessionID
	r.sessionID = ""
	if err := r.store.End(id, now); err != nil {
		return fmt.Errorf("close recording session %s: %w", id, err)
	}
	monitoring.Opsf("recording session %s closed after %d poses", id, r.seq)
	return nil
}

// CapturePose snapshots the skeleton's root transform and every present
// bone's local rotation.
func CapturePose(skel *rig.Skeleton, seq int, at time.Time) storage.PoseSample {
	sample := storage.PoseSample{
		Seq:        seq,
		CapturedAt: at,
		Root:       skel.Root,
	}
	for i := 0; i < rig.BoneCount; i++ {
		bone := skel.Bone(rig.BoneID(i))
		if bone == nil {
			continue
		}
		sample.Bones = append(sample.Bones, storage.BoneRotation{
			Bone:     bone.ID,
			Rotation: bone.LocalRotation,
		})
	}
	return sample
}
