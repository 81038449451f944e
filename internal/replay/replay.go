package replay

import (
	"context"
	"time"

	"github.com/lumen-motion/avatar.track/internal/rig"
	"github.com/lumen-motion/avatar.track/internal/storage"
)

// ApplySample writes one recorded sample onto a skeleton. Bones the rig
// lacks are skipped.
func ApplySample(skel *rig.Skeleton, sample storage.PoseSample) {
	skel.Root = sample.Root
	for _, b := range sample.Bones {
		if bone := skel.Bone(b.Bone); bone != nil {
			bone.LocalRotation = b.Rotation
		}
	}
}

// Run plays samples back in order, honouring the recorded inter-sample
// timing scaled by speed (1 is real time; higher is faster). apply is called
// once per sample. Cancelling the context stops the playback.
func Run(ctx context.Context, samples []storage.PoseSample, speed float64, apply func(storage.PoseSample)) error {
	if speed <= 0 {
		speed = 1
	}
	for i, sample := range samples {
		if i > 0 {
			wait := sample.CapturedAt.Sub(samples[i-1].CapturedAt)
			if wait > 0 {
				wait = time.Duration(float64(wait) / speed)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
		}
		apply(sample)
	}
	return nil
}
