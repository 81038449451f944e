package rig

import (
	"github.com/lumen-motion/avatar.track/internal/geom"
)

// Spine blend constants. The quarter weighting keeps hip-twist and tilt
// noise from over-rotating the torso, and the tilt-cubed / twist-squared
// compounding exaggerates the torso's response relative to raw hip motion.
// The exponents and weights are load-bearing: changing them visibly changes
// how the character carries its torso.
const (
	// SpineBlendWeight is the fractional slerp applied to the raw twist and
	// tilt directions before they enter the chain composition.
	SpineBlendWeight = 0.25

	// RootFlattenY scales the vertical component of the hip-twist direction
	// before it steers the root, so vertical noise cannot spin the
	// character.
	RootFlattenY = 0.5
)

// Solver computes per-tick bone orientations from a calibration snapshot
// and the current anchor positions. Every target orientation is approached
// by exponential interpolation at Rate rather than snapped, which suppresses
// per-frame landmark jitter.
type Solver struct {
	// Rate is the shared exponential approach rate in 1/s. Zero disables
	// blending (targets are written directly).
	Rate float64
}

// SolveStats summarises one solver pass.
type SolveStats struct {
	BonesUpdated int
	BonesSkipped int
}

// Step runs one retargeting pass: limb bones independently, then the spine
// chain jointly, then the root-facing blend. Degenerate directions and
// missing bones skip only the affected bone for this tick.
func (sv *Solver) Step(s *Skeleton, snap *CalibrationSnapshot, src AnchorSource, dt float64) SolveStats {
	var stats SolveStats
	if snap == nil {
		return stats
	}

	alpha := geom.ApproachFactor(sv.Rate, dt)
	if sv.Rate <= 0 {
		alpha = 1
	}

	for i := range snap.Entries {
		e := &snap.Entries[i]
		if e.Kind != EntryLimb {
			continue
		}
		if sv.stepLimb(s, e, src, alpha) {
			stats.BonesUpdated++
		} else {
			stats.BonesSkipped++
		}
	}

	u, sk := sv.stepSpineChain(s, snap, src, alpha)
	stats.BonesUpdated += u
	stats.BonesSkipped += sk
	return stats
}

// stepLimb aligns one limb bone with its live anchor direction:
// delta = rotationBetween(bind direction, current direction), and the new
// local rotation approaches delta composed onto the bind rotation.
func (sv *Solver) stepLimb(s *Skeleton, e *CalibrationEntry, src AnchorSource, alpha float64) bool {
	bone := s.Bone(e.Bone)
	if bone == nil {
		return false
	}
	dir, ok := currentDirection(e, src)
	if !ok {
		return false
	}
	delta, ok := geom.RotationBetween(e.InitialDirection, dir)
	if !ok {
		return false
	}
	target := geom.Mul(delta, e.InitialRotation)
	bone.LocalRotation = geom.Slerp(bone.LocalRotation, target, alpha)
	return true
}

// stepSpineChain solves hips, spine, chest, and head together. Order
// matters: the hips delta feeds the spine, the spine delta feeds the chest.
//
//	twist  = rotBetween(bindTwist, slerp(bindTwist, liveTwist, 1/4))
//	tilt   = rotBetween(bindTilt,  slerp(bindTilt,  liveTilt,  1/4))
//	hips   = (tilt^3 * twist^2) * bindHips
//	spine  = (tilt^3 * twist^2) * twist * tilt * bindSpine
//	chest  = spineDelta * twist^2 * bindChest
//	head   = tilt * twist * headTurn * bindHead
//
// A chain member whose live direction is degenerate contributes the
// identity, so the rest of the chain still solves.
func (sv *Solver) stepSpineChain(s *Skeleton, snap *CalibrationSnapshot, src AnchorSource, alpha float64) (updated, skipped int) {
	hipsE := snap.spineEntry(SpineHipsTwist)
	spineE := snap.spineEntry(SpineUpDown)
	chestE := snap.spineEntry(SpineChest)
	headE := snap.spineEntry(SpineHead)

	twist := partialRotation(hipsE, src, SpineBlendWeight)
	tilt := partialRotation(spineE, src, SpineBlendWeight)

	headTurn := geom.Identity()
	if headE != nil {
		if dir, ok := currentDirection(headE, src); ok {
			if q, ok := geom.RotationBetween(headE.InitialDirection, dir); ok {
				headTurn = q
			}
		}
	}

	hipsDelta := geom.Mul(geom.PowInt(tilt, 3), geom.PowInt(twist, 2))
	spineDelta := geom.Mul(geom.Mul(hipsDelta, twist), tilt)
	chestDelta := geom.Mul(spineDelta, geom.PowInt(twist, 2))
	headDelta := geom.Mul(geom.Mul(tilt, twist), headTurn)

	apply := func(e *CalibrationEntry, delta geom.Quat) {
		if e == nil {
			return
		}
		bone := s.Bone(e.Bone)
		if bone == nil {
			skipped++
			return
		}
		target := geom.Mul(delta, e.InitialRotation)
		bone.LocalRotation = geom.Slerp(bone.LocalRotation, target, alpha)
		updated++
	}
	apply(hipsE, hipsDelta)
	apply(spineE, spineDelta)
	apply(chestE, chestDelta)
	apply(headE, headDelta)

	sv.stepRootFacing(s, snap, hipsE, src, alpha)
	return updated, skipped
}

// stepRootFacing slowly turns the whole root toward where the hips face,
// using a vertically-flattened hip-twist direction so the character tracks
// the subject's facing without vertical noise spinning it.
func (sv *Solver) stepRootFacing(s *Skeleton, snap *CalibrationSnapshot, hipsE *CalibrationEntry, src AnchorSource, alpha float64) {
	if hipsE == nil {
		return
	}
	dir, ok := currentDirection(hipsE, src)
	if !ok {
		return
	}
	dir.Y *= RootFlattenY
	delta, ok := geom.RotationBetween(hipsE.InitialDirection, dir)
	if !ok {
		return
	}
	target := geom.Mul(delta, snap.RootRotation)
	s.Root.Rotation = geom.Slerp(s.Root.Rotation, target, alpha)
}

// partialRotation computes the fractionally-weighted delta for a spine
// member: the rotation from the bind direction to a point weight of the way
// along the arc toward the live direction. Missing entries and degenerate
// directions yield the identity.
func partialRotation(e *CalibrationEntry, src AnchorSource, weight float64) geom.Quat {
	if e == nil {
		return geom.Identity()
	}
	dir, ok := currentDirection(e, src)
	if !ok {
		return geom.Identity()
	}
	blended := geom.SlerpVec(e.InitialDirection, dir, weight)
	q, ok := geom.RotationBetween(e.InitialDirection, blended)
	if !ok {
		return geom.Identity()
	}
	return q
}

// currentDirection resolves an entry's anchor pair to the live unit
// direction. ok is false when an anchor is unresolved or the pair is
// coincident (the degenerate-direction case: skip, don't invent a rotation).
func currentDirection(e *CalibrationEntry, src AnchorSource) (geom.Vec, bool) {
	posA, okA := src.AnchorPosition(e.AnchorA)
	posB, okB := src.AnchorPosition(e.AnchorB)
	if !okA || !okB {
		return geom.Vec{}, false
	}
	return geom.Direction(posA, posB)
}
