package rig

import (
	"fmt"
	"time"

	"github.com/lumen-motion/avatar.track/internal/geom"
	"github.com/lumen-motion/avatar.track/internal/monitoring"
)

// AnchorKind discriminates the two tables an anchor may point into.
type AnchorKind uint8

const (
	// AnchorLandmark indexes the raw landmark table.
	AnchorLandmark AnchorKind = iota
	// AnchorVirtual indexes the synthesized virtual joint table.
	AnchorVirtual
)

// Anchor references a tracked point by table and index, never by pointer.
type Anchor struct {
	Kind  AnchorKind `json:"kind"`
	Index int        `json:"index"`
}

// String renders the anchor as a readable identifier, e.g. "left_elbow" or
// "virtual:neck".
func (a Anchor) String() string {
	switch a.Kind {
	case AnchorLandmark:
		return Landmark(a.Index).String()
	case AnchorVirtual:
		return "virtual:" + VirtualJoint(a.Index).String()
	}
	return fmt.Sprintf("anchor(%d,%d)", a.Kind, a.Index)
}

// AnchorSource resolves anchors to current positions. ok is false while the
// referenced point has not produced a stable position yet.
type AnchorSource interface {
	AnchorPosition(a Anchor) (pos geom.Vec, ok bool)
}

// EntryKind tags a calibration entry as a plain limb bone or a member of
// the jointly-solved spine chain.
type EntryKind uint8

const (
	// EntryLimb bones are solved independently from their anchor pair.
	EntryLimb EntryKind = iota
	// EntrySpineNode bones are solved jointly with the rest of the chain.
	EntrySpineNode
)

// SpineRole names a spine-chain member's function in the joint solve.
type SpineRole uint8

const (
	// SpineNone marks limb entries.
	SpineNone SpineRole = iota
	// SpineHipsTwist tracks left-hip to right-hip (torso twist).
	SpineHipsTwist
	// SpineUpDown tracks virtual-hip to virtual-neck (torso tilt).
	SpineUpDown
	// SpineChest tracks the same axis as SpineUpDown for the chest bone.
	SpineChest
	// SpineHead tracks virtual-neck to nose.
	SpineHead
)

// CalibrationEntry is the bind-pose capture for one tracked bone: the bone's
// parent-local rotation and the anchor-to-anchor direction at calibration
// time. Entries are immutable once captured; re-calibration replaces the
// whole snapshot.
type CalibrationEntry struct {
	Bone             BoneID    `json:"bone"`
	Kind             EntryKind `json:"entry_kind"`
	Role             SpineRole `json:"spine_role"`
	AnchorA          Anchor    `json:"anchor_a"`
	AnchorB          Anchor    `json:"anchor_b"`
	InitialRotation  geom.Quat `json:"initial_rotation"`
	InitialDirection geom.Vec  `json:"initial_direction"`
}

// CalibrationSnapshot is an atomically-replaceable set of calibration
// entries plus the root orientation captured at the same instant. The
// solver always consumes a whole snapshot; a half-built set is never
// observable.
type CalibrationSnapshot struct {
	CapturedAt   time.Time          `json:"captured_at"`
	RootRotation geom.Quat          `json:"root_rotation"`
	Entries      []CalibrationEntry `json:"entries"`
}

// Entry returns the entry for a bone, or nil.
func (s *CalibrationSnapshot) Entry(b BoneID) *CalibrationEntry {
	for i := range s.Entries {
		if s.Entries[i].Bone == b {
			return &s.Entries[i]
		}
	}
	return nil
}

// spineEntry returns the chain member with the given role, or nil.
func (s *CalibrationSnapshot) spineEntry(role SpineRole) *CalibrationEntry {
	for i := range s.Entries {
		if s.Entries[i].Kind == EntrySpineNode && s.Entries[i].Role == role {
			return &s.Entries[i]
		}
	}
	return nil
}

// trackSpec is one row of the fixed bone/anchor pairing table.
type trackSpec struct {
	bone     BoneID
	kind     EntryKind
	role     SpineRole
	a, b     Anchor
	footOnly bool
}

func landmarkAnchor(l Landmark) Anchor    { return Anchor{Kind: AnchorLandmark, Index: int(l)} }
func virtualAnchor(v VirtualJoint) Anchor { return Anchor{Kind: AnchorVirtual, Index: int(v)} }

// trackTable is the full pairing of bones to anchor directions. Limb bones
// track their proximal-to-distal joint direction; the spine chain tracks
// twist (hip-to-hip), tilt (virtual hip to virtual neck, used twice), and
// head (virtual neck to nose).
var trackTable = []trackSpec{
	{bone: BoneLeftUpperArm, kind: EntryLimb, a: landmarkAnchor(LeftShoulder), b: landmarkAnchor(LeftElbow)},
	{bone: BoneLeftLowerArm, kind: EntryLimb, a: landmarkAnchor(LeftElbow), b: landmarkAnchor(LeftWrist)},
	{bone: BoneRightUpperArm, kind: EntryLimb, a: landmarkAnchor(RightShoulder), b: landmarkAnchor(RightElbow)},
	{bone: BoneRightLowerArm, kind: EntryLimb, a: landmarkAnchor(RightElbow), b: landmarkAnchor(RightWrist)},
	{bone: BoneLeftUpperLeg, kind: EntryLimb, a: landmarkAnchor(LeftHip), b: landmarkAnchor(LeftKnee)},
	{bone: BoneLeftLowerLeg, kind: EntryLimb, a: landmarkAnchor(LeftKnee), b: landmarkAnchor(LeftAnkle)},
	{bone: BoneRightUpperLeg, kind: EntryLimb, a: landmarkAnchor(RightHip), b: landmarkAnchor(RightKnee)},
	{bone: BoneRightLowerLeg, kind: EntryLimb, a: landmarkAnchor(RightKnee), b: landmarkAnchor(RightAnkle)},
	{bone: BoneLeftFoot, kind: EntryLimb, a: landmarkAnchor(LeftAnkle), b: landmarkAnchor(LeftFootIndex), footOnly: true},
	{bone: BoneRightFoot, kind: EntryLimb, a: landmarkAnchor(RightAnkle), b: landmarkAnchor(RightFootIndex), footOnly: true},

	{bone: BoneHips, kind: EntrySpineNode, role: SpineHipsTwist, a: landmarkAnchor(LeftHip), b: landmarkAnchor(RightHip)},
	{bone: BoneSpine, kind: EntrySpineNode, role: SpineUpDown, a: virtualAnchor(VirtualHip), b: virtualAnchor(VirtualNeck)},
	{bone: BoneChest, kind: EntrySpineNode, role: SpineChest, a: virtualAnchor(VirtualHip), b: virtualAnchor(VirtualNeck)},
	{bone: BoneHead, kind: EntrySpineNode, role: SpineHead, a: virtualAnchor(VirtualNeck), b: landmarkAnchor(Nose)},
}

// Calibrate captures a fresh snapshot from the skeleton's current bone
// rotations and the anchor source's current positions. Bones missing from
// the skeleton, or whose anchors cannot yet be resolved, or whose anchor
// pair is coincident, are skipped with a diagnostic; a partial rig is not an
// error. The returned snapshot is complete and immutable; installing it is
// the caller's (atomic) concern.
func Calibrate(s *Skeleton, src AnchorSource, footTracking bool, now time.Time) *CalibrationSnapshot {
	snap := &CalibrationSnapshot{
		CapturedAt:   now,
		RootRotation: s.Root.Rotation,
		Entries:      make([]CalibrationEntry, 0, len(trackTable)),
	}

	for _, spec := range trackTable {
		if spec.footOnly && !footTracking {
			continue
		}
		bone := s.Bone(spec.bone)
		if bone == nil {
			monitoring.Diagf("calibrate: skipping %s: bone not in rig", spec.bone)
			continue
		}
		posA, okA := src.AnchorPosition(spec.a)
		posB, okB := src.AnchorPosition(spec.b)
		if !okA || !okB {
			monitoring.Diagf("calibrate: skipping %s: anchors %s/%s unresolved", spec.bone, spec.a, spec.b)
			continue
		}
		dir, ok := geom.Direction(posA, posB)
		if !ok {
			monitoring.Diagf("calibrate: skipping %s: anchors %s/%s coincide", spec.bone, spec.a, spec.b)
			continue
		}
		snap.Entries = append(snap.Entries, CalibrationEntry{
			Bone:             spec.bone,
			Kind:             spec.kind,
			Role:             spec.role,
			AnchorA:          spec.a,
			AnchorB:          spec.b,
			InitialRotation:  bone.LocalRotation,
			InitialDirection: dir,
		})
	}

	monitoring.Opsf("calibrated %d/%d bones (foot tracking: %v)", len(snap.Entries), len(trackTable), footTracking)
	return snap
}
