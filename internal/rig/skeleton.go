package rig

import (
	"encoding/json"
	"fmt"

	"github.com/lumen-motion/avatar.track/internal/geom"
)

// BoneID addresses a bone in the skeleton arena. Stable small integers keep
// calibration entries as plain indices instead of object references, so the
// bone graph, calibration table, and landmark table never form ownership
// cycles.
type BoneID int

const (
	BoneHips BoneID = iota
	BoneSpine
	BoneChest
	BoneHead
	BoneLeftUpperArm
	BoneLeftLowerArm
	BoneRightUpperArm
	BoneRightLowerArm
	BoneLeftUpperLeg
	BoneLeftLowerLeg
	BoneRightUpperLeg
	BoneRightLowerLeg
	BoneLeftFoot
	BoneRightFoot

	// BoneCount is the size of the bone arena.
	BoneCount int = iota
)

var boneNames = [BoneCount]string{
	"hips", "spine", "chest", "head",
	"left_upper_arm", "left_lower_arm",
	"right_upper_arm", "right_lower_arm",
	"left_upper_leg", "left_lower_leg",
	"right_upper_leg", "right_lower_leg",
	"left_foot", "right_foot",
}

// String returns the bone name.
func (b BoneID) String() string {
	if b < 0 || int(b) >= BoneCount {
		return fmt.Sprintf("bone-%d", int(b))
	}
	return boneNames[b]
}

// Valid reports whether b addresses a real arena slot.
func (b BoneID) Valid() bool { return b >= 0 && int(b) < BoneCount }

// BoneIDByName resolves a bone name back to its arena slot.
func BoneIDByName(name string) (BoneID, bool) {
	for i, n := range boneNames {
		if n == name {
			return BoneID(i), true
		}
	}
	return -1, false
}

// MarshalJSON encodes the bone as its name, so exported calibration files
// stay readable and stable if the arena order ever changes.
func (b BoneID) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON resolves a bone name; unknown names are rejected at decode
// time rather than surfacing later as an invalid arena index.
func (b *BoneID) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	id, ok := BoneIDByName(name)
	if !ok {
		return fmt.Errorf("unknown bone %q", name)
	}
	*b = id
	return nil
}

// Bone is one mutable bone transform. The solver only ever writes
// LocalRotation; position and hierarchy stay under the owning scene's
// control.
type Bone struct {
	ID            BoneID
	LocalRotation geom.Quat
}

// RootTransform is the whole-character transform the locomotion translator
// and root-facing blend write into.
type RootTransform struct {
	Position geom.Vec
	Rotation geom.Quat
}

// Forward returns the character's current facing direction (+Z in local
// space, rotated by the root orientation).
func (r *RootTransform) Forward() geom.Vec {
	return geom.Rotate(r.Rotation, geom.Vec{Z: 1})
}

// Skeleton is an arena of bones addressed by BoneID plus the root transform.
// Slots may be nil: partial rigs are expected and a missing bone simply
// opts that bone out of calibration and solving. The skeleton is owned by
// the embedding scene; the pipeline only mutates orientation fields of the
// bones it was handed at calibration time.
type Skeleton struct {
	bones [BoneCount]*Bone
	Root  RootTransform
}

// NewHumanoidSkeleton builds a full arena with every bone present at
// identity orientation.
func NewHumanoidSkeleton() *Skeleton {
	s := &Skeleton{Root: RootTransform{Rotation: geom.Identity()}}
	for i := 0; i < BoneCount; i++ {
		s.bones[i] = &Bone{ID: BoneID(i), LocalRotation: geom.Identity()}
	}
	return s
}

// Bone returns the bone in the given slot, or nil when the rig lacks it.
func (s *Skeleton) Bone(id BoneID) *Bone {
	if !id.Valid() {
		return nil
	}
	return s.bones[id]
}

// RemoveBone empties a slot, modelling a partial rig.
func (s *Skeleton) RemoveBone(id BoneID) {
	if id.Valid() {
		s.bones[id] = nil
	}
}

// SetBone places a bone into its slot.
func (s *Skeleton) SetBone(b *Bone) {
	if b != nil && b.ID.Valid() {
		s.bones[b.ID] = b
	}
}
