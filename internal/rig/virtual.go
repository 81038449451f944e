package rig

import (
	"fmt"

	"github.com/lumen-motion/avatar.track/internal/geom"
)

// VirtualJoint identifies a joint the source stream does not deliver
// directly. Virtual joints are derived every tick from the latest landmark
// positions and have no independent lifecycle.
type VirtualJoint int

const (
	// VirtualNeck is the midpoint of the two shoulders.
	VirtualNeck VirtualJoint = iota
	// VirtualHip is the midpoint of the two hips.
	VirtualHip

	// VirtualJointCount is the number of synthesized joints.
	VirtualJointCount int = iota
)

// String returns the joint name.
func (v VirtualJoint) String() string {
	switch v {
	case VirtualNeck:
		return "neck"
	case VirtualHip:
		return "hip"
	}
	return fmt.Sprintf("virtual-%d", int(v))
}

// Valid reports whether v is a known virtual joint.
func (v VirtualJoint) Valid() bool { return v >= 0 && int(v) < VirtualJointCount }

// SynthesizeVirtualJoints derives the virtual joints from the current
// landmark positions. Pure function of its input; history never matters.
func SynthesizeVirtualJoints(positions *[LandmarkCount]geom.Vec) [VirtualJointCount]geom.Vec {
	var out [VirtualJointCount]geom.Vec
	out[VirtualNeck] = geom.Midpoint(positions[LeftShoulder], positions[RightShoulder])
	out[VirtualHip] = geom.Midpoint(positions[LeftHip], positions[RightHip])
	return out
}
