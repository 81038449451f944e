// Package rig implements the body-landmark ingestion pipeline and the
// calibration-based retargeting engine: accumulation buffering, activity
// watchdog, virtual joint synthesis, bind-pose calibration, the per-tick
// retargeting solver, and locomotion translation.
package rig

import (
	"fmt"
	"time"

	"github.com/lumen-motion/avatar.track/internal/geom"
)

// Landmark indexes one of the 33 tracked body points. The ordinals are
// stable across the whole pipeline and match the upstream pose estimator's
// output order.
type Landmark int

const (
	Nose Landmark = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex

	// LandmarkCount is the fixed number of landmarks per frame.
	LandmarkCount int = iota
)

// FrameFloats is the number of scalars in a frame without a forward delta.
const FrameFloats = LandmarkCount * 3

var landmarkNames = [LandmarkCount]string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// String returns the semantic landmark name, or "landmark-N" out of range.
func (l Landmark) String() string {
	if l < 0 || int(l) >= LandmarkCount {
		return fmt.Sprintf("landmark-%d", int(l))
	}
	return landmarkNames[l]
}

// Valid reports whether l is a known landmark index.
func (l Landmark) Valid() bool { return l >= 0 && int(l) < LandmarkCount }

// Frame is one decoded pose sample: a position per landmark plus an optional
// explicit forward/back delta from the source. Frames are transient; the
// pipeline consumes them on submission and never retains one.
type Frame struct {
	Points       [LandmarkCount]geom.Vec
	ForwardDelta *float64
	Timestamp    time.Time
}

// ErrMalformedFrame is returned when a submitted frame does not carry
// exactly 33 points (or 33*3 scalars, with at most one trailing delta).
var ErrMalformedFrame = fmt.Errorf("malformed frame: need %d landmarks", LandmarkCount)

// FrameFromFloats decodes a flat scalar array into a Frame. Accepted
// layouts: exactly 99 values (33 x/y/z triples) or 100 values with a
// trailing forward/back delta. Anything else is a malformed frame.
func FrameFromFloats(values []float64, ts time.Time) (Frame, error) {
	f := Frame{Timestamp: ts}
	switch len(values) {
	case FrameFloats:
	case FrameFloats + 1:
		d := values[FrameFloats]
		f.ForwardDelta = &d
	default:
		return Frame{}, fmt.Errorf("%w, got %d scalars", ErrMalformedFrame, len(values))
	}
	for i := 0; i < LandmarkCount; i++ {
		f.Points[i] = geom.Vec{
			X: values[i*3],
			Y: values[i*3+1],
			Z: values[i*3+2],
		}
	}
	return f, nil
}
