// Package geom provides the small vector/quaternion toolkit used by the
// retargeting pipeline. Vectors are gonum spatial/r3 values and rotations are
// gonum num/quat numbers; this package adds the handful of operations gonum
// does not ship (rotation between directions, spherical interpolation,
// frame-rate-independent blend factors).
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec is a 3D point or direction in world units.
type Vec = r3.Vec

// Quat is a rotation quaternion (Real, Imag, Jmag, Kmag).
type Quat = quat.Number

// DirectionEpsilon is the squared-length floor below which an anchor pair is
// treated as coincident and no direction can be derived.
const DirectionEpsilon = 1e-9

// Identity returns the identity rotation.
func Identity() Quat { return Quat{Real: 1} }

// Midpoint returns the arithmetic mean of a and b.
func Midpoint(a, b Vec) Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}

// Direction returns the unit vector from a to b. ok is false when the two
// points are close enough to coincide that no direction exists.
func Direction(a, b Vec) (dir Vec, ok bool) {
	d := r3.Sub(b, a)
	if r3.Norm2(d) < DirectionEpsilon {
		return Vec{}, false
	}
	return r3.Unit(d), true
}

// Rotate applies rotation q to vector v.
func Rotate(q Quat, v Vec) Vec {
	return r3.Rotation(q).Rotate(v)
}

// AxisAngle builds a rotation of angle radians about the given axis. The axis
// need not be normalised; a zero axis yields the identity.
func AxisAngle(axis Vec, angle float64) Quat {
	n := r3.Norm(axis)
	if n == 0 {
		return Identity()
	}
	s := math.Sin(angle/2) / n
	return Quat{
		Real: math.Cos(angle / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// RotationBetween returns the shortest-arc rotation taking unit direction
// from onto unit direction to. ok is false when either input is degenerate.
// Anti-parallel inputs rotate half a turn about an arbitrary perpendicular
// axis.
func RotationBetween(from, to Vec) (q Quat, ok bool) {
	if r3.Norm2(from) < DirectionEpsilon || r3.Norm2(to) < DirectionEpsilon {
		return Identity(), false
	}
	f := r3.Unit(from)
	t := r3.Unit(to)

	d := r3.Dot(f, t)
	switch {
	case d >= 1-1e-12:
		return Identity(), true
	case d <= -1+1e-12:
		// Opposite directions: any axis perpendicular to f works.
		axis := r3.Cross(f, Vec{X: 1})
		if r3.Norm2(axis) < DirectionEpsilon {
			axis = r3.Cross(f, Vec{Y: 1})
		}
		return AxisAngle(axis, math.Pi), true
	}

	axis := r3.Cross(f, t)
	return Normalize(Quat{
		Real: 1 + d,
		Imag: axis.X,
		Jmag: axis.Y,
		Kmag: axis.Z,
	}), true
}

// Normalize scales q to unit length. The zero quaternion maps to identity.
func Normalize(q Quat) Quat {
	n := quat.Abs(q)
	if n == 0 {
		return Identity()
	}
	return quat.Scale(1/n, q)
}

// Mul composes rotations: the returned rotation applies b first, then a.
func Mul(a, b Quat) Quat { return quat.Mul(a, b) }

// PowInt raises a unit rotation to a small non-negative integer power by
// repeated composition, which keeps exact identity behaviour for n = 0, 1.
func PowInt(q Quat, n int) Quat {
	out := Identity()
	for i := 0; i < n; i++ {
		out = quat.Mul(out, q)
	}
	return out
}

// Slerp spherically interpolates between rotations a and b. t = 0 yields
// exactly a and t = 1 exactly b; the shorter arc is always taken.
func Slerp(a, b Quat, t float64) Quat {
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}

	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	if dot < 0 {
		b = quat.Scale(-1, b)
		dot = -dot
	}
	if dot > 0.9995 {
		// Nearly identical: linear blend avoids a division by a tiny sine.
		return Normalize(quat.Add(quat.Scale(1-t, a), quat.Scale(t, b)))
	}

	theta := math.Acos(dot)
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sinTheta
	wb := math.Sin(t*theta) / sinTheta
	return Normalize(quat.Add(quat.Scale(wa, a), quat.Scale(wb, b)))
}

// SlerpVec spherically interpolates between two directions, returning a unit
// vector t of the way along the great arc from a to b.
func SlerpVec(a, b Vec, t float64) Vec {
	if r3.Norm2(a) < DirectionEpsilon || r3.Norm2(b) < DirectionEpsilon {
		return a
	}
	ua := r3.Unit(a)
	ub := r3.Unit(b)

	step, ok := RotationBetween(ua, ub)
	if !ok {
		return ua
	}
	return Rotate(Slerp(Identity(), step, t), ua)
}

// ApproachFactor converts an exponential approach rate (1/s) and a tick
// duration into a blend weight in [0, 1). The result is frame-rate
// independent: chaining two ticks of dt/2 equals one tick of dt.
func ApproachFactor(rate, dt float64) float64 {
	if rate <= 0 || dt <= 0 {
		return 0
	}
	return 1 - math.Exp(-rate*dt)
}

// Lerp linearly interpolates between scalars.
func Lerp(a, b, t float64) float64 { return a + (b-a)*t }

// LerpVec linearly interpolates between points, used for the smoothed
// approach of landmark positions toward flushed targets.
func LerpVec(a, b Vec, t float64) Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}
