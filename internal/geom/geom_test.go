package geom

import (
	"math"
	"testing"
)

const tol = 1e-9

func vecNear(a, b Vec, eps float64) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps && math.Abs(a.Z-b.Z) < eps
}

func quatNear(a, b Quat, eps float64) bool {
	// q and -q encode the same rotation.
	if a.Real*b.Real+a.Imag*b.Imag+a.Jmag*b.Jmag+a.Kmag*b.Kmag < 0 {
		b = Quat{Real: -b.Real, Imag: -b.Imag, Jmag: -b.Jmag, Kmag: -b.Kmag}
	}
	return math.Abs(a.Real-b.Real) < eps && math.Abs(a.Imag-b.Imag) < eps &&
		math.Abs(a.Jmag-b.Jmag) < eps && math.Abs(a.Kmag-b.Kmag) < eps
}

func TestMidpoint(t *testing.T) {
	m := Midpoint(Vec{X: 1, Y: 2, Z: 3}, Vec{X: -1, Y: 4, Z: 5})
	if !vecNear(m, Vec{X: 0, Y: 3, Z: 4}, tol) {
		t.Errorf("Midpoint = %+v", m)
	}
}

func TestDirectionDegenerate(t *testing.T) {
	if _, ok := Direction(Vec{X: 1}, Vec{X: 1}); ok {
		t.Error("expected coincident points to have no direction")
	}
	d, ok := Direction(Vec{}, Vec{X: 0, Y: -2, Z: 0})
	if !ok || !vecNear(d, Vec{Y: -1}, tol) {
		t.Errorf("Direction = %+v ok=%v", d, ok)
	}
}

func TestRotationBetweenIdentity(t *testing.T) {
	v := Vec{X: 0.3, Y: -1.2, Z: 0.5}
	q, ok := RotationBetween(v, v)
	if !ok {
		t.Fatal("expected ok")
	}
	if !quatNear(q, Identity(), tol) {
		t.Errorf("expected identity, got %+v", q)
	}
}

func TestRotationBetweenQuarterTurn(t *testing.T) {
	q, ok := RotationBetween(Vec{X: 1}, Vec{Y: 1})
	if !ok {
		t.Fatal("expected ok")
	}
	got := Rotate(q, Vec{X: 1})
	if !vecNear(got, Vec{Y: 1}, 1e-12) {
		t.Errorf("rotated X axis to %+v, want Y axis", got)
	}
}

func TestRotationBetweenAntiparallel(t *testing.T) {
	for _, v := range []Vec{{X: 1}, {Y: 1}, {Z: 1}, {X: 0.2, Y: -0.7, Z: 0.4}} {
		neg := Vec{X: -v.X, Y: -v.Y, Z: -v.Z}
		q, ok := RotationBetween(v, neg)
		if !ok {
			t.Fatalf("expected ok for %+v", v)
		}
		got := Rotate(q, v)
		if !vecNear(got, neg, 1e-9) {
			t.Errorf("rotated %+v to %+v, want %+v", v, got, neg)
		}
	}
}

func TestRotationBetweenDegenerateInput(t *testing.T) {
	if _, ok := RotationBetween(Vec{}, Vec{X: 1}); ok {
		t.Error("zero from vector must not produce a rotation")
	}
}

func TestPowInt(t *testing.T) {
	quarter := AxisAngle(Vec{Z: 1}, math.Pi/2)
	if !quatNear(PowInt(quarter, 0), Identity(), tol) {
		t.Error("q^0 != identity")
	}
	if !quatNear(PowInt(quarter, 1), quarter, tol) {
		t.Error("q^1 != q")
	}
	half := AxisAngle(Vec{Z: 1}, math.Pi)
	if !quatNear(PowInt(quarter, 2), half, tol) {
		t.Error("q^2 != double angle")
	}
}

func TestSlerpEndpoints(t *testing.T) {
	a := AxisAngle(Vec{X: 1}, 0.3)
	b := AxisAngle(Vec{Y: 1}, 1.1)
	if got := Slerp(a, b, 0); !quatNear(got, a, tol) {
		t.Errorf("Slerp(.., 0) = %+v, want a", got)
	}
	if got := Slerp(a, b, 1); !quatNear(got, b, tol) {
		t.Errorf("Slerp(.., 1) = %+v, want b", got)
	}
}

func TestSlerpHalfway(t *testing.T) {
	a := Identity()
	b := AxisAngle(Vec{Z: 1}, math.Pi/2)
	mid := Slerp(a, b, 0.5)
	want := AxisAngle(Vec{Z: 1}, math.Pi/4)
	if !quatNear(mid, want, 1e-9) {
		t.Errorf("Slerp midpoint = %+v, want %+v", mid, want)
	}
}

func TestSlerpVecQuarterWeight(t *testing.T) {
	// A quarter-weighted slerp between X and Y is a 22.5 degree swing.
	got := SlerpVec(Vec{X: 1}, Vec{Y: 1}, 0.25)
	ang := math.Pi / 2 * 0.25
	want := Vec{X: math.Cos(ang), Y: math.Sin(ang)}
	if !vecNear(got, want, 1e-9) {
		t.Errorf("SlerpVec = %+v, want %+v", got, want)
	}
}

func TestApproachFactor(t *testing.T) {
	if f := ApproachFactor(0, 0.016); f != 0 {
		t.Errorf("zero rate should not blend, got %f", f)
	}
	full := ApproachFactor(4, 0.5)
	a := ApproachFactor(4, 0.25)
	chained := 1 - (1-a)*(1-a)
	if math.Abs(full-chained) > 1e-12 {
		t.Errorf("approach factor not frame-rate independent: %f vs %f", full, chained)
	}
}
