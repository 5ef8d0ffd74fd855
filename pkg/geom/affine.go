package geom

import "math"

// Affine is a 2D affine transform in row-major order:
//
//	| A B C |
//	| D E F |
//
// A point maps to (A*x + B*y + C, D*x + E*y + F).
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transform.
func Identity() Affine { return Affine{A: 1, E: 1} }

// RotationAbout returns a rotation by deg degrees around pivot, with the
// same orientation as [Rotate].
func RotationAbout(deg float64, pivot Point) Affine {
	theta := deg * math.Pi / 180
	sin, cos := math.Sincos(theta)
	return Affine{
		A: cos, B: -sin, C: pivot.X - pivot.X*cos + pivot.Y*sin,
		D: sin, E: cos, F: pivot.Y - pivot.X*sin - pivot.Y*cos,
	}
}

// Then returns the transform that applies m first and n second.
func (m Affine) Then(n Affine) Affine {
	return Affine{
		A: n.A*m.A + n.B*m.D,
		B: n.A*m.B + n.B*m.E,
		C: n.A*m.C + n.B*m.F + n.C,
		D: n.D*m.A + n.E*m.D,
		E: n.D*m.B + n.E*m.E,
		F: n.D*m.C + n.E*m.F + n.F,
	}
}

// Apply transforms p.
func (m Affine) Apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.B*p.Y + m.C,
		Y: m.D*p.X + m.E*p.Y + m.F,
	}
}

// IsIdentity reports whether m leaves every point unchanged, within a small
// tolerance for accumulated floating point error.
func (m Affine) IsIdentity() bool {
	const eps = 1e-9
	return math.Abs(m.A-1) < eps && math.Abs(m.B) < eps && math.Abs(m.C) < eps &&
		math.Abs(m.D) < eps && math.Abs(m.E-1) < eps && math.Abs(m.F) < eps
}

// Array returns the six coefficients in the order used by
// golang.org/x/image/math/f64.Aff3.
func (m Affine) Array() [6]float64 {
	return [6]float64{m.A, m.B, m.C, m.D, m.E, m.F}
}
