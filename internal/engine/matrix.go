package engine

import (
	"math"

	"golang.org/x/image/math/f64"

	"github.com/inamate/projmap/internal/geom"
)

// Matrix2D is an affine map in canvas pixel space, stored column-major as
// [a b c d e f]:
//
//	x' = a*x + c*y + e
//	y' = b*x + d*y + f
type Matrix2D [6]float64

// degenerateEpsilon is the smallest |det| accepted when solving a triangle
// correspondence.
const degenerateEpsilon = 1e-9

// Identity returns the identity matrix.
func Identity() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

// Translate returns a translation matrix.
func Translate(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

// Scale returns a scale matrix.
func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// Multiply returns m * other, the map that applies other and then m.
func (m Matrix2D) Multiply(other Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*other[0] + m[2]*other[1],
		m[1]*other[0] + m[3]*other[1],
		m[0]*other[2] + m[2]*other[3],
		m[1]*other[2] + m[3]*other[3],
		m[0]*other[4] + m[2]*other[5] + m[4],
		m[1]*other[4] + m[3]*other[5] + m[5],
	}
}

// Apply transforms a point.
func (m Matrix2D) Apply(p geom.Point) geom.Point {
	return geom.Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// Determinant returns the determinant of the linear part.
func (m Matrix2D) Determinant() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert returns the inverse of the matrix, or false if not invertible.
func (m Matrix2D) Invert() (Matrix2D, bool) {
	det := m.Determinant()
	if math.Abs(det) < degenerateEpsilon {
		return Identity(), false
	}

	k := 1 / det
	return Matrix2D{
		m[3] * k,
		-m[1] * k,
		-m[2] * k,
		m[0] * k,
		(m[2]*m[5] - m[3]*m[4]) * k,
		(m[1]*m[4] - m[0]*m[5]) * k,
	}, true
}

// AffineFromTriangles solves the affine map taking src[i] to dst[i] for
// i = 0..2. It returns false when either triangle is degenerate.
func AffineFromTriangles(src, dst [3]geom.Point) (Matrix2D, bool) {
	// Basis of the source triangle, relative to src[0].
	s := Matrix2D{
		src[1].X - src[0].X, src[1].Y - src[0].Y,
		src[2].X - src[0].X, src[2].Y - src[0].Y,
		src[0].X, src[0].Y,
	}
	d := Matrix2D{
		dst[1].X - dst[0].X, dst[1].Y - dst[0].Y,
		dst[2].X - dst[0].X, dst[2].Y - dst[0].Y,
		dst[0].X, dst[0].Y,
	}
	if math.Abs(d.Determinant()) < degenerateEpsilon {
		return Identity(), false
	}
	inv, ok := s.Invert()
	if !ok {
		return Identity(), false
	}
	return d.Multiply(inv).snap(), true
}

// snap rounds entries within float noise of an integer, so exact
// correspondences produce exact matrices.
func (m Matrix2D) snap() Matrix2D {
	const eps = 1e-9
	for i, v := range m {
		if r := math.Round(v); math.Abs(v-r) < eps {
			m[i] = r
		}
	}
	return m
}

// Aff3 converts to the row-major layout used by golang.org/x/image/draw.
func (m Matrix2D) Aff3() f64.Aff3 {
	return f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
}

// IsIdentity reports whether every entry is within 1e-10 of the identity.
func (m Matrix2D) IsIdentity() bool {
	id := Identity()
	for i := range m {
		if math.Abs(m[i]-id[i]) >= 1e-10 {
			return false
		}
	}
	return true
}

// RectToRect maps the source rectangle onto the destination rectangle.
func RectToRect(src, dst geom.Rect) Matrix2D {
	sw, sh := src.Width(), src.Height()
	if sw == 0 || sh == 0 {
		return Identity()
	}
	sx, sy := dst.Width()/sw, dst.Height()/sh
	return Translate(dst.MinX, dst.MinY).Multiply(Scale(sx, sy)).Multiply(Translate(-src.MinX, -src.MinY))
}
