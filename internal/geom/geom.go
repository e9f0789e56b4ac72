// Package geom holds the stateless coordinate helpers shared by the
// renderer and the interaction controller.
//
// Surfaces store points in normalized space, where (0,0) is the top-left
// corner of the output and (1,1) the bottom-right. Everything that touches
// pixels converts through ToPixels / ToNormalized.
package geom

import "math"

// Point is a 2D coordinate, normalized or in pixels depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Scale returns p*s.
func (p Point) Scale(s float64) Point {
	return Point{p.X * s, p.Y * s}
}

// Rect represents an axis-aligned bounding box.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width of the rect.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height of the rect.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// Contains checks if a point is inside the rect, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// ToPixels maps a normalized point onto a width x height pixel grid.
func ToPixels(p Point, width, height float64) Point {
	return Point{p.X * width, p.Y * height}
}

// ToNormalized is the inverse of ToPixels. A zero dimension maps to 0.
func ToNormalized(p Point, width, height float64) Point {
	var out Point
	if width != 0 {
		out.X = p.X / width
	}
	if height != 0 {
		out.Y = p.Y / height
	}
	return out
}

// PointsToPixels converts a whole path with ToPixels.
func PointsToPixels(pts []Point, width, height float64) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = ToPixels(p, width, height)
	}
	return out
}

// Distance is the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Lerp interpolates componentwise between a and b. Values of t outside
// [0,1] extrapolate along the same line.
func Lerp(a, b Point, t float64) Point {
	return Point{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t}
}

// PointInPolygon reports whether p lies inside the polygon using the
// even-odd ray casting rule. Edges use the half-open rule on y, so a point
// exactly on a vertex row is counted for one of the two adjacent edges only.
func PointInPolygon(p Point, poly []Point) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	j := len(poly) - 1
	for i := range poly {
		pi, pj := poly[i], poly[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			xCross := (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if p.X < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// BoundingBox returns the min/max extents of pts. A single point yields a
// zero-area box; an empty slice yields the zero Rect.
func BoundingBox(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		r.MinX = math.Min(r.MinX, p.X)
		r.MinY = math.Min(r.MinY, p.Y)
		r.MaxX = math.Max(r.MaxX, p.X)
		r.MaxY = math.Max(r.MaxY, p.Y)
	}
	return r
}

// Centroid returns the vertex average of pts. This is the fan centre used
// for N-gon warps, not the area centroid.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pts))
	return Point{c.X / n, c.Y / n}
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampPoint clamps both components of p into [0,1].
func ClampPoint(p Point) Point {
	return Point{Clamp01(p.X), Clamp01(p.Y)}
}

// Cross returns the z component of (b-a) x (c-a).
func Cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// Barycentric returns the barycentric coordinates of p in triangle abc and
// false when the triangle is degenerate.
func Barycentric(p, a, b, c Point) (u, v, w float64, ok bool) {
	den := Cross(a, b, c)
	if math.Abs(den) < 1e-12 {
		return 0, 0, 0, false
	}
	u = Cross(p, b, c) / den
	v = Cross(a, p, c) / den
	w = 1 - u - v
	return u, v, w, true
}
