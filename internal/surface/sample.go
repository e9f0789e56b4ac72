package surface

import "github.com/inamate/projmap/internal/geom"

// NewSampleLayout returns a small starter layout: a calibration grid quad,
// a breathing triangle and a checkerboard hexagon.
func NewSampleLayout() []Surface {
	grid := New("Quad 1", []geom.Point{
		{X: 0.08, Y: 0.10}, {X: 0.46, Y: 0.14}, {X: 0.44, Y: 0.56}, {X: 0.10, Y: 0.52},
	})
	grid.Style.FillType = FillGrid
	grid.Style.MappingMode = MappingStretch

	tri := New("Triangle 2", []geom.Point{
		{X: 0.62, Y: 0.12}, {X: 0.90, Y: 0.50}, {X: 0.56, Y: 0.48},
	})
	tri.Style.Color = "#ff3366"
	tri.Style.Effect = EffectBreathe
	tri.Style.EffectSpeed = 3

	hex := New("Polygon 3", hexagon(geom.Pt(0.5, 0.76), 0.16, 0.2))
	hex.Style.FillType = FillCheckerboard
	hex.Style.Opacity = 0.8

	return []Surface{grid, tri, hex}
}

func hexagon(c geom.Point, rx, ry float64) []geom.Point {
	// unit hexagon, flat top
	unit := [6][2]float64{{1, 0}, {0.5, 0.866}, {-0.5, 0.866}, {-1, 0}, {-0.5, -0.866}, {0.5, -0.866}}
	out := make([]geom.Point, len(unit))
	for i, u := range unit {
		out[i] = geom.Pt(c.X+u[0]*rx, c.Y+u[1]*ry)
	}
	return out
}
