package engine

import (
	"image"
	"image/color"
	"math"

	"github.com/inamate/projmap/internal/geom"
)

const (
	checkerSize   = 40
	gridSpacing   = 40
	gridDivisions = 12
	gridSegments  = 24
	gridLineWidth = 2.0
	gridEdgeWidth = 3.0
	gridFillAlpha = 0.2
)

// checkerboard renders black/white tiles of the given size over r, aligned
// to the canvas origin.
func checkerboard(r image.Rectangle, size int) *image.RGBA {
	img := image.NewRGBA(r)
	if r.Empty() {
		return img
	}
	// Two row patterns, swapped on every tile row.
	rows := [2][]uint8{make([]uint8, 4*r.Dx()), make([]uint8, 4*r.Dx())}
	for x := r.Min.X; x < r.Max.X; x++ {
		i := 4 * (x - r.Min.X)
		var v uint8
		if floorDiv(x, size)%2 != 0 {
			v = 0xff
		}
		copy(rows[0][i:], []uint8{v, v, v, 0xff})
		copy(rows[1][i:], []uint8{^v, ^v, ^v, 0xff})
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		copy(img.Pix[(y-r.Min.Y)*img.Stride:], rows[floorDiv(y, size)&1])
	}
	return img
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// fillCheckerboard tiles the path in canvas space; the tiles do not follow
// the surface's perspective.
func fillCheckerboard(c *Canvas, pts []geom.Point) {
	r := pathBounds(pts, c.bounds())
	if r.Empty() {
		return
	}
	c.FillPathWith(pts, checkerboard(r, checkerSize))
}

// fillGridMask draws an axis-aligned fixed-spacing grid inside the path over
// a faint fill of the surface colour.
func fillGridMask(c *Canvas, pts []geom.Point, col color.NRGBA) {
	c.FillPath(pts, withAlpha(col, gridFillAlpha))

	b := geom.BoundingBox(pts)
	c.Save()
	defer c.Restore()
	c.ClipPath(pts)
	for x := b.MinX; x <= b.MaxX; x += gridSpacing {
		c.FillRect(geom.Rect{MinX: x, MinY: b.MinY, MaxX: x + 1, MaxY: b.MaxY}, gridLineColor)
	}
	for y := b.MinY; y <= b.MaxY; y += gridSpacing {
		c.FillRect(geom.Rect{MinX: b.MinX, MinY: y, MaxX: b.MaxX, MaxY: y + 1}, gridLineColor)
	}
}

// UVMapper maps a surface's unit UV square onto its pixel-space polygon.
type UVMapper func(u, v float64) geom.Point

// NewUVMapper builds the calibration mapping for a polygon: bilinear
// between the edge pairs for quads, and the same centroid fan the warp
// engine uses for every other vertex count.
func NewUVMapper(pts []geom.Point) UVMapper {
	if len(pts) == 4 {
		p0, p1, p2, p3 := pts[0], pts[1], pts[2], pts[3]
		return func(u, v float64) geom.Point {
			top := geom.Lerp(p0, p1, u)
			bottom := geom.Lerp(p3, p2, u)
			return geom.Lerp(top, bottom, v)
		}
	}

	n := len(pts)
	tris := fanTriangles(pts, 1, 1)
	return func(u, v float64) geom.Point {
		uv := geom.Pt(u, v)
		a := math.Atan2(v-0.5, u-0.5)
		if a < 0 {
			a += 2 * math.Pi
		}
		i := int(a/(2*math.Pi/float64(n))) % n
		t := tris[i]
		wc, wi, wj, ok := geom.Barycentric(uv, t.src[0], t.src[1], t.src[2])
		if !ok {
			return t.dst[0]
		}
		return geom.Pt(
			wc*t.dst[0].X+wi*t.dst[1].X+wj*t.dst[2].X,
			wc*t.dst[0].Y+wi*t.dst[1].Y+wj*t.dst[2].Y,
		)
	}
}

// gridLines returns the constant-u and constant-v polylines of the
// calibration grid, each paired with its stroke width.
func gridLines(m UVMapper) ([][]geom.Point, []float64) {
	var lines [][]geom.Point
	var widths []float64
	for k := 0; k <= gridDivisions; k++ {
		t := float64(k) / gridDivisions
		w := gridLineWidth
		if k == 0 || k == gridDivisions {
			w = gridEdgeWidth
		}
		constU := make([]geom.Point, gridSegments+1)
		constV := make([]geom.Point, gridSegments+1)
		for s := 0; s <= gridSegments; s++ {
			f := float64(s) / gridSegments
			constU[s] = m(t, f)
			constV[s] = m(f, t)
		}
		lines = append(lines, constU, constV)
		widths = append(widths, w, w)
	}
	return lines, widths
}

// fillGridStretch draws the calibration grid through the UV mapping so it
// follows the surface's distortion.
func fillGridStretch(c *Canvas, pts []geom.Point, col color.NRGBA) {
	c.FillPath(pts, withAlpha(col, gridFillAlpha))

	c.Save()
	defer c.Restore()
	c.ClipPath(pts)
	lines, widths := gridLines(NewUVMapper(pts))
	var inner, edges [][]geom.Point
	for i, l := range lines {
		if widths[i] == gridEdgeWidth {
			edges = append(edges, l)
		} else {
			inner = append(inner, l)
		}
	}
	c.StrokePaths(inner, gridLineWidth, col)
	c.StrokePaths(edges, gridEdgeWidth, col)
}

// fillRasterMask clips to the path and stretches the raster over the
// path's bounding box without perspective.
func fillRasterMask(c *Canvas, pts []geom.Point, src image.Image) bool {
	sr := src.Bounds()
	if sr.Dx() <= 0 || sr.Dy() <= 0 || len(pts) < 3 {
		return false
	}
	from := geom.Rect{MinX: float64(sr.Min.X), MinY: float64(sr.Min.Y), MaxX: float64(sr.Max.X), MaxY: float64(sr.Max.Y)}
	c.Save()
	defer c.Restore()
	c.ClipPath(pts)
	c.DrawImage(src, RectToRect(from, geom.BoundingBox(pts)))
	return true
}

// fillPlaceholder marks a surface whose raster is not ready yet.
func fillPlaceholder(c *Canvas, pts []geom.Point) {
	c.FillPath(pts, placeholderColor)

	b := geom.BoundingBox(pts)
	c.Save()
	defer c.Restore()
	c.ClipPath(pts)
	c.StrokeLine(geom.Pt(b.MinX, b.MinY), geom.Pt(b.MaxX, b.MaxY), 2, placeholderCross)
	c.StrokeLine(geom.Pt(b.MaxX, b.MinY), geom.Pt(b.MinX, b.MaxY), 2, placeholderCross)
}
