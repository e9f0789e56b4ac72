package engine

import (
	"encoding/binary"
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/inamate/projmap/internal/geom"
)

// triangle pairs a source triangle (raster pixels) with a destination
// triangle (canvas pixels).
type triangle struct {
	src, dst [3]geom.Point
}

// quadTriangles splits a 4-point destination along the 0-2 diagonal and
// the raster's corners the same way.
func quadTriangles(dst []geom.Point, w, h float64) []triangle {
	corners := [4]geom.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
	return []triangle{
		{src: [3]geom.Point{corners[0], corners[1], corners[2]}, dst: [3]geom.Point{dst[0], dst[1], dst[2]}},
		{src: [3]geom.Point{corners[0], corners[2], corners[3]}, dst: [3]geom.Point{dst[0], dst[2], dst[3]}},
	}
}

// fanUV places fan vertex i of n on the ellipse inscribed in a w x h
// raster, starting at angle 0 and turning clockwise on screen.
func fanUV(i, n int, w, h float64) geom.Point {
	a := 2 * math.Pi * float64(i) / float64(n)
	return geom.Pt(w/2+w/2*math.Cos(a), h/2+h/2*math.Sin(a))
}

// fanTriangles decomposes an N-gon into a fan around its vertex centroid.
// The source side is the matching fan around the raster centre, so the
// mapping is radial rather than a true planar homography.
func fanTriangles(dst []geom.Point, w, h float64) []triangle {
	n := len(dst)
	cd := geom.Centroid(dst)
	cs := geom.Pt(w/2, h/2)
	out := make([]triangle, 0, n)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		out = append(out, triangle{
			src: [3]geom.Point{cs, fanUV(i, n, w, h), fanUV(j, n, w, h)},
			dst: [3]geom.Point{cd, dst[i], dst[j]},
		})
	}
	return out
}

// warpTriangles picks the decomposition for a destination polygon.
func warpTriangles(dst []geom.Point, w, h float64) []triangle {
	if len(dst) == 4 {
		return quadTriangles(dst, w, h)
	}
	return fanTriangles(dst, w, h)
}

// Warp paints src onto the destination polygon (canvas pixels) as if the
// raster were stretched over it. Four points use two affine triangles;
// other counts use a centroid fan. It returns false and draws nothing when
// the raster has no size or the polygon has fewer than 3 points.
func (c *Canvas) Warp(src image.Image, dst []geom.Point) bool {
	sr := src.Bounds()
	if sr.Dx() <= 0 || sr.Dy() <= 0 || len(dst) < 3 {
		return false
	}
	lr := pathBounds(dst, c.bounds())
	if lr.Empty() || c.state.alpha == 0 {
		return true
	}

	// Work in source coordinates relative to the raster origin.
	w, h := float64(sr.Dx()), float64(sr.Dy())
	origin := Translate(float64(-sr.Min.X), float64(-sr.Min.Y))
	tris := warpTriangles(dst, w, h)
	plan := c.planWarp(dst, tris, lr)

	layer := scratchRGBA(&c.layerPix, lr)
	interp := c.sampler()
	drawn := false
	for i, t := range tris {
		mask := plan.owned[i]
		if mask == nil {
			continue
		}
		m, ok := AffineFromTriangles(t.src, t.dst)
		if !ok {
			continue
		}
		tile := scratchRGBA(&c.tilePix, mask.Rect)
		interp.Transform(tile, m.Multiply(origin).Aff3(), src, sr, xdraw.Src, nil)
		draw.DrawMask(layer, mask.Rect, tile, mask.Rect.Min, mask, mask.Rect.Min, draw.Over)
		drawn = true
	}
	if !drawn {
		return true
	}

	cov := image.NewAlpha(plan.cover.Rect)
	copy(cov.Pix, plan.cover.Pix)
	c.paint(cov, layer)
	return true
}

// warpPlan is the geometry-only part of a warp: the antialiased polygon
// coverage over the layer bounds and, per triangle, an opaque mask of the
// pixels it owns cropped to those pixels. nil masks own nothing.
type warpPlan struct {
	cover *image.Alpha
	owned []*image.Alpha
}

// maxWarpPlans bounds the plan cache; it is emptied when full.
const maxWarpPlans = 16

// planWarp returns the cached plan for dst over lr, building it on a miss.
// Plans depend only on the destination, so a static surface reuses its
// plan every frame and only a moving one pays for the ownership pass.
func (c *Canvas) planWarp(dst []geom.Point, tris []triangle, lr image.Rectangle) *warpPlan {
	key := warpKey(dst, lr)
	if p, ok := c.warps[key]; ok {
		return p
	}

	cover := c.coverage(lr, dst)
	owner := ownership(lr, cover, len(tris), func(i int) [3]geom.Point { return tris[i].dst })
	p := &warpPlan{cover: cover, owned: make([]*image.Alpha, len(tris))}

	bounds := make([]image.Rectangle, len(tris))
	for y := lr.Min.Y; y < lr.Max.Y; y++ {
		row := owner[(y-lr.Min.Y)*lr.Dx():]
		for x := lr.Min.X; x < lr.Max.X; x++ {
			if o := row[x-lr.Min.X]; o >= 0 {
				bounds[o] = bounds[o].Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	for i, r := range bounds {
		if r.Empty() {
			continue
		}
		mask := image.NewAlpha(r)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			row := owner[(y-lr.Min.Y)*lr.Dx():]
			for x := r.Min.X; x < r.Max.X; x++ {
				if int(row[x-lr.Min.X]) == i {
					mask.Pix[mask.PixOffset(x, y)] = 0xff
				}
			}
		}
		p.owned[i] = mask
	}

	if c.warps == nil || len(c.warps) >= maxWarpPlans {
		c.warps = make(map[string]*warpPlan)
	}
	c.warps[key] = p
	return p
}

func warpKey(dst []geom.Point, r image.Rectangle) string {
	b := make([]byte, 0, 16*len(dst)+16)
	for _, p := range dst {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(p.X))
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(p.Y))
	}
	for _, v := range [4]int{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y} {
		b = binary.LittleEndian.AppendUint32(b, uint32(int32(v)))
	}
	return string(b)
}

// ownership assigns every pixel centre in r to the triangle whose smallest
// barycentric coordinate is largest, so neighbouring triangles partition
// the area without overlap along shared edges. Pixels index row-major from
// r.Min; -1 marks pixels with no usable triangle or, when cover is non-nil,
// no coverage.
func ownership(r image.Rectangle, cover *image.Alpha, n int, tri func(int) [3]geom.Point) []int16 {
	out := make([]int16, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := (y-r.Min.Y)*r.Dx() + (x - r.Min.X)
			if cover != nil && cover.AlphaAt(x, y).A == 0 {
				out[i] = -1
				continue
			}
			p := geom.Pt(float64(x)+0.5, float64(y)+0.5)
			best, bestScore := -1, math.Inf(-1)
			for k := 0; k < n; k++ {
				t := tri(k)
				u, v, w, ok := geom.Barycentric(p, t[0], t[1], t[2])
				if !ok {
					continue
				}
				if s := math.Min(u, math.Min(v, w)); s > bestScore {
					best, bestScore = k, s
				}
			}
			out[i] = int16(best)
		}
	}
	return out
}
