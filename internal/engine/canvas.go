package engine

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/inamate/projmap/internal/geom"
)

// Canvas is a software 2D drawing surface over an RGBA buffer. It keeps a
// save/restore stack of clip and global alpha, the two pieces of state the
// renderer relies on.
type Canvas struct {
	img    *image.RGBA
	z      vector.Rasterizer
	state  canvasState
	stack  []canvasState
	interp xdraw.Interpolator

	// scratch pixels reused by DrawImage and Warp
	layerPix, tilePix []uint8
	// warp coverage and ownership, keyed by destination and bounds
	warps map[string]*warpPlan
}

type canvasState struct {
	// clip is nil when unclipped. Its bounds are in canvas coordinates;
	// pixels outside the bounds are fully clipped.
	clip  *image.Alpha
	alpha float64
}

// NewCanvas allocates a w x h canvas.
func NewCanvas(w, h int) *Canvas {
	c := &Canvas{}
	c.Resize(w, h)
	return c
}

// Resize reallocates the buffer when the size changes. State is reset.
func (c *Canvas) Resize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if c.img == nil || c.img.Rect.Dx() != w || c.img.Rect.Dy() != h {
		c.img = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	c.state = canvasState{alpha: 1}
	c.stack = c.stack[:0]
}

// Image returns the backing buffer.
func (c *Canvas) Image() *image.RGBA { return c.img }

// Size returns the canvas dimensions in pixels.
func (c *Canvas) Size() (int, int) {
	return c.img.Rect.Dx(), c.img.Rect.Dy()
}

func (c *Canvas) bounds() image.Rectangle { return c.img.Rect }

// Save pushes the current clip and alpha.
func (c *Canvas) Save() {
	c.stack = append(c.stack, c.state)
}

// Restore pops the last saved state. Unbalanced calls are ignored.
func (c *Canvas) Restore() {
	if len(c.stack) == 0 {
		return
	}
	c.state = c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
}

// SetAlpha sets the global alpha applied to every subsequent draw.
func (c *Canvas) SetAlpha(a float64) {
	c.state.alpha = geom.Clamp01(a)
}

// Alpha returns the current global alpha.
func (c *Canvas) Alpha() float64 { return c.state.alpha }

// SetInterpolator selects the raster sampler for DrawImage and Warp.
// The default is xdraw.ApproxBiLinear; nil restores it.
func (c *Canvas) SetInterpolator(z xdraw.Interpolator) { c.interp = z }

func (c *Canvas) sampler() xdraw.Interpolator {
	if c.interp == nil {
		return xdraw.ApproxBiLinear
	}
	return c.interp
}

// Clear fills the whole buffer, ignoring clip and alpha.
func (c *Canvas) Clear(col color.Color) {
	draw.Draw(c.img, c.img.Rect, image.NewUniform(col), image.Point{}, draw.Src)
}

// ClipPath intersects the clip with the closed polygon pts.
func (c *Canvas) ClipPath(pts []geom.Point) {
	cov := c.coverage(pathBounds(pts, c.bounds()), pts)
	if old := c.state.clip; old != nil {
		r := cov.Rect.Intersect(old.Rect)
		next := image.NewAlpha(r)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				a := uint32(cov.Pix[cov.PixOffset(x, y)]) * uint32(old.Pix[old.PixOffset(x, y)])
				next.Pix[next.PixOffset(x, y)] = uint8((a + 127) / 255)
			}
		}
		cov = next
	}
	c.state.clip = cov
}

// ClipRect intersects the clip with an axis-aligned rectangle.
func (c *Canvas) ClipRect(r geom.Rect) {
	c.ClipPath(rectPath(r))
}

// FillPath fills the closed polygon with a solid colour.
func (c *Canvas) FillPath(pts []geom.Point, col color.Color) {
	c.FillPathWith(pts, image.NewUniform(col))
}

// FillPathWith fills the closed polygon with src, sampled in canvas
// coordinates.
func (c *Canvas) FillPathWith(pts []geom.Point, src image.Image) {
	if len(pts) < 3 {
		return
	}
	c.paint(c.coverage(pathBounds(pts, c.bounds()), pts), src)
}

// FillRect fills an axis-aligned rectangle.
func (c *Canvas) FillRect(r geom.Rect, col color.Color) {
	c.FillPath(rectPath(r), col)
}

// StrokePath strokes a polyline of the given width. Segments are drawn as
// quads with rounded joins.
func (c *Canvas) StrokePath(pts []geom.Point, closed bool, width float64, col color.Color) {
	polys := strokePolys(pts, closed, width)
	if len(polys) == 0 {
		return
	}
	c.paint(c.coverage(polysBounds(polys, c.bounds()), polys...), image.NewUniform(col))
}

// StrokeLine strokes a single segment.
func (c *Canvas) StrokeLine(a, b geom.Point, width float64, col color.Color) {
	c.StrokePath([]geom.Point{a, b}, false, width, col)
}

// StrokePaths strokes several polylines of one width as a single layer,
// so crossings blend once.
func (c *Canvas) StrokePaths(lines [][]geom.Point, width float64, col color.Color) {
	var polys [][]geom.Point
	for _, l := range lines {
		polys = append(polys, strokePolys(l, false, width)...)
	}
	if len(polys) == 0 {
		return
	}
	c.paint(c.coverage(polysBounds(polys, c.bounds()), polys...), image.NewUniform(col))
}

// DashedPath strokes a polyline as alternating dash and gap runs.
func (c *Canvas) DashedPath(pts []geom.Point, closed bool, width, dash, gap float64, col color.Color) {
	if len(pts) < 2 || dash <= 0 {
		return
	}
	path := pts
	if closed {
		path = append(append([]geom.Point(nil), pts...), pts[0])
	}

	var polys [][]geom.Point
	on, left := true, dash
	for i := 0; i+1 < len(path); i++ {
		a, b := path[i], path[i+1]
		seg := geom.Distance(a, b)
		pos := 0.0
		for pos < seg {
			step := math.Min(left, seg-pos)
			if on {
				p0 := geom.Lerp(a, b, pos/seg)
				p1 := geom.Lerp(a, b, (pos+step)/seg)
				polys = append(polys, strokePolys([]geom.Point{p0, p1}, false, width)...)
			}
			pos += step
			left -= step
			if left <= 0 {
				on = !on
				if on {
					left = dash
				} else {
					left = gap
				}
			}
		}
	}
	if len(polys) == 0 {
		return
	}
	c.paint(c.coverage(polysBounds(polys, c.bounds()), polys...), image.NewUniform(col))
}

// FillCircle fills a disc.
func (c *Canvas) FillCircle(center geom.Point, radius float64, col color.Color) {
	c.FillPath(circlePath(center, radius, false), col)
}

// StrokeCircle strokes a ring centred on radius.
func (c *Canvas) StrokeCircle(center geom.Point, radius, width float64, col color.Color) {
	outer := circlePath(center, radius+width/2, false)
	inner := circlePath(center, math.Max(0, radius-width/2), true)
	c.paint(c.coverage(pathBounds(outer, c.bounds()), outer, inner), image.NewUniform(col))
}

// DrawImage draws src through the affine transform m (source pixels to
// canvas pixels), honouring the clip and global alpha.
func (c *Canvas) DrawImage(src image.Image, m Matrix2D) {
	sr := src.Bounds()
	if sr.Empty() || c.state.alpha == 0 {
		return
	}
	corners := []geom.Point{
		m.Apply(geom.Pt(float64(sr.Min.X), float64(sr.Min.Y))),
		m.Apply(geom.Pt(float64(sr.Max.X), float64(sr.Min.Y))),
		m.Apply(geom.Pt(float64(sr.Max.X), float64(sr.Max.Y))),
		m.Apply(geom.Pt(float64(sr.Min.X), float64(sr.Max.Y))),
	}
	dr := pathBounds(corners, c.bounds())
	if dr.Empty() {
		return
	}
	mask := c.stateMask(dr)
	if mask != nil {
		if mask.Rect.Empty() {
			return
		}
		dr = mask.Rect
	}

	// Sample unmasked into a scratch tile, then composite through the
	// clip, so both steps stay on the RGBA fast paths.
	tile := scratchRGBA(&c.tilePix, dr)
	c.sampler().Transform(tile, m.Aff3(), src, sr, xdraw.Src, nil)
	if mask == nil {
		draw.Draw(c.img, dr, tile, dr.Min, draw.Over)
		return
	}
	draw.DrawMask(c.img, dr, tile, dr.Min, mask, dr.Min, draw.Over)
}

// paint composites src onto the buffer through cov, the clip and the
// global alpha. cov is consumed.
func (c *Canvas) paint(cov *image.Alpha, src image.Image) {
	if cov.Rect.Empty() || c.state.alpha == 0 {
		return
	}
	c.applyState(cov)
	if cov.Rect.Empty() {
		return
	}
	draw.DrawMask(c.img, cov.Rect, src, cov.Rect.Min, cov, cov.Rect.Min, draw.Over)
}

// applyState multiplies cov by the clip and global alpha in place. The
// rect shrinks to the clip bounds.
func (c *Canvas) applyState(cov *image.Alpha) {
	clip := c.state.clip
	if clip != nil {
		r := cov.Rect.Intersect(clip.Rect)
		if r.Empty() {
			cov.Rect = image.Rectangle{}
			return
		}
		*cov = *cov.SubImage(r).(*image.Alpha)
	}
	alpha := uint32(math.Round(c.state.alpha * 255))
	if clip == nil && alpha == 255 {
		return
	}
	for y := cov.Rect.Min.Y; y < cov.Rect.Max.Y; y++ {
		for x := cov.Rect.Min.X; x < cov.Rect.Max.X; x++ {
			i := cov.PixOffset(x, y)
			a := uint32(cov.Pix[i]) * alpha
			if clip != nil {
				a = a * uint32(clip.Pix[clip.PixOffset(x, y)]) / 255
			}
			cov.Pix[i] = uint8((a + 127) / 255)
		}
	}
}

// stateMask returns the clip scaled by global alpha over r, or nil when
// neither restricts drawing.
func (c *Canvas) stateMask(r image.Rectangle) *image.Alpha {
	if c.state.clip == nil && c.state.alpha >= 1 {
		return nil
	}
	m := image.NewAlpha(r)
	for i := range m.Pix {
		m.Pix[i] = 0xff
	}
	c.applyState(m)
	return m
}

// coverage rasterises the polygons into an antialiased mask bounded by r.
// Overlapping polygons of the same winding saturate; opposite windings
// cancel.
func (c *Canvas) coverage(r image.Rectangle, polys ...[]geom.Point) *image.Alpha {
	mask := image.NewAlpha(r)
	if r.Empty() {
		return mask
	}
	z := &c.z
	z.Reset(r.Dx(), r.Dy())
	z.DrawOp = draw.Src
	ox, oy := float64(r.Min.X), float64(r.Min.Y)
	drawn := false
	for _, p := range polys {
		if len(p) < 3 {
			continue
		}
		z.MoveTo(float32(p[0].X-ox), float32(p[0].Y-oy))
		for _, q := range p[1:] {
			z.LineTo(float32(q.X-ox), float32(q.Y-oy))
		}
		z.ClosePath()
		drawn = true
	}
	if drawn {
		z.Draw(mask, r, image.Opaque, r.Min)
	}
	return mask
}

// scratchRGBA returns a transparent RGBA image over r whose pixels live in
// *buf, growing it when needed. The image is only valid until the next
// call with the same buffer.
func scratchRGBA(buf *[]uint8, r image.Rectangle) *image.RGBA {
	n := 4 * r.Dx() * r.Dy()
	if cap(*buf) < n {
		*buf = make([]uint8, n)
	}
	pix := (*buf)[:n]
	clear(pix)
	return &image.RGBA{Pix: pix, Stride: 4 * r.Dx(), Rect: r}
}

// pathBounds returns the pixel rectangle covering pts, clipped to within.
func pathBounds(pts []geom.Point, within image.Rectangle) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	b := geom.BoundingBox(pts)
	r := image.Rect(
		int(math.Floor(b.MinX)), int(math.Floor(b.MinY)),
		int(math.Ceil(b.MaxX)), int(math.Ceil(b.MaxY)),
	)
	return r.Intersect(within)
}

func polysBounds(polys [][]geom.Point, within image.Rectangle) image.Rectangle {
	var all []geom.Point
	for _, p := range polys {
		all = append(all, p...)
	}
	return pathBounds(all, within)
}

func rectPath(r geom.Rect) []geom.Point {
	return []geom.Point{
		{X: r.MinX, Y: r.MinY}, {X: r.MaxX, Y: r.MinY},
		{X: r.MaxX, Y: r.MaxY}, {X: r.MinX, Y: r.MaxY},
	}
}

// circlePath approximates a circle. reverse flips the winding.
func circlePath(center geom.Point, radius float64, reverse bool) []geom.Point {
	const segments = 32
	out := make([]geom.Point, segments)
	for i := range out {
		a := 2 * math.Pi * float64(i) / segments
		if !reverse {
			a = -a
		}
		out[i] = geom.Pt(center.X+radius*math.Cos(a), center.Y+radius*math.Sin(a))
	}
	return out
}

// strokePolys turns a polyline into segment quads plus join discs, all with
// the same winding so their coverage saturates instead of cancelling.
func strokePolys(pts []geom.Point, closed bool, width float64) [][]geom.Point {
	if len(pts) < 2 || width <= 0 {
		return nil
	}
	hw := width / 2
	path := pts
	if closed && len(pts) > 2 {
		path = append(append([]geom.Point(nil), pts...), pts[0])
	}

	var polys [][]geom.Point
	for i := 0; i+1 < len(path); i++ {
		a, b := path[i], path[i+1]
		l := geom.Distance(a, b)
		if l == 0 {
			continue
		}
		n := geom.Pt(-(b.Y-a.Y)/l*hw, (b.X-a.X)/l*hw)
		polys = append(polys, []geom.Point{a.Add(n), b.Add(n), b.Sub(n), a.Sub(n)})
	}
	joins := path[1 : len(path)-1]
	if closed && len(pts) > 2 {
		joins = pts
	}
	if hw > 1 {
		for _, p := range joins {
			polys = append(polys, joinPath(p, hw))
		}
	}
	return polys
}

// joinPath is a small disc with the same winding as the stroke quads.
func joinPath(center geom.Point, radius float64) []geom.Point {
	const segments = 12
	out := make([]geom.Point, segments)
	for i := range out {
		a := -2 * math.Pi * float64(i) / segments
		out[i] = geom.Pt(center.X+radius*math.Cos(a), center.Y+radius*math.Sin(a))
	}
	return out
}
