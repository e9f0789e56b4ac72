package engine

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/inamate/projmap/internal/geom"
	"github.com/inamate/projmap/internal/surface"
)

// Scene is the read-only view of the host state used each frame.
type Scene interface {
	Surfaces() []surface.Surface
	Selected() string
}

// FrameSource yields the latest decoded frame, if any.
type FrameSource interface {
	Frame() (image.Image, bool)
}

// Assets resolves the raster for a media surface.
type Assets interface {
	Frame(s surface.Surface) (image.Image, bool)
}

// Overlay is the transient authoring state drawn above the surfaces.
type Overlay struct {
	Drawing bool
	// Points is the in-progress path, normalized.
	Points    []geom.Point
	Cursor    geom.Point
	HasCursor bool
	// Snap is set when releasing at Cursor would close the path.
	Snap bool
	// DragIndex is the vertex being dragged on the selection, or -1.
	DragIndex int
}

// OverlaySource supplies the authoring overlay for the current frame.
type OverlaySource interface {
	Overlay() Overlay
}

const (
	cameraAlpha   = 0.5
	handleRadius  = 6.0
	outlineWidth  = 2.0
	openPathWidth = 2.0
	snapRadius    = 12.0
)

// Renderer paints a Scene onto a Canvas. Authoring draws the editor
// background, camera feed and overlays; projector output leaves them out.
type Renderer struct {
	Scene     Scene
	Assets    Assets
	Camera    FrameSource
	Overlay   OverlaySource
	Authoring bool
	// Smooth samples rasters with full bilinear filtering. Live views
	// leave it off and use the faster approximation.
	Smooth bool

	// failed remembers the last logged failure per surface id.
	failed map[string]string
}

// Render draws one frame at time t.
func (r *Renderer) Render(c *Canvas, t time.Duration) {
	w, h := c.Size()
	fw, fh := float64(w), float64(h)
	if r.Smooth {
		c.SetInterpolator(xdraw.BiLinear)
	} else {
		c.SetInterpolator(nil)
	}

	if r.Authoring {
		c.Clear(authoringBG)
		r.drawCamera(c)
	} else {
		c.Clear(projectingBG)
	}
	if r.Scene == nil {
		return
	}

	selected := r.Scene.Selected()
	var sel *surface.Surface
	list := r.Scene.Surfaces()
	for i := range list {
		s := list[i]
		if !s.Visible {
			continue
		}
		r.paintSafely(c, s, fw, fh, t)
		if s.ID == selected {
			sel = &list[i]
		}
	}

	if !r.Authoring {
		return
	}
	var ov Overlay
	ov.DragIndex = -1
	if r.Overlay != nil {
		ov = r.Overlay.Overlay()
	}
	if sel != nil {
		drawSelection(c, *sel, fw, fh, ov.DragIndex)
	}
	if ov.Drawing {
		drawBuffer(c, ov, fw, fh)
	}
}

func (r *Renderer) paintSafely(c *Canvas, s surface.Surface, w, h float64, t time.Duration) {
	depth := len(c.stack)
	defer func() {
		if v := recover(); v != nil {
			// Unwind anything the failed paint left on the stack.
			for len(c.stack) > depth {
				c.Restore()
			}
			r.logFailure(s.ID, fmt.Sprint(v))
		}
	}()
	r.paintSurface(c, s, w, h, t)
}

func (r *Renderer) logFailure(id, msg string) {
	if r.failed == nil {
		r.failed = make(map[string]string)
	}
	if r.failed[id] == msg {
		return
	}
	r.failed[id] = msg
	slog.Debug("surface paint failed", "surface", id, "error", msg)
}

func (r *Renderer) paintSurface(c *Canvas, s surface.Surface, w, h float64, t time.Duration) {
	st := s.Style
	mod := EvaluateEffect(st.Opacity, ParseHex(st.Color), st.Effect, st.EffectSpeed, t)
	if mod.Opacity <= 0 {
		return
	}
	pts := geom.PointsToPixels(s.Points, w, h)

	c.Save()
	defer c.Restore()
	c.SetAlpha(mod.Opacity)

	if !s.IsClosed || len(pts) < 3 {
		c.StrokePath(pts, false, openPathWidth, mod.Color)
		return
	}

	switch st.FillType {
	case surface.FillCheckerboard:
		fillCheckerboard(c, pts)
	case surface.FillGrid:
		if st.MappingMode == surface.MappingMask {
			fillGridMask(c, pts, mod.Color)
		} else {
			fillGridStretch(c, pts, mod.Color)
		}
	case surface.FillImage, surface.FillVideo:
		r.paintMedia(c, s, pts)
	default:
		c.FillPath(pts, mod.Color)
	}
}

func (r *Renderer) paintMedia(c *Canvas, s surface.Surface, pts []geom.Point) {
	var img image.Image
	ok := false
	if r.Assets != nil {
		img, ok = r.Assets.Frame(s)
	}
	if ok {
		if s.Style.MappingMode == surface.MappingMask {
			ok = fillRasterMask(c, pts, img)
		} else {
			ok = c.Warp(img, pts)
		}
	}
	if !ok {
		fillPlaceholder(c, pts)
	}
}

// drawCamera covers the canvas with the camera frame, cropping to keep the
// aspect ratio.
func (r *Renderer) drawCamera(c *Canvas) {
	if r.Camera == nil {
		return
	}
	img, ok := r.Camera.Frame()
	if !ok {
		return
	}
	sr := img.Bounds()
	if sr.Empty() {
		return
	}
	w, h := c.Size()
	scale := math.Max(float64(w)/float64(sr.Dx()), float64(h)/float64(sr.Dy()))
	dx := (float64(w) - float64(sr.Dx())*scale) / 2
	dy := (float64(h) - float64(sr.Dy())*scale) / 2
	m := Translate(dx, dy).Multiply(Scale(scale, scale)).Multiply(Translate(float64(-sr.Min.X), float64(-sr.Min.Y)))

	c.Save()
	c.SetAlpha(cameraAlpha)
	c.DrawImage(img, m)
	c.Restore()
}

func drawSelection(c *Canvas, s surface.Surface, w, h float64, drag int) {
	pts := geom.PointsToPixels(s.Points, w, h)
	c.DashedPath(pts, s.IsClosed, outlineWidth, 8, 4, selectionColor)
	for i, p := range pts {
		radius := handleRadius
		if i == drag {
			radius += 2
		}
		c.FillCircle(p, radius, handleFill)
		c.StrokeCircle(p, radius, 2, handleStroke)
	}
}

func drawBuffer(c *Canvas, ov Overlay, w, h float64) {
	pts := geom.PointsToPixels(ov.Points, w, h)
	if len(pts) > 1 {
		c.StrokePath(pts, false, openPathWidth, drawPathColor)
	}
	for _, p := range pts {
		c.FillCircle(p, 4, drawPathColor)
	}
	if len(pts) == 0 || !ov.HasCursor {
		return
	}

	cursor := geom.ToPixels(ov.Cursor, w, h)
	last := pts[len(pts)-1]
	c.StrokeLine(last, cursor, 6, laserGlow)
	c.StrokeLine(last, cursor, 1.5, laserColor)
	if ov.Snap {
		c.StrokeCircle(pts[0], snapRadius, 2, snapColor)
	}
}
