package ui

import (
	"image"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/inamate/projmap/internal/editor"
	"github.com/inamate/projmap/internal/engine"
	"github.com/inamate/projmap/internal/geom"
	"github.com/inamate/projmap/internal/mirror"
)

// SurfaceView shows one render loop's output in a raster and, when it has
// a controller, feeds pointer input to it.
type SurfaceView struct {
	widget.BaseWidget

	loop   *engine.Loop
	frames *mirror.FrameTarget
	raster *canvas.Raster
	ctrl   *editor.Controller

	// pixel size of the raster, for converting pointer positions
	pw, ph int
	anim   *fyne.Animation
}

var _ fyne.Widget = (*SurfaceView)(nil)
var _ fyne.Draggable = (*SurfaceView)(nil)
var _ desktop.Mouseable = (*SurfaceView)(nil)
var _ desktop.Hoverable = (*SurfaceView)(nil)

// NewSurfaceView renders r. ctrl may be nil for output-only views.
func NewSurfaceView(r *engine.Renderer, ctrl *editor.Controller) *SurfaceView {
	v := &SurfaceView{
		frames: mirror.NewFrameTarget(1, 1),
		ctrl:   ctrl,
	}
	v.loop = engine.NewLoop(r, v.frames)
	v.raster = canvas.NewRaster(v.generate)
	v.ExtendBaseWidget(v)
	return v
}

// generate is called by fyne at the raster's pixel size.
func (v *SurfaceView) generate(w, h int) image.Image {
	if w != v.pw || h != v.ph {
		v.pw, v.ph = w, h
		v.frames.SetSize(w, h)
		if v.ctrl != nil {
			v.ctrl.Resize(w, h)
		}
	}
	img, _ := v.frames.Latest()
	if img == nil {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	return img
}

// Start renders a frame on every display refresh until Stop.
func (v *SurfaceView) Start() {
	if v.anim != nil {
		return
	}
	v.anim = fyne.NewAnimation(time.Second, func(float32) {
		v.loop.Step(time.Now())
		v.raster.Refresh()
	})
	v.anim.RepeatCount = fyne.AnimationRepeatForever
	v.anim.Curve = fyne.AnimationLinear
	v.anim.Start()
}

// Stop ends the view's paint cycle.
func (v *SurfaceView) Stop() {
	if v.anim != nil {
		v.anim.Stop()
		v.anim = nil
	}
}

// Stats returns the view's loop counters.
func (v *SurfaceView) Stats() engine.Stats { return v.loop.Stats() }

func (v *SurfaceView) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(v.raster)
}

func (v *SurfaceView) MinSize() fyne.Size {
	return fyne.NewSize(320, 180)
}

// toPixels converts a widget position to raster pixels.
func (v *SurfaceView) toPixels(pos fyne.Position) geom.Point {
	size := v.Size()
	if size.Width <= 0 || size.Height <= 0 || v.pw == 0 {
		return geom.Pt(float64(pos.X), float64(pos.Y))
	}
	return geom.Pt(
		float64(pos.X)*float64(v.pw)/float64(size.Width),
		float64(pos.Y)*float64(v.ph)/float64(size.Height),
	)
}

func (v *SurfaceView) MouseDown(e *desktop.MouseEvent) {
	if v.ctrl != nil && e.Button == desktop.MouseButtonPrimary {
		v.ctrl.PointerDown(v.toPixels(e.Position))
	}
}

func (v *SurfaceView) MouseUp(e *desktop.MouseEvent) {
	if v.ctrl != nil && e.Button == desktop.MouseButtonPrimary {
		v.ctrl.PointerUp(v.toPixels(e.Position))
	}
}

func (v *SurfaceView) Dragged(e *fyne.DragEvent) {
	if v.ctrl != nil {
		v.ctrl.PointerMove(v.toPixels(e.Position))
	}
}

func (v *SurfaceView) DragEnd() {}

func (v *SurfaceView) MouseIn(e *desktop.MouseEvent) {
	if v.ctrl != nil {
		v.ctrl.PointerMove(v.toPixels(e.Position))
	}
}

func (v *SurfaceView) MouseMoved(e *desktop.MouseEvent) {
	if v.ctrl != nil {
		v.ctrl.PointerMove(v.toPixels(e.Position))
	}
}

func (v *SurfaceView) MouseOut() {
	if v.ctrl != nil {
		v.ctrl.PointerLeave()
	}
}
