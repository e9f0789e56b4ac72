// Package editor implements the authoring state machine: drawing new
// surfaces, selecting by hit-test and dragging vertices.
package editor

import (
	"github.com/inamate/projmap/internal/engine"
	"github.com/inamate/projmap/internal/geom"
	"github.com/inamate/projmap/internal/surface"
)

// Mode is the controller's editing mode.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDrawing
	ModeEditing
	ModeProjecting
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeDrawing:
		return "drawing"
	case ModeEditing:
		return "editing"
	case ModeProjecting:
		return "projecting"
	}
	return "unknown"
}

const (
	// SnapThreshold is the normalized distance to the first point that
	// closes a path while drawing.
	SnapThreshold = 0.045
	// GrabRadius is the pixel distance within which a pointer-down grabs a
	// vertex of the selected surface.
	GrabRadius = 15.0
)

// Host owns the surface list and selection. The controller reads through
// it and sends every mutation back to it.
type Host interface {
	Surfaces() []surface.Surface
	Selected() string
	// CreateSurface adds a closed surface from normalized points and
	// returns its id.
	CreateSurface(points []geom.Point) string
	MovePoint(id string, index int, p geom.Point)
	Select(id string)
}

// Controller turns pointer and keyboard input into surface mutations.
// It is not safe for concurrent use; drive it from the UI thread.
type Controller struct {
	host Host

	mode Mode
	// resume is the mode to return to when projecting ends.
	resume Mode

	buffer    []geom.Point
	cursor    geom.Point
	hasCursor bool

	dragID    string
	dragIndex int

	width, height float64

	// OnModeChange, when set, is called after every mode transition.
	OnModeChange func(Mode)
}

// New creates a controller over host for a w x h pixel canvas.
func New(host Host, w, h int) *Controller {
	c := &Controller{host: host, dragIndex: -1}
	c.Resize(w, h)
	return c
}

// Resize sets the canvas size used to convert pointer positions.
func (c *Controller) Resize(w, h int) {
	c.width, c.height = float64(w), float64(h)
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode { return c.mode }

// Buffer returns a copy of the in-progress drawing points.
func (c *Controller) Buffer() []geom.Point {
	return append([]geom.Point(nil), c.buffer...)
}

func (c *Controller) setMode(m Mode) {
	if c.mode == m {
		return
	}
	if c.mode == ModeDrawing {
		c.buffer = nil
	}
	c.mode = m
	if c.OnModeChange != nil {
		c.OnModeChange(m)
	}
}

// Sync reconciles the mode with the host selection after external
// changes, such as the selected surface being deleted from a panel.
func (c *Controller) Sync() {
	switch c.mode {
	case ModeIdle, ModeEditing:
		if c.selection() != nil {
			c.setMode(ModeEditing)
		} else {
			c.endDrag()
			c.setMode(ModeIdle)
		}
	}
}

// --- Drawing ---

// StartDrawing begins a new path with an empty buffer.
func (c *Controller) StartDrawing() {
	if c.mode == ModeProjecting {
		return
	}
	c.endDrag()
	c.setMode(ModeDrawing)
	c.buffer = []geom.Point{}
}

// UndoPoint removes the last buffered point.
func (c *Controller) UndoPoint() {
	if c.mode != ModeDrawing || len(c.buffer) == 0 {
		return
	}
	c.buffer = c.buffer[:len(c.buffer)-1]
}

// CancelDrawing abandons the buffer.
func (c *Controller) CancelDrawing() {
	if c.mode != ModeDrawing {
		return
	}
	c.setMode(c.restingMode())
}

// FinishDrawing closes the path explicitly. It needs at least 3 points and
// reports whether a surface was created.
func (c *Controller) FinishDrawing() bool {
	if c.mode != ModeDrawing || len(c.buffer) < 3 {
		return false
	}
	c.closePath()
	return true
}

func (c *Controller) closePath() {
	pts := c.buffer
	c.buffer = nil
	id := c.host.CreateSurface(pts)
	c.host.Select(id)
	c.setMode(ModeEditing)
}

// --- Projecting ---

// EnterProjecting switches to the interaction-free output mode. An
// in-progress path is discarded.
func (c *Controller) EnterProjecting() {
	if c.mode == ModeProjecting {
		return
	}
	c.endDrag()
	c.resume = c.restingMode()
	c.setMode(ModeProjecting)
}

// ExitProjecting returns to editing when the selection still exists,
// otherwise to idle.
func (c *Controller) ExitProjecting() {
	if c.mode != ModeProjecting {
		return
	}
	next := ModeIdle
	if c.resume == ModeEditing && c.selection() != nil {
		next = ModeEditing
	}
	c.setMode(next)
}

// --- Pointer input (pixels) ---

// PointerDown handles a press at px.
func (c *Controller) PointerDown(px geom.Point) {
	c.cursor, c.hasCursor = c.normalize(px), true

	switch c.mode {
	case ModeProjecting:
		return
	case ModeDrawing:
		c.addPoint(c.cursor)
		return
	case ModeEditing:
		if sel := c.selection(); sel != nil {
			if i := c.grabVertex(*sel, px); i >= 0 {
				c.dragID, c.dragIndex = sel.ID, i
				return
			}
		}
	}
	c.hitTest(px)
}

// PointerMove tracks the cursor and moves the dragged vertex.
func (c *Controller) PointerMove(px geom.Point) {
	if c.mode == ModeProjecting {
		return
	}
	c.cursor, c.hasCursor = c.normalize(px), true
	if c.dragIndex >= 0 && c.dragID != "" {
		c.host.MovePoint(c.dragID, c.dragIndex, geom.ClampPoint(c.cursor))
	}
}

// PointerUp ends a vertex drag.
func (c *Controller) PointerUp(px geom.Point) {
	if c.mode == ModeProjecting {
		return
	}
	if c.dragIndex >= 0 && c.dragID != "" {
		c.host.MovePoint(c.dragID, c.dragIndex, geom.ClampPoint(c.normalize(px)))
	}
	c.endDrag()
}

// PointerLeave hides the cursor-dependent overlay.
func (c *Controller) PointerLeave() {
	c.hasCursor = false
}

// Dragging reports whether a vertex drag is in progress.
func (c *Controller) Dragging() bool { return c.dragIndex >= 0 }

// Nudge moves every vertex of the selection by a normalized offset, each
// point clamped independently.
func (c *Controller) Nudge(dx, dy float64) {
	if c.mode != ModeEditing {
		return
	}
	sel := c.selection()
	if sel == nil {
		return
	}
	for i, p := range sel.Points {
		c.host.MovePoint(sel.ID, i, geom.ClampPoint(geom.Pt(p.X+dx, p.Y+dy)))
	}
}

// Overlay exposes the authoring overlay for the renderer.
func (c *Controller) Overlay() engine.Overlay {
	ov := engine.Overlay{DragIndex: -1}
	if c.mode == ModeProjecting {
		return ov
	}
	if c.mode == ModeDrawing {
		ov.Drawing = true
		ov.Points = c.Buffer()
		ov.Cursor = c.cursor
		ov.HasCursor = c.hasCursor
		ov.Snap = c.hasCursor && c.snaps(c.cursor)
	}
	if c.dragID != "" && c.dragID == c.host.Selected() {
		ov.DragIndex = c.dragIndex
	}
	return ov
}

func (c *Controller) addPoint(p geom.Point) {
	if c.snaps(p) {
		c.closePath()
		return
	}
	c.buffer = append(c.buffer, geom.ClampPoint(p))
}

// snaps reports whether p would close the current buffer.
func (c *Controller) snaps(p geom.Point) bool {
	return len(c.buffer) > 2 && geom.Distance(p, c.buffer[0]) < SnapThreshold
}

// hitTest selects the topmost visible surface under px, or clears the
// selection on a miss.
func (c *Controller) hitTest(px geom.Point) {
	list := c.host.Surfaces()
	for i := len(list) - 1; i >= 0; i-- {
		s := list[i]
		if !s.Visible {
			continue
		}
		if geom.PointInPolygon(px, geom.PointsToPixels(s.Points, c.width, c.height)) {
			c.host.Select(s.ID)
			c.setMode(ModeEditing)
			return
		}
	}
	c.host.Select("")
	c.setMode(ModeIdle)
}

// grabVertex returns the index of the nearest vertex of s within
// GrabRadius of px, or -1.
func (c *Controller) grabVertex(s surface.Surface, px geom.Point) int {
	best, bestDist := -1, GrabRadius
	for i, p := range s.Points {
		if d := geom.Distance(px, geom.ToPixels(p, c.width, c.height)); d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func (c *Controller) selection() *surface.Surface {
	id := c.host.Selected()
	if id == "" {
		return nil
	}
	list := c.host.Surfaces()
	if i := surface.Find(list, id); i >= 0 {
		return &list[i]
	}
	return nil
}

func (c *Controller) restingMode() Mode {
	if c.selection() != nil {
		return ModeEditing
	}
	return ModeIdle
}

func (c *Controller) endDrag() {
	c.dragID, c.dragIndex = "", -1
}

func (c *Controller) normalize(px geom.Point) geom.Point {
	return geom.ToNormalized(px, c.width, c.height)
}
