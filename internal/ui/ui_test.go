package ui

import (
	"context"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"

	"github.com/inamate/projmap/internal/editor"
	"github.com/inamate/projmap/internal/engine"
	"github.com/inamate/projmap/internal/geom"
	"github.com/inamate/projmap/internal/project"
	"github.com/inamate/projmap/internal/store"
	"github.com/inamate/projmap/internal/surface"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	a := &App{
		Project: project.NewService(store.NewMemory()),
		Width:   400,
		Height:  200,
	}
	a.fyne = test.NewTempApp(t)
	a.build(context.Background())
	t.Cleanup(a.view.Stop)
	a.view.generate(400, 200)
	return a
}

func press(a *App, keys ...fyne.KeyName) {
	for _, k := range keys {
		a.typedKey(&fyne.KeyEvent{Name: k})
	}
}

// drawTriangle draws and closes a path through the keyboard flow.
func drawTriangle(t *testing.T, a *App) string {
	t.Helper()
	press(a, fyne.KeyN)
	for _, p := range []geom.Point{{X: 40, Y: 40}, {X: 200, Y: 40}, {X: 120, Y: 160}} {
		a.ctrl.PointerDown(p)
	}
	press(a, fyne.KeyReturn)
	id := a.Project.Selected()
	if id == "" {
		t.Fatal("finishing the path did not select a surface")
	}
	a.refresh()
	return id
}

func TestKeyboardDrawingFlow(t *testing.T) {
	a := newTestApp(t)
	id := drawTriangle(t, a)

	if a.ctrl.Mode() != editor.ModeEditing {
		t.Errorf("mode = %v, want editing", a.ctrl.Mode())
	}
	if len(a.layers.items) != 1 || a.layers.items[0].ID != id {
		t.Errorf("layers = %v", a.layers.items)
	}
	if a.insp.id != id || a.insp.name.Text != "Triangle 1" {
		t.Errorf("inspector = %q %q", a.insp.id, a.insp.name.Text)
	}

	before, _ := a.Project.Get(id)
	press(a, fyne.KeyRight, fyne.KeyDown)
	after, _ := a.Project.Get(id)
	if d := after.Points[0].X - before.Points[0].X; d < nudgeStep*0.99 || d > nudgeStep*1.01 {
		t.Errorf("nudge moved x by %v", d)
	}

	press(a, fyne.KeyD)
	if n := len(a.Project.Surfaces()); n != 2 {
		t.Fatalf("after duplicate %d surfaces, want 2", n)
	}
	press(a, fyne.KeyDelete)
	if n := len(a.Project.Surfaces()); n != 1 {
		t.Errorf("after delete %d surfaces, want 1", n)
	}
}

func TestKeyboardCancelAndUndo(t *testing.T) {
	a := newTestApp(t)
	press(a, fyne.KeyN)
	a.ctrl.PointerDown(geom.Pt(10, 10))
	a.ctrl.PointerDown(geom.Pt(50, 10))
	press(a, fyne.KeyBackspace)
	if n := len(a.ctrl.Buffer()); n != 1 {
		t.Errorf("buffer after undo = %d points, want 1", n)
	}
	press(a, fyne.KeyReturn)
	if a.ctrl.Mode() != editor.ModeDrawing {
		t.Error("finishing with one point left drawing mode")
	}
	press(a, fyne.KeyEscape)
	if a.ctrl.Mode() != editor.ModeIdle || len(a.Project.Surfaces()) != 0 {
		t.Errorf("after escape mode = %v, surfaces = %d", a.ctrl.Mode(), len(a.Project.Surfaces()))
	}
}

func TestProjectingHidesChrome(t *testing.T) {
	a := newTestApp(t)
	drawTriangle(t, a)

	press(a, fyne.KeyP)
	if a.ctrl.Mode() != editor.ModeProjecting || a.render.Authoring {
		t.Fatalf("mode = %v authoring = %v", a.ctrl.Mode(), a.render.Authoring)
	}
	for _, o := range a.chrome {
		if o.Visible() {
			t.Error("chrome still visible while projecting")
		}
	}
	if a.ctrl.Overlay().Drawing {
		t.Error("overlay drawn while projecting")
	}

	press(a, fyne.KeyEscape)
	if a.ctrl.Mode() != editor.ModeEditing || !a.render.Authoring {
		t.Errorf("after exit mode = %v authoring = %v", a.ctrl.Mode(), a.render.Authoring)
	}
	for _, o := range a.chrome {
		if !o.Visible() {
			t.Error("chrome hidden after projecting")
		}
	}
}

func TestInspectorEditsSelection(t *testing.T) {
	a := newTestApp(t)
	id := drawTriangle(t, a)

	a.insp.fill.SetSelected(string(surface.FillGrid))
	a.insp.effect.SetSelected(string(surface.EffectRainbow))
	a.insp.opacity.SetValue(0.5)
	a.insp.color.OnSubmitted("#FF8800")
	a.insp.color.OnSubmitted("orange")

	sf, err := a.Project.Get(id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	st := sf.Style
	if st.FillType != surface.FillGrid || st.Effect != surface.EffectRainbow || st.Opacity != 0.5 || st.Color != "#ff8800" {
		t.Errorf("style = %+v", st)
	}

	a.Project.Select("")
	a.refresh()
	if !a.insp.fill.Disabled() || a.insp.id != "" {
		t.Error("inspector enabled without a selection")
	}
	a.insp.effect.SetSelected(string(surface.EffectStrobe))
	if sf, _ := a.Project.Get(id); sf.Style.Effect != surface.EffectRainbow {
		t.Error("disabled inspector edited a surface")
	}
}

func TestLayerListSelects(t *testing.T) {
	a := newTestApp(t)
	first := drawTriangle(t, a)
	second := drawTriangle(t, a)

	// top-most first
	if a.layers.items[0].ID != second || a.layers.items[1].ID != first {
		t.Fatalf("layer order = %v", a.layers.items)
	}
	a.layers.list.Select(1)
	if a.Project.Selected() != first {
		t.Errorf("Selected() = %q, want %q", a.Project.Selected(), first)
	}
}

func TestSurfaceViewPixelMapping(t *testing.T) {
	test.NewTempApp(t)
	v := NewSurfaceView(&engine.Renderer{}, nil)
	v.Resize(fyne.NewSize(100, 50))
	v.generate(200, 100)
	if got := v.toPixels(fyne.NewPos(50, 25)); got != geom.Pt(100, 50) {
		t.Errorf("toPixels() = %v, want (100,50)", got)
	}
	if w, h := v.frames.Size(); w != 200 || h != 100 {
		t.Errorf("target size = %dx%d", w, h)
	}
}

func TestLabelsAndValidation(t *testing.T) {
	s := surface.New("Quad 2", []geom.Point{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}})
	s.Visible = false
	if got := layerLabel(s); got != "Quad 2  [solid]  (hidden)" {
		t.Errorf("layerLabel() = %q", got)
	}
	for v, ok := range map[string]bool{"#00ffcc": true, "#ABCDEF": true, "00ffcc": false, "#abc": false, "#gg0000": false} {
		if err := validateColor(v); (err == nil) != ok {
			t.Errorf("validateColor(%q) = %v", v, err)
		}
	}
}
