package engine

import (
	"image"
	"image/color"
	"testing"

	xdraw "golang.org/x/image/draw"

	"github.com/inamate/projmap/internal/geom"
	"github.com/inamate/projmap/internal/surface"
)

type fakeScene struct {
	list     []surface.Surface
	selected string
}

func (s *fakeScene) Surfaces() []surface.Surface { return s.list }
func (s *fakeScene) Selected() string            { return s.selected }

type panicAssets struct{}

func (panicAssets) Frame(surface.Surface) (image.Image, bool) { panic("decoder exploded") }

type notReady struct{}

func (notReady) Frame(surface.Surface) (image.Image, bool) { return nil, false }

func square(x0, y0, x1, y1 float64) []geom.Point {
	return []geom.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func solid(hex string, pts []geom.Point) surface.Surface {
	s := surface.New("", pts)
	s.Style.Color = hex
	s.Style.FillType = surface.FillSolid
	return s
}

func rgba(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

func TestRenderSolidAndBackground(t *testing.T) {
	scene := &fakeScene{list: []surface.Surface{solid("#ff0000", square(0.2, 0.2, 0.8, 0.8))}}
	c := NewCanvas(100, 100)
	r := &Renderer{Scene: scene}
	r.Render(c, 0)

	if got := c.Image().RGBAAt(50, 50); got != rgba(red) {
		t.Errorf("surface pixel = %v, want red", got)
	}
	if got := c.Image().RGBAAt(5, 5); got != rgba(projectingBG) {
		t.Errorf("projector background = %v, want black", got)
	}

	r.Authoring = true
	r.Render(c, 0)
	if got := c.Image().RGBAAt(5, 5); got != rgba(authoringBG) {
		t.Errorf("authoring background = %v, want #111111", got)
	}
}

func TestRenderSkipsInvisible(t *testing.T) {
	s := solid("#ff0000", square(0.2, 0.2, 0.8, 0.8))
	s.Visible = false
	c := NewCanvas(100, 100)
	(&Renderer{Scene: &fakeScene{list: []surface.Surface{s}}}).Render(c, 0)
	if got := c.Image().RGBAAt(50, 50); got != rgba(projectingBG) {
		t.Errorf("invisible surface painted %v", got)
	}
}

func TestRenderIsolatesSurfaceFailures(t *testing.T) {
	video := surface.New("", square(0, 0, 0.4, 0.4))
	video.Style.FillType = surface.FillVideo
	video.Style.VideoSrc = "clip.mp4"
	after := solid("#ff0000", square(0.5, 0.5, 0.9, 0.9))

	c := NewCanvas(100, 100)
	r := &Renderer{Scene: &fakeScene{list: []surface.Surface{video, after}}, Assets: panicAssets{}}
	r.Render(c, 0)

	if got := c.Image().RGBAAt(70, 70); got != rgba(red) {
		t.Errorf("surface after a failing one = %v, want red", got)
	}
	if len(c.stack) != 0 {
		t.Errorf("canvas stack depth %d after render, want 0", len(c.stack))
	}
}

func TestRenderPlaceholderWhenNotReady(t *testing.T) {
	img := surface.New("", square(0.1, 0.1, 0.9, 0.9))
	img.Style.FillType = surface.FillImage
	img.Style.ImageSrc = "wall.png"

	c := NewCanvas(100, 100)
	(&Renderer{Scene: &fakeScene{list: []surface.Surface{img}}, Assets: notReady{}}).Render(c, 0)
	if got := c.Image().RGBAAt(30, 60); got != rgba(placeholderColor) {
		t.Errorf("placeholder pixel = %v, want #333333", got)
	}
}

func TestRenderSelectionOnlyWhenAuthoring(t *testing.T) {
	s := solid("#ff0000", square(0.2, 0.2, 0.8, 0.8))
	scene := &fakeScene{list: []surface.Surface{s}, selected: s.ID}
	c := NewCanvas(100, 100)

	(&Renderer{Scene: scene}).Render(c, 0)
	if got := c.Image().RGBAAt(20, 20); got != rgba(red) {
		t.Errorf("projector vertex pixel = %v, want plain fill", got)
	}

	(&Renderer{Scene: scene, Authoring: true}).Render(c, 0)
	if got := c.Image().RGBAAt(20, 20); got != rgba(handleFill) {
		t.Errorf("authoring vertex pixel = %v, want handle", got)
	}
}

type fixedOverlay Overlay

func (o fixedOverlay) Overlay() Overlay { return Overlay(o) }

func TestRenderDrawingOverlay(t *testing.T) {
	ov := fixedOverlay{
		Drawing:   true,
		Points:    []geom.Point{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}},
		Cursor:    geom.Pt(0.5, 0.5),
		HasCursor: true,
		DragIndex: -1,
	}
	c := NewCanvas(100, 100)
	(&Renderer{Scene: &fakeScene{}, Overlay: ov, Authoring: true}).Render(c, 0)
	if got := c.Image().RGBAAt(30, 10); got == rgba(authoringBG) {
		t.Error("drawing buffer path not drawn")
	}

	c2 := NewCanvas(100, 100)
	(&Renderer{Scene: &fakeScene{}, Overlay: ov}).Render(c2, 0)
	if got := c2.Image().RGBAAt(30, 10); got != rgba(projectingBG) {
		t.Errorf("projector drew the overlay: %v", got)
	}
}

type fixedAssets struct{ img image.Image }

func (a fixedAssets) Frame(surface.Surface) (image.Image, bool) { return a.img, true }

func benchmarkRender(b *testing.B, fill surface.FillType, mode surface.MappingMode) {
	s := surface.New("", square(0.02, 0.02, 0.98, 0.98))
	s.Style.FillType = fill
	s.Style.MappingMode = mode
	s.Style.ImageSrc = "bench.png"
	r := &Renderer{Scene: &fakeScene{list: []surface.Surface{s}}, Assets: fixedAssets{testPattern(640, 360)}}
	c := NewCanvas(1280, 720)
	r.Render(c, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Render(c, 0)
	}
}

func BenchmarkRenderSolid(b *testing.B) { benchmarkRender(b, surface.FillSolid, surface.MappingStretch) }
func BenchmarkRenderCheckerboard(b *testing.B) {
	benchmarkRender(b, surface.FillCheckerboard, surface.MappingStretch)
}
func BenchmarkRenderGridStretch(b *testing.B) {
	benchmarkRender(b, surface.FillGrid, surface.MappingStretch)
}
func BenchmarkRenderImageMask(b *testing.B) { benchmarkRender(b, surface.FillImage, surface.MappingMask) }
func BenchmarkRenderImageStretch(b *testing.B) {
	benchmarkRender(b, surface.FillImage, surface.MappingStretch)
}

func TestRenderSmoothSelectsSampler(t *testing.T) {
	c := NewCanvas(10, 10)
	(&Renderer{Smooth: true}).Render(c, 0)
	if c.sampler() != xdraw.BiLinear {
		t.Error("Smooth render did not select BiLinear")
	}
	(&Renderer{}).Render(c, 0)
	if c.sampler() != xdraw.ApproxBiLinear {
		t.Error("live render did not select ApproxBiLinear")
	}
}
