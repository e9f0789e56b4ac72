// Package mirror delivers rendered frames to outputs other than the editor
// canvas: an in-process projector window or browsers over a websocket.
package mirror

import (
	"image"
	"image/draw"
	"sync"
)

// FrameTarget is a double-buffered engine.Target. The render loop writes
// with Present; a display reads with Latest. An image returned by Latest is
// never written again.
type FrameTarget struct {
	mu        sync.Mutex
	w, h      int
	front     *image.RGBA
	back      *image.RGBA
	frontLent bool
	backLent  bool
	seq       uint64
	updates   chan struct{}
}

func NewFrameTarget(w, h int) *FrameTarget {
	return &FrameTarget{w: w, h: h, updates: make(chan struct{}, 1)}
}

func (t *FrameTarget) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w, t.h
}

// SetSize changes the size of subsequent frames, for a resized window.
func (t *FrameTarget) SetSize(w, h int) {
	t.mu.Lock()
	t.w, t.h = w, h
	t.mu.Unlock()
}

// Present copies img into the back buffer and swaps it to the front.
func (t *FrameTarget) Present(img *image.RGBA) {
	t.mu.Lock()
	b := img.Bounds()
	if t.back == nil || t.backLent || t.back.Rect != b {
		t.back = image.NewRGBA(b)
		t.backLent = false
	}
	draw.Draw(t.back, b, img, b.Min, draw.Src)
	t.front, t.back = t.back, t.front
	t.frontLent, t.backLent = false, t.frontLent
	t.seq++
	t.mu.Unlock()

	select {
	case t.updates <- struct{}{}:
	default:
	}
}

// Latest returns the most recent frame and its sequence number, or nil
// before the first Present.
func (t *FrameTarget) Latest() (*image.RGBA, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.front == nil {
		return nil, 0
	}
	t.frontLent = true
	return t.front, t.seq
}

// Updates receives a value after frames are presented. Bursts coalesce.
func (t *FrameTarget) Updates() <-chan struct{} { return t.updates }
