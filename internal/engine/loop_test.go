package engine

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/inamate/projmap/internal/surface"
)

type recordTarget struct {
	w, h   int
	frames int
	last   []byte
}

func (r *recordTarget) Size() (int, int) { return r.w, r.h }

func (r *recordTarget) Present(img *image.RGBA) {
	r.frames++
	r.last = append(r.last[:0], img.Pix...)
}

func TestLoopRunWithManualClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	target := &recordTarget{w: 32, h: 24}
	loop := NewLoop(&Renderer{Scene: &fakeScene{}}, target)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background(), clock) }()

	for i := 0; i < 3; i++ {
		clock.Advance(16 * time.Millisecond)
	}
	clock.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	st := loop.Stats()
	if st.Frames != 3 || target.frames != 3 {
		t.Errorf("frames = %d (target %d), want 3", st.Frames, target.frames)
	}
	if st.Elapsed != 32*time.Millisecond {
		t.Errorf("elapsed = %v, want 32ms", st.Elapsed)
	}
	if len(target.last) != 32*24*4 {
		t.Errorf("presented %d bytes, want %d", len(target.last), 32*24*4)
	}
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	clock := NewManualClock(time.Now())
	loop := NewLoop(&Renderer{}, &recordTarget{w: 4, h: 4})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := loop.Run(ctx, clock); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestLoopStepDrivesEffects(t *testing.T) {
	s := solid("#ffffff", square(0, 0, 1, 1))
	s.Style.Effect = surface.EffectStrobe
	s.Style.EffectSpeed = 5
	target := &recordTarget{w: 8, h: 8}
	loop := NewLoop(&Renderer{Scene: &fakeScene{list: []surface.Surface{s}}}, target)

	t0 := time.Unix(1000, 0)
	loop.Step(t0)
	if target.last[0] != 0xff {
		t.Errorf("strobe on at epoch: R = %d", target.last[0])
	}
	loop.Step(t0.Add(150 * time.Millisecond))
	if target.last[0] != 0 {
		t.Errorf("strobe off after one period: R = %d", target.last[0])
	}

	// the target is resized on the next frame
	target.w, target.h = 16, 4
	loop.Step(t0.Add(200 * time.Millisecond))
	if len(target.last) != 16*4*4 {
		t.Errorf("presented %d bytes after resize, want %d", len(target.last), 16*4*4)
	}
}
