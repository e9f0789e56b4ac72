package engine

import (
	"context"
	"image"
	"sync"
	"time"
)

// TickSource delivers frame timestamps.
type TickSource interface {
	Ticks() <-chan time.Time
	Stop()
}

// Ticker is a real-time TickSource at a fixed rate.
type Ticker struct {
	t *time.Ticker
}

// NewTicker ticks fps times per second. Non-positive fps means 60.
func NewTicker(fps int) *Ticker {
	if fps <= 0 {
		fps = 60
	}
	return &Ticker{t: time.NewTicker(time.Second / time.Duration(fps))}
}

func (t *Ticker) Ticks() <-chan time.Time { return t.t.C }
func (t *Ticker) Stop()                   { t.t.Stop() }

// ManualClock is a TickSource driven by the caller, for tests and offline
// rendering. Advance blocks until the loop takes the tick.
type ManualClock struct {
	mu   sync.Mutex
	now  time.Time
	ch   chan time.Time
	once sync.Once
}

// NewManualClock starts at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start, ch: make(chan time.Time)}
}

// Now returns the clock's current time.
func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d and emits a tick.
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	m.mu.Unlock()
	m.ch <- now
}

func (m *ManualClock) Ticks() <-chan time.Time { return m.ch }

// Stop closes the tick channel. Advance must not be called afterwards.
func (m *ManualClock) Stop() {
	m.once.Do(func() { close(m.ch) })
}

// Target receives finished frames. Present must not retain img past the
// call.
type Target interface {
	Size() (w, h int)
	Present(img *image.RGBA)
}

// Stats describes the loop's recent work.
type Stats struct {
	Frames    uint64
	LastFrame time.Duration
	Elapsed   time.Duration
}

// Loop renders a frame into a Target for every tick.
type Loop struct {
	renderer *Renderer
	target   Target
	canvas   *Canvas

	mu    sync.Mutex
	start time.Time
	stats Stats
}

// NewLoop binds a renderer to a target.
func NewLoop(r *Renderer, t Target) *Loop {
	return &Loop{renderer: r, target: t, canvas: NewCanvas(0, 0)}
}

// Step renders the frame for now. The first step fixes the effect epoch.
func (l *Loop) Step(now time.Time) {
	l.mu.Lock()
	if l.start.IsZero() {
		l.start = now
	}
	elapsed := now.Sub(l.start)
	l.mu.Unlock()

	began := time.Now()
	w, h := l.target.Size()
	l.canvas.Resize(w, h)
	l.renderer.Render(l.canvas, elapsed)
	l.target.Present(l.canvas.Image())

	l.mu.Lock()
	l.stats.Frames++
	l.stats.LastFrame = time.Since(began)
	l.stats.Elapsed = elapsed
	l.mu.Unlock()
}

// Run steps on every tick until ctx is cancelled or src stops.
func (l *Loop) Run(ctx context.Context, src TickSource) error {
	defer src.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now, ok := <-src.Ticks():
			if !ok {
				return nil
			}
			l.Step(now)
		}
	}
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
