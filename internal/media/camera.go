package media

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
)

// Camera is the live camera background. It is off until Start succeeds.
type Camera struct {
	FFmpegPath string
	Format     string
	Device     string
	Size       Size
	// Notify receives user-facing messages about the feed.
	Notify func(level, msg string)

	mu  sync.Mutex
	src *FFmpegSource
}

// Start opens the capture device. Calling Start on a running camera is a
// no-op.
func (c *Camera) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.src != nil {
		return nil
	}

	size := c.Size
	if size.W == 0 || size.H == 0 {
		size = FrameSize
	}
	src, err := StartFFmpeg(ctx, c.FFmpegPath, CaptureInput(c.Format, c.Device), size)
	if err != nil {
		c.notify("error", "Camera unavailable: "+err.Error())
		return fmt.Errorf("start camera: %w", err)
	}
	c.src = src
	slog.Info("camera started", "device", c.Device, "format", c.Format)

	go c.watch(src)
	return nil
}

// watch turns the feed off when capture dies on its own.
func (c *Camera) watch(src *FFmpegSource) {
	<-src.Done()

	c.mu.Lock()
	current := c.src == src
	if current {
		c.src = nil
	}
	c.mu.Unlock()

	if !current {
		return
	}
	if err := src.Err(); err != nil {
		slog.Warn("camera capture failed", "device", c.Device, "error", err)
		c.notify("error", "Camera unavailable")
	}
}

// Stop ends capture immediately.
func (c *Camera) Stop() {
	c.mu.Lock()
	src := c.src
	c.src = nil
	c.mu.Unlock()

	if src != nil {
		src.Close()
		slog.Info("camera stopped", "device", c.Device)
	}
}

// Running reports whether a capture process is active.
func (c *Camera) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src != nil
}

// Frame returns the latest camera frame while the feed is on.
func (c *Camera) Frame() (image.Image, bool) {
	c.mu.Lock()
	src := c.src
	c.mu.Unlock()
	if src == nil {
		return nil, false
	}
	return src.Frame()
}

func (c *Camera) notify(level, msg string) {
	if c.Notify != nil {
		c.Notify(level, msg)
	}
}
