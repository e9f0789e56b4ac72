// Package media resolves the raster content behind image and video fills and
// the camera background. Sources decode off the render thread and expose
// only their latest frame.
package media

import (
	"errors"
	"image"
)

// ErrNotReady is returned when a source has no decoded frame yet.
var ErrNotReady = errors.New("media not ready")

// Source is a decoded raster that may still be loading.
type Source interface {
	// Frame returns the current frame, or false while nothing has been
	// decoded. The returned image must not be modified.
	Frame() (image.Image, bool)
	Close() error
}

// Size is the frame size ffmpeg scales video to. Zero keeps the native
// size for images.
type Size struct {
	W, H int
}

// FrameSize is the default decode size for video fills.
var FrameSize = Size{W: 1280, H: 720}
