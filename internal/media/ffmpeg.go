package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// FFmpegSource runs ffmpeg with raw RGBA output on stdout and keeps the most
// recent complete frame.
type FFmpegSource struct {
	size   Size
	cancel context.CancelFunc
	cmd    *exec.Cmd
	stderr bytes.Buffer

	mu     sync.Mutex
	frame  *image.RGBA
	frames int
	err    error

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

// VideoInput returns ffmpeg input args that loop src forever at its native
// rate, without audio.
func VideoInput(src string) []string {
	return []string{"-stream_loop", "-1", "-re", "-i", src, "-an"}
}

// CaptureInput returns ffmpeg input args for a capture device.
func CaptureInput(format, device string) []string {
	return []string{"-f", format, "-i", device, "-an"}
}

// StartFFmpeg starts ffmpeg with the given input args, scaling every frame
// to size. The process stops when ctx is cancelled or Close is called.
func StartFFmpeg(ctx context.Context, ffmpegPath string, input []string, size Size) (*FFmpegSource, error) {
	if size.W <= 0 || size.H <= 0 {
		return nil, fmt.Errorf("ffmpeg: invalid frame size %dx%d", size.W, size.H)
	}
	ctx, cancel := context.WithCancel(ctx)

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	args = append(args,
		"-vf", "scale="+strconv.Itoa(size.W)+":"+strconv.Itoa(size.H),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)

	s := &FFmpegSource{
		size:   size,
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.cmd = exec.CommandContext(ctx, ffmpegPath, args...)
	s.cmd.Stderr = &s.stderr
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := s.cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	go s.read(stdout)
	return s, nil
}

func (s *FFmpegSource) read(stdout io.Reader) {
	defer close(s.done)

	n := s.size.W * s.size.H * 4
	var readErr error
	for {
		img := image.NewRGBA(image.Rect(0, 0, s.size.W, s.size.H))
		if _, err := io.ReadFull(stdout, img.Pix[:n]); err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
		s.mu.Lock()
		s.frame = img
		s.frames++
		s.mu.Unlock()
		s.readyOnce.Do(func() { close(s.ready) })
	}

	waitErr := s.cmd.Wait()
	s.mu.Lock()
	switch {
	case waitErr != nil && s.frames == 0:
		s.err = fmt.Errorf("ffmpeg: %w: %s", waitErr, bytes.TrimSpace(s.stderr.Bytes()))
	case readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF):
		s.err = fmt.Errorf("ffmpeg read: %w", readErr)
	}
	err := s.err
	s.mu.Unlock()

	if err != nil {
		slog.Debug("ffmpeg source stopped", "error", err)
	}
}

func (s *FFmpegSource) Frame() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, false
	}
	return s.frame, true
}

// Frames returns the number of complete frames decoded so far.
func (s *FFmpegSource) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Ready is closed once the first frame has been decoded.
func (s *FFmpegSource) Ready() <-chan struct{} { return s.ready }

// Done is closed when the process has exited.
func (s *FFmpegSource) Done() <-chan struct{} { return s.done }

// Err returns the reason the process stopped before producing a frame.
func (s *FFmpegSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close kills the process and waits for the reader to finish. The last
// frame stays available.
func (s *FFmpegSource) Close() error {
	s.cancel()
	<-s.done
	return nil
}
