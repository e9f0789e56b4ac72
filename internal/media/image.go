package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const maxImageSize = 64 << 20 // 64MB

// ImageSource decodes a still image in the background.
type ImageSource struct {
	src string

	mu   sync.Mutex
	img  image.Image
	err  error
	done chan struct{}
}

// OpenImage starts decoding src, which is a file path or a base64 data URL.
func OpenImage(src string) *ImageSource {
	s := &ImageSource{src: src, done: make(chan struct{})}
	go s.load()
	return s
}

func (s *ImageSource) load() {
	defer close(s.done)
	img, err := decodeImage(s.src)

	s.mu.Lock()
	s.img, s.err = img, err
	s.mu.Unlock()

	if err != nil {
		slog.Debug("image decode failed", "src", shortSrc(s.src), "error", err)
		return
	}
	b := img.Bounds()
	slog.Debug("image decoded", "src", shortSrc(s.src), "width", b.Dx(), "height", b.Dy())
}

func (s *ImageSource) Frame() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil || s.img.Bounds().Empty() {
		return nil, false
	}
	return s.img, true
}

// Wait blocks until decoding finished and returns the decode error.
func (s *ImageSource) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *ImageSource) Close() error { return nil }

func decodeImage(src string) (image.Image, error) {
	var r io.Reader
	if rest, ok := strings.CutPrefix(src, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("unsupported data url")
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		r = bytes.NewReader(data)
	} else {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("open image: %w", err)
		}
		defer f.Close()
		r = io.LimitReader(f, maxImageSize)
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return toRGBA(img), nil
}

// toRGBA converts a decoded image once, so per-frame sampling stays on the
// RGBA fast paths.
func toRGBA(img image.Image) *image.RGBA {
	if m, ok := img.(*image.RGBA); ok {
		return m
	}
	b := img.Bounds()
	m := image.NewRGBA(b)
	draw.Draw(m, b, img, b.Min, draw.Src)
	return m
}

func shortSrc(src string) string {
	if len(src) > 64 {
		return src[:64] + "..."
	}
	return src
}
