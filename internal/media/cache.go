package media

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/inamate/projmap/internal/surface"
)

// Opener creates the source for a media surface.
type Opener func(s surface.Surface) (Source, error)

// NewOpener returns the default opener: still images are decoded in
// process, video goes through ffmpeg. resolve maps a stored src onto
// something the decoders can read and may be nil.
func NewOpener(ctx context.Context, ffmpegPath string, size Size, resolve func(string) string) Opener {
	if resolve == nil {
		resolve = func(src string) string { return src }
	}
	return func(s surface.Surface) (Source, error) {
		src := resolve(s.Style.MediaSrc())
		switch s.Style.FillType {
		case surface.FillImage:
			return OpenImage(src), nil
		case surface.FillVideo:
			return StartFFmpeg(ctx, ffmpegPath, VideoInput(src), size)
		}
		return nil, fmt.Errorf("fill %q has no media", s.Style.FillType)
	}
}

type cacheEntry struct {
	src    string
	source Source
	err    error
}

// Cache holds one source per media surface, keyed by surface id. Entries
// are opened on first use and reopened when the surface's src changes.
type Cache struct {
	open Opener

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

func NewCache(open Opener) *Cache {
	return &Cache{open: open, entries: make(map[string]*cacheEntry)}
}

// Frame returns the current raster for a media surface. It never blocks on
// decoding; an unready or failed source reports false.
func (c *Cache) Frame(s surface.Surface) (image.Image, bool) {
	src := s.Style.MediaSrc()
	if !s.Style.FillType.IsMedia() || src == "" {
		return nil, false
	}

	c.mu.Lock()
	e, ok := c.entries[s.ID]
	if !ok || e.src != src {
		if ok && e.source != nil {
			e.source.Close()
		}
		e = &cacheEntry{src: src}
		e.source, e.err = c.open(s)
		if e.err != nil {
			slog.Warn("open media failed", "surface", s.ID, "src", shortSrc(src), "error", e.err)
		}
		c.entries[s.ID] = e
	}
	c.mu.Unlock()

	if e.source == nil {
		return nil, false
	}
	return e.source.Frame()
}

// Get is Frame with an error for callers outside the render loop.
func (c *Cache) Get(s surface.Surface) (image.Image, error) {
	img, ok := c.Frame(s)
	if !ok {
		c.mu.Lock()
		e := c.entries[s.ID]
		c.mu.Unlock()
		if e != nil && e.err != nil {
			return nil, e.err
		}
		return nil, ErrNotReady
	}
	return img, nil
}

// Sync disposes entries whose surface is no longer in the list or no
// longer has media.
func (c *Cache) Sync(list []surface.Surface) {
	keep := make(map[string]string, len(list))
	for _, s := range list {
		if s.Style.FillType.IsMedia() {
			keep[s.ID] = s.Style.MediaSrc()
		}
	}

	c.mu.Lock()
	var stale []Source
	for id, e := range c.entries {
		if src, ok := keep[id]; !ok || src != e.src {
			if e.source != nil {
				stale = append(stale, e.source)
			}
			delete(c.entries, id)
		}
	}
	c.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close disposes every entry.
func (c *Cache) Close() error {
	c.Sync(nil)
	return nil
}
