// Package export records the projector output offline and encodes it with
// ffmpeg.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/inamate/projmap/internal/engine"
)

const (
	maxFPS      = 120
	maxDuration = 10 * time.Minute
	maxSide     = 3840
)

var ErrInvalidOptions = errors.New("invalid export options")

type Format string

const (
	FormatMP4  Format = "mp4"
	FormatGIF  Format = "gif"
	FormatWebM Format = "webm"
)

// ContentType returns the MIME type of an encoded recording.
func (f Format) ContentType() string {
	switch f {
	case FormatMP4:
		return "video/mp4"
	case FormatGIF:
		return "image/gif"
	case FormatWebM:
		return "video/webm"
	}
	return "application/octet-stream"
}

type Options struct {
	Format   Format
	FPS      int
	Duration time.Duration
	W, H     int
}

func (o Options) validate() error {
	switch o.Format {
	case FormatMP4, FormatGIF, FormatWebM:
	default:
		return fmt.Errorf("%w: format must be mp4, gif, or webm", ErrInvalidOptions)
	}
	if o.FPS <= 0 || o.FPS > maxFPS {
		return fmt.Errorf("%w: fps must be 1-%d", ErrInvalidOptions, maxFPS)
	}
	if o.Duration <= 0 || o.Duration > maxDuration {
		return fmt.Errorf("%w: duration must be positive and at most %v", ErrInvalidOptions, maxDuration)
	}
	if o.W <= 0 || o.H <= 0 || o.W > maxSide || o.H > maxSide {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidOptions, o.W, o.H)
	}
	return nil
}

// Frames is the number of frames a recording of o contains.
func (o Options) Frames() int {
	return max(1, int(math.Ceil(o.Duration.Seconds()*float64(o.FPS))))
}

// Recording is an encoded file in a temporary directory. Close removes it.
type Recording struct {
	Path   string
	Format Format
	Frames int
	dir    string
}

func (r *Recording) Close() error {
	return os.RemoveAll(r.dir)
}

// Recorder renders projector frames with a synthetic clock, so effects
// advance exactly one frame interval per frame regardless of render speed.
type Recorder struct {
	FFmpegPath string
	Assets     engine.Assets
}

// Record renders opts.Frames() frames of scene and encodes them.
func (rec *Recorder) Record(ctx context.Context, scene engine.Scene, opts Options) (*Recording, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "projmap-export-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	out := &Recording{Format: opts.Format, Frames: opts.Frames(), dir: dir}

	slog.Info("export started", "format", opts.Format, "frames", out.Frames, "fps", opts.FPS)
	if err := rec.renderFrames(ctx, scene, opts, dir); err != nil {
		out.Close()
		return nil, err
	}

	out.Path, err = rec.encode(ctx, opts, dir)
	if err != nil {
		out.Close()
		return nil, err
	}
	if st, err := os.Stat(out.Path); err == nil {
		slog.Info("export complete", "format", opts.Format, "size", st.Size())
	}
	return out, nil
}

// frameWriter is the loop target that writes each frame as a numbered PNG.
type frameWriter struct {
	w, h int
	dir  string
	n    int
	enc  png.Encoder
	err  error
}

func (f *frameWriter) Size() (int, int) { return f.w, f.h }

func (f *frameWriter) Present(img *image.RGBA) {
	if f.err != nil {
		return
	}
	path := filepath.Join(f.dir, fmt.Sprintf("frame_%04d.png", f.n))
	file, err := os.Create(path)
	if err != nil {
		f.err = fmt.Errorf("create frame file: %w", err)
		return
	}
	if err := f.enc.Encode(file, img); err != nil {
		file.Close()
		f.err = fmt.Errorf("encode frame %d: %w", f.n, err)
		return
	}
	if err := file.Close(); err != nil {
		f.err = fmt.Errorf("write frame %d: %w", f.n, err)
		return
	}
	f.n++
}

func (rec *Recorder) renderFrames(ctx context.Context, scene engine.Scene, opts Options, dir string) error {
	target := &frameWriter{w: opts.W, h: opts.H, dir: dir, enc: png.Encoder{CompressionLevel: png.BestSpeed}}
	loop := engine.NewLoop(&engine.Renderer{Scene: scene, Assets: rec.Assets, Smooth: true}, target)

	epoch := time.Unix(0, 0)
	interval := time.Second / time.Duration(opts.FPS)
	frames := opts.Frames()
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("render frames: %w", err)
		}
		loop.Step(epoch.Add(time.Duration(i) * interval))
		if target.err != nil {
			return target.err
		}
	}
	if target.n != frames {
		return fmt.Errorf("render frames: wrote %d of %d", target.n, frames)
	}
	return nil
}

func (rec *Recorder) encode(ctx context.Context, opts Options, dir string) (string, error) {
	fps := strconv.Itoa(opts.FPS)
	frames := filepath.Join(dir, "frame_%04d.png")
	output := filepath.Join(dir, "output."+string(opts.Format))

	var err error
	switch opts.Format {
	case FormatMP4:
		err = rec.runFfmpeg(ctx,
			"-framerate", fps,
			"-i", frames,
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			"-crf", "18",
			"-preset", "fast",
			"-movflags", "+faststart",
			output,
		)

	case FormatGIF:
		// Two-pass GIF: generate palette then apply
		palettePath := filepath.Join(dir, "palette.png")
		err = rec.runFfmpeg(ctx,
			"-framerate", fps,
			"-i", frames,
			"-vf", "palettegen=stats_mode=diff",
			palettePath,
		)
		if err == nil {
			err = rec.runFfmpeg(ctx,
				"-framerate", fps,
				"-i", frames,
				"-i", palettePath,
				"-lavfi", "paletteuse=dither=bayer:bayer_scale=5:diff_mode=rectangle",
				output,
			)
		}

	case FormatWebM:
		err = rec.runFfmpeg(ctx,
			"-framerate", fps,
			"-i", frames,
			"-c:v", "libvpx-vp9",
			"-crf", "30",
			"-b:v", "0",
			"-pix_fmt", "yuva420p",
			output,
		)
	}
	if err != nil {
		return "", fmt.Errorf("encoding failed: %w", err)
	}
	return output, nil
}

func (rec *Recorder) runFfmpeg(ctx context.Context, args ...string) error {
	// Prepend -y to overwrite output without prompting
	fullArgs := append([]string{"-y"}, args...)
	cmd := exec.CommandContext(ctx, rec.FFmpegPath, fullArgs...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%v: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}
