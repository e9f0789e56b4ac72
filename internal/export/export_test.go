package export

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/inamate/projmap/internal/surface"
)

const fakeFFmpegEnv = "PROJMAP_FAKE_FFMPEG"

// TestMain lets the test binary stand in for ffmpeg. With fakeFFmpegEnv set
// to a log path it appends its arguments there and writes the output file.
func TestMain(m *testing.M) {
	if logPath := os.Getenv(fakeFFmpegEnv); logPath != "" {
		os.Exit(fakeFFmpeg(logPath, os.Args[1:]))
	}
	os.Exit(m.Run())
}

func fakeFFmpeg(logPath string, args []string) int {
	if logPath == "fail" {
		fmt.Fprintln(os.Stderr, "Unknown encoder 'libx264'")
		return 1
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 2
	}
	fmt.Fprintln(f, strings.Join(args, " "))
	f.Close()
	if err := os.WriteFile(args[len(args)-1], []byte("encoded"), 0644); err != nil {
		return 3
	}
	return 0
}

type staticScene []surface.Surface

func (s staticScene) Surfaces() []surface.Surface { return s }
func (s staticScene) Selected() string            { return "" }

func fakeRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "ffmpeg.log")
	t.Setenv(fakeFFmpegEnv, logPath)
	return &Recorder{FFmpegPath: os.Args[0]}, logPath
}

func TestRecordWritesFramesAndEncodes(t *testing.T) {
	tests := []struct {
		format Format
		runs   int
		codec  string
	}{
		{FormatMP4, 1, "libx264"},
		{FormatWebM, 1, "libvpx-vp9"},
		{FormatGIF, 2, "paletteuse"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			rec, logPath := fakeRecorder(t)
			opts := Options{Format: tt.format, FPS: 10, Duration: 250 * time.Millisecond, W: 32, H: 18}
			out, err := rec.Record(context.Background(), staticScene(surface.NewSampleLayout()), opts)
			if err != nil {
				t.Fatalf("Record() failed: %v", err)
			}
			defer out.Close()

			if out.Frames != 3 {
				t.Errorf("Frames = %d, want 3", out.Frames)
			}
			frames, _ := filepath.Glob(filepath.Join(filepath.Dir(out.Path), "frame_*.png"))
			if len(frames) != 3 {
				t.Fatalf("wrote %d frame files, want 3", len(frames))
			}
			f, err := os.Open(frames[0])
			if err != nil {
				t.Fatalf("open frame failed: %v", err)
			}
			img, err := png.Decode(f)
			f.Close()
			if err != nil {
				t.Fatalf("png.Decode() failed: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 18 {
				t.Errorf("frame 0 bounds = %v", b)
			}

			log, _ := os.ReadFile(logPath)
			runs := strings.Split(strings.TrimSpace(string(log)), "\n")
			if len(runs) != tt.runs || !strings.Contains(runs[len(runs)-1], tt.codec) {
				t.Errorf("ffmpeg runs = %q", runs)
			}
			if !strings.HasPrefix(runs[0], "-y -framerate 10 -i ") {
				t.Errorf("ffmpeg args = %q", runs[0])
			}
			if data, _ := os.ReadFile(out.Path); string(data) != "encoded" {
				t.Errorf("output = %q", data)
			}

			dir := filepath.Dir(out.Path)
			out.Close()
			if _, err := os.Stat(dir); !os.IsNotExist(err) {
				t.Error("Close() left the temp dir")
			}
		})
	}
}

func TestRecordRejectsOptions(t *testing.T) {
	rec, _ := fakeRecorder(t)
	valid := Options{Format: FormatMP4, FPS: 24, Duration: time.Second, W: 64, H: 36}
	for name, mutate := range map[string]func(*Options){
		"format":   func(o *Options) { o.Format = "avi" },
		"fps":      func(o *Options) { o.FPS = 0 },
		"too fast": func(o *Options) { o.FPS = 500 },
		"duration": func(o *Options) { o.Duration = 0 },
		"size":     func(o *Options) { o.W = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			opts := valid
			mutate(&opts)
			if _, err := rec.Record(context.Background(), staticScene(nil), opts); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("Record() error = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func TestRecordCancelled(t *testing.T) {
	rec, _ := fakeRecorder(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rec.Record(ctx, staticScene(nil), Options{Format: FormatMP4, FPS: 24, Duration: time.Second, W: 8, H: 8})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Record() error = %v, want context.Canceled", err)
	}
}

func TestRecordEncoderFailure(t *testing.T) {
	t.Setenv(fakeFFmpegEnv, "fail")
	rec := &Recorder{FFmpegPath: os.Args[0]}
	_, err := rec.Record(context.Background(), staticScene(nil), Options{Format: FormatMP4, FPS: 5, Duration: time.Second, W: 8, H: 8})
	if err == nil || !strings.Contains(err.Error(), "Unknown encoder") {
		t.Errorf("Record() error = %v, want ffmpeg stderr", err)
	}
}

func TestHandlerExportVideo(t *testing.T) {
	rec, _ := fakeRecorder(t)
	r := mux.NewRouter()
	NewHandler(rec, staticScene(surface.NewSampleLayout()), 16, 9).Routes(r)

	w := httptest.NewRecorder()
	body := `{"format":"webm","fps":5,"duration":0.4,"name":"stage left!"}`
	r.ServeHTTP(w, httptest.NewRequest("POST", "/export/video", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "video/webm" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="stage-left-.webm"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if w.Body.String() != "encoded" {
		t.Errorf("body = %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/export/video", strings.NewReader(`{"format":"mov","duration":1}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad format = %d, want 400", w.Code)
	}
}
