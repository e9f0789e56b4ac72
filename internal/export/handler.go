package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/inamate/projmap/internal/engine"
)

type Handler struct {
	rec   *Recorder
	scene engine.Scene
	// defaults for omitted size fields
	w, h int
}

func NewHandler(rec *Recorder, scene engine.Scene, w, h int) *Handler {
	return &Handler{rec: rec, scene: scene, w: w, h: h}
}

func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/export/video", h.ExportVideo).Methods("POST")
}

type exportRequest struct {
	Format   Format  `json:"format"`
	FPS      int     `json:"fps"`
	Duration float64 `json:"duration"` // seconds
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Name     string  `json:"name"`
}

func (h *Handler) ExportVideo(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FPS == 0 {
		req.FPS = 24
	}
	if req.Width == 0 || req.Height == 0 {
		req.Width, req.Height = h.w, h.h
	}
	name := sanitizeName(req.Name)

	out, err := h.rec.Record(r.Context(), h.scene, Options{
		Format:   req.Format,
		FPS:      req.FPS,
		Duration: time.Duration(req.Duration * float64(time.Second)),
		W:        req.Width,
		H:        req.Height,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidOptions) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("ffmpeg failed", "error", err)
		http.Error(w, fmt.Sprintf("encoding failed: %v", err), http.StatusInternalServerError)
		return
	}
	defer out.Close()

	// Stream result file back
	outFile, err := os.Open(out.Path)
	if err != nil {
		slog.Error("open output file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer outFile.Close()

	stat, err := outFile.Stat()
	if err != nil {
		slog.Error("stat output file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", out.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, out.Format))
	w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))
	io.Copy(w, outFile)
}

func sanitizeName(name string) string {
	if name == "" {
		return "projection"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
