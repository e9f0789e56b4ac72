package media

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/inamate/projmap/internal/typeid"
)

const maxUploadSize = 200 << 20 // 200MB

// URLPrefix is the src prefix of uploaded media.
const URLPrefix = "/media/"

var uploadTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// UploadResponse is returned from the upload endpoint. URL is the value to
// store as a surface's imageSrc or videoSrc.
type UploadResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Type   string `json:"type"`
	Name   string `json:"name"`
}

// Library stores uploaded media files in a directory.
type Library struct {
	dir string
}

// NewLibrary creates a library that stores files in dir.
func NewLibrary(dir string) *Library {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create media dir", "error", err, "dir", dir)
	}
	return &Library{dir: dir}
}

// Routes mounts upload, delete and file serving under r.
func (l *Library) Routes(r *mux.Router) {
	r.HandleFunc("/media", l.Upload).Methods("POST")
	r.HandleFunc("/media/{assetId}", l.DeleteHandler).Methods("DELETE")
	r.PathPrefix(URLPrefix).Handler(l.Serve()).Methods("GET", "HEAD")
}

// Resolve maps an uploaded /media/ src onto its file path. Other srcs are
// returned unchanged.
func (l *Library) Resolve(src string) string {
	name, ok := strings.CutPrefix(src, URLPrefix)
	if !ok {
		return src
	}
	return filepath.Join(l.dir, path.Base(name))
}

// Upload handles POST /media (multipart form with a "file" field).
func (l *Library) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "file too large (max 200MB)", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType, _, _ := strings.Cut(header.Header.Get("Content-Type"), ";")
	ext, ok := uploadTypes[contentType]
	if !ok {
		http.Error(w, "only PNG, JPEG, GIF, MP4 and WebM files are supported", http.StatusBadRequest)
		return
	}

	resp := UploadResponse{
		ID:   typeid.NewAssetID(),
		Type: strings.TrimPrefix(ext, "."),
		Name: header.Filename,
	}

	// Images are checked before they are stored.
	if strings.HasPrefix(contentType, "image/") {
		cfg, _, err := image.DecodeConfig(file)
		if err != nil {
			http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
			return
		}
		resp.Width, resp.Height = cfg.Width, cfg.Height
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			http.Error(w, "failed to read file", http.StatusInternalServerError)
			return
		}
	}

	filename := resp.ID + ext
	if err := copyFile(filepath.Join(l.dir, filename), file); err != nil {
		slog.Error("store media file", "error", err)
		os.Remove(filepath.Join(l.dir, filename))
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}
	resp.URL = URLPrefix + filename
	slog.Info("media uploaded", "id", resp.ID, "type", resp.Type, "name", resp.Name)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Import stores a local file picked by a desktop host and returns its src.
// The type is taken from the file name's extension.
func (l *Library) Import(r io.Reader, name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	known := false
	for _, e := range uploadTypes {
		known = known || e == ext
	}
	if !known {
		return "", fmt.Errorf("import media: unsupported file type %q", ext)
	}
	filename := typeid.NewAssetID() + ext
	if err := copyFile(filepath.Join(l.dir, filename), r); err != nil {
		os.Remove(filepath.Join(l.dir, filename))
		return "", fmt.Errorf("import media: %w", err)
	}
	slog.Info("media imported", "file", filename, "name", name)
	return URLPrefix + filename, nil
}

// Serve returns an http.Handler that serves stored files with caching
// headers.
func (l *Library) Serve() http.Handler {
	fs := http.FileServer(http.Dir(l.dir))
	return http.StripPrefix(strings.TrimSuffix(URLPrefix, "/"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset ids are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

// DeleteHandler handles DELETE /media/{assetId}.
func (l *Library) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := l.Delete(mux.Vars(r)["assetId"]); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a stored file by asset id.
func (l *Library) Delete(assetID string) error {
	if err := typeid.Validate(assetID, typeid.PrefixAsset); err != nil {
		return fmt.Errorf("media not found: %s", assetID)
	}
	for _, ext := range uploadTypes {
		if err := os.Remove(filepath.Join(l.dir, assetID+ext)); err == nil {
			return nil
		}
	}
	return fmt.Errorf("media not found: %s", assetID)
}

func copyFile(dst string, src io.Reader) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
