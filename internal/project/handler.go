package project

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inamate/projmap/internal/store"
	"github.com/inamate/projmap/internal/surface"
)

// Handler exposes the project over HTTP for remote panels.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the handler under r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/surfaces", h.List).Methods("GET")
	r.HandleFunc("/surfaces/{surfaceId}", h.Delete).Methods("DELETE")
	r.HandleFunc("/surfaces/{surfaceId}/visible", h.ToggleVisible).Methods("POST")
	r.HandleFunc("/export", h.Export).Methods("GET")
	r.HandleFunc("/import", h.Import).Methods("POST")
	r.HandleFunc("/versions", h.ListVersions).Methods("GET")
	r.HandleFunc("/versions", h.SaveVersion).Methods("POST")
	r.HandleFunc("/versions/{versionId}/restore", h.RestoreVersion).Methods("POST")
	r.HandleFunc("/versions/{versionId}", h.DeleteVersion).Methods("DELETE")
}

type saveVersionRequest struct {
	Name string `json:"name"`
}

type listResponse struct {
	Surfaces []surface.Surface `json:"surfaces"`
	Selected string            `json:"selected"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list := h.service.Surfaces()
	if list == nil {
		list = []surface.Surface{}
	}
	writeJSON(w, http.StatusOK, listResponse{Surfaces: list, Selected: h.service.Selected()})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(mux.Vars(r)["surfaceId"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ToggleVisible(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["surfaceId"]
	if err := h.service.ToggleVisible(id); err != nil {
		handleServiceError(w, err)
		return
	}
	sf, err := h.service.Get(id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sf)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="projmap.json"`)
	if err := h.service.Export(w); err != nil {
		slog.Error("export project failed", "error", err)
	}
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Import(http.MaxBytesReader(w, r.Body, 16<<20)); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.List(w, r)
}

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.service.Versions(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if versions == nil {
		versions = []store.Version{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *Handler) SaveVersion(w http.ResponseWriter, r *http.Request) {
	var req saveVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	v, err := h.service.SaveVersion(r.Context(), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RestoreVersion(r.Context(), mux.Vars(r)["versionId"]); err != nil {
		handleServiceError(w, err)
		return
	}
	h.List(w, r)
}

func (h *Handler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteVersion(r.Context(), mux.Vars(r)["versionId"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, errNoStore):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "versions unavailable"})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
