package assist

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inamate/projmap/internal/surface"
)

// Generator produces layouts; *Client is the production implementation.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Handler exposes the assistant over HTTP. Generated records are handed to
// apply, which creates them and returns the new ids.
type Handler struct {
	gen   Generator
	apply func([]surface.Surface) []string
}

func NewHandler(gen Generator, apply func([]surface.Surface) []string) *Handler {
	return &Handler{gen: gen, apply: apply}
}

func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/assist", h.Generate).Methods("POST")
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Count  int    `json:"count"`
}

type generateResponse struct {
	Layout  string   `json:"layout"`
	Created []string `json:"created"`
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := h.gen.Generate(r.Context(), Request{Prompt: req.Prompt, Count: req.Count})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyPrompt):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrNoCredentials):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		default:
			slog.Warn("assistant failed", "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return
	}

	created := h.apply(res.Shapes)
	if created == nil {
		created = []string{}
	}
	writeJSON(w, http.StatusOK, generateResponse{Layout: res.ID, Created: created})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
