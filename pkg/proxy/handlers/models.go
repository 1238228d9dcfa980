package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/relaymesh/gateway/pkg/registry"
)

// ModelLister is the read surface the models endpoint needs from the
// Dynamic Model Registry: every canonical model, regardless of which
// providers currently back it.
type ModelLister interface {
	ListGlobalModels(ctx context.Context) ([]registry.GlobalModel, error)
}

// ModelsHandler implements the list-models external interface operation,
// returning every canonical model the registry knows about.
type ModelsHandler struct {
	Lister ModelLister
}

// NewModelsHandler creates a new models listing handler.
func NewModelsHandler(lister ModelLister) *ModelsHandler {
	return &ModelsHandler{Lister: lister}
}

type modelEntry struct {
	ID            string `json:"id"`
	ContextWindow int    `json:"context_window"`
	Capabilities  struct {
		Tools     bool `json:"tools"`
		Vision    bool `json:"vision"`
		Streaming bool `json:"streaming"`
	} `json:"capabilities"`
	IsFree bool `json:"is_free"`
}

// ServeHTTP implements http.Handler for GET /v1/models.
func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	models, err := h.Lister.ListGlobalModels(r.Context())
	if err != nil {
		http.Error(w, "failed to list models", http.StatusInternalServerError)
		return
	}

	out := make([]modelEntry, 0, len(models))
	for _, m := range models {
		e := modelEntry{
			ID:            m.ID,
			ContextWindow: m.ContextWindow,
			IsFree:        m.IsFree(),
		}
		e.Capabilities.Tools = m.Capabilities.Tools
		e.Capabilities.Vision = m.Capabilities.Vision
		e.Capabilities.Streaming = m.Capabilities.Streaming
		out = append(out, e)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{"data": out})
}
