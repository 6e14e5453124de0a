package handlers

import (
	"net/http"

	"github.com/agentoven/promptplane/pkg/models"
)

// ── Registry Handlers (read-only) ────────────────────────────

func (h *Handlers) ListParameters(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("retrieval_method")
	defs := h.Parameters.List(func(d models.ParameterDefinition) bool {
		return method == "" || d.RetrievalMethod == method
	})
	respondJSON(w, http.StatusOK, defs)
}

func (h *Handlers) ListRetrievalMethods(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Methods.List(nil))
}

func (h *Handlers) ListInteractions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Interactions.List(nil))
}

// ListModels returns the Model Registry, optionally filtered by provider.
func (h *Handlers) ListModels(w http.ResponseWriter, r *http.Request) {
	var caps []models.ModelCapability
	if provider := r.URL.Query().Get("provider"); provider != "" {
		caps = h.Models.ListByProvider(provider)
	} else {
		caps = h.Models.List()
	}
	if caps == nil {
		caps = []models.ModelCapability{}
	}
	respondJSON(w, http.StatusOK, caps)
}
