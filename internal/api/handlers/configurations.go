package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentoven/promptplane/internal/api/middleware"
	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── LLM Configuration Handlers ───────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ListConfigurations(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := store.ConfigFilter{
		InteractionCode: r.URL.Query().Get("interaction"),
		ActiveOnly:      r.URL.Query().Get("active") == "true",
		Limit:           limit,
		Offset:          offset,
	}
	configs, err := h.Configs.List(r.Context(), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if configs == nil {
		configs = []models.LLMConfiguration{}
	}
	respondJSON(w, http.StatusOK, configs)
}

func (h *Handlers) CreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var req models.LLMConfiguration
	if !decode(w, r, &req) {
		return
	}
	cfg, err := h.Configs.Create(r.Context(), &req, middleware.GetActor(r.Context()))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, cfg)
}

func (h *Handlers) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Configs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (h *Handlers) UpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	var req models.LLMConfiguration
	if !decode(w, r, &req) {
		return
	}
	cfg, err := h.Configs.Update(r.Context(), chi.URLParam(r, "id"), &req, middleware.GetActor(r.Context()))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (h *Handlers) DeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	if err := h.Configs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ActivateConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Configs.Activate(r.Context(), chi.URLParam(r, "id"), middleware.GetActor(r.Context()))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (h *Handlers) DeactivateConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Configs.Deactivate(r.Context(), chi.URLParam(r, "id"), middleware.GetActor(r.Context()))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}
