package handlers

import (
	"net/http"

	"github.com/agentoven/promptplane/internal/api/middleware"
	"github.com/agentoven/promptplane/internal/assembler"
)

// AssemblePrompt resolves configuration, template and parameters for one
// interaction and returns the rendered prompt.
// POST /api/v1/prompts/assemble
func (h *Handlers) AssemblePrompt(w http.ResponseWriter, r *http.Request) {
	var req assembler.Request
	if !decode(w, r, &req) {
		return
	}
	if req.InteractionCode == "" {
		respondError(w, http.StatusBadRequest, "interaction_code is required")
		return
	}
	if req.TenantID == "" {
		req.TenantID = middleware.GetTenantID(r.Context())
	}
	if req.UserID == "" {
		req.UserID = middleware.GetUserID(r.Context())
	}

	out, err := h.Assembler.Assemble(r.Context(), req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// ResolveConfiguration returns the configuration that applies now.
// GET /api/v1/configurations/resolve?interaction=&tier=
func (h *Handlers) ResolveConfiguration(w http.ResponseWriter, r *http.Request) {
	interaction := r.URL.Query().Get("interaction")
	if interaction == "" {
		respondError(w, http.StatusBadRequest, "interaction query parameter is required")
		return
	}
	cfg, err := h.Resolver.Resolve(r.Context(), interaction, optionalString(r.URL.Query().Get("tier")))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}
