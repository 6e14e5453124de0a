package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/promptplane/internal/api/middleware"
	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── Template Version Handlers ────────────────────────────────
// ══════════════════════════════════════════════════════════════

// CreateTemplateVersionRequest saves a new body, or copies an existing
// version when Source is set.
type CreateTemplateVersionRequest struct {
	Version string `json:"version"`
	Body    string `json:"body,omitempty"`
	Source  string `json:"source,omitempty"`
}

type setLatestRequest struct {
	Version string `json:"version"`
}

func (h *Handlers) ListTemplateVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.Templates.ListVersions(r.Context(), chi.URLParam(r, "topic"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if versions == nil {
		versions = []models.TemplateVersion{}
	}
	respondJSON(w, http.StatusOK, versions)
}

// GetTemplateVersion returns one body; the version "latest" is resolved.
func (h *Handlers) GetTemplateVersion(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.Templates.Get(r.Context(), chi.URLParam(r, "topic"), chi.URLParam(r, "version"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tmpl)
}

func (h *Handlers) CreateTemplateVersion(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	var req CreateTemplateVersionRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Source) != "" {
		tmpl, err := h.Templates.CreateVersion(r.Context(), topic, req.Source, req.Version)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, tmpl)
		return
	}

	if err := h.Templates.Save(r.Context(), topic, req.Version, req.Body); err != nil {
		respondErr(w, r, err)
		return
	}
	log.Info().Str("topic", topic).Str("version", req.Version).Str("actor", middleware.GetActor(r.Context())).Msg("Template version saved")
	respondJSON(w, http.StatusCreated, models.Template{Topic: topic, Version: req.Version, Body: req.Body})
}

func (h *Handlers) SetLatestTemplateVersion(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	var req setLatestRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Templates.SetLatest(r.Context(), topic, req.Version); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.TemplateRef{Topic: topic, Version: req.Version})
}

func (h *Handlers) DeleteTemplateVersion(w http.ResponseWriter, r *http.Request) {
	if err := h.Templates.Delete(r.Context(), chi.URLParam(r, "topic"), chi.URLParam(r, "version")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════
// ── Template Metadata Handlers ───────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ListTemplateMetadata(w http.ResponseWriter, r *http.Request) {
	var (
		list []models.TemplateMetadata
		err  error
	)
	if interaction := r.URL.Query().Get("interaction"); interaction != "" {
		list, err = h.Metadata.ListByInteraction(r.Context(), interaction)
	} else {
		limit, offset, perr := pageParams(r)
		if perr != nil {
			respondError(w, http.StatusBadRequest, perr.Error())
			return
		}
		list, err = h.Metadata.List(r.Context(), store.ListFilter{Limit: limit, Offset: offset})
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if list == nil {
		list = []models.TemplateMetadata{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) CreateTemplateMetadata(w http.ResponseWriter, r *http.Request) {
	var req models.TemplateMetadata
	if !decode(w, r, &req) {
		return
	}
	t, err := h.Metadata.Create(r.Context(), &req, middleware.GetActor(r.Context()))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

func (h *Handlers) GetTemplateMetadata(w http.ResponseWriter, r *http.Request) {
	t, err := h.Metadata.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handlers) GetTemplateMetadataByCode(w http.ResponseWriter, r *http.Request) {
	t, err := h.Metadata.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handlers) UpdateTemplateMetadata(w http.ResponseWriter, r *http.Request) {
	var req models.TemplateMetadata
	if !decode(w, r, &req) {
		return
	}
	t, err := h.Metadata.Update(r.Context(), chi.URLParam(r, "id"), &req, middleware.GetActor(r.Context()))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handlers) ActivateTemplateMetadata(w http.ResponseWriter, r *http.Request) {
	t, err := h.Metadata.Activate(r.Context(), chi.URLParam(r, "id"), middleware.GetActor(r.Context()))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handlers) DeactivateTemplateMetadata(w http.ResponseWriter, r *http.Request) {
	t, err := h.Metadata.Deactivate(r.Context(), chi.URLParam(r, "id"), middleware.GetActor(r.Context()))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// GetTemplateParameters returns the parameter contract of the template's
// interaction.
func (h *Handlers) GetTemplateParameters(w http.ResponseWriter, r *http.Request) {
	names, err := h.Metadata.Parameters(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	defs := make([]models.ParameterDefinition, 0, len(names))
	for _, n := range names {
		if d, ok := h.Parameters.Get(n); ok {
			defs = append(defs, d)
		}
	}
	respondJSON(w, http.StatusOK, defs)
}

// LintTemplate compares a stored body with the interaction contract.
// GET /api/v1/template-metadata/{id}/lint?version=
func (h *Handlers) LintTemplate(w http.ResponseWriter, r *http.Request) {
	report, err := h.Metadata.Lint(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("version"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
