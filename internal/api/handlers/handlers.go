// Package handlers implements the HTTP handlers of the prompt plane.
//
// Handlers are thin: decode, call one service, map the error taxonomy onto
// status codes, encode.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/promptplane/internal/assembler"
	"github.com/agentoven/promptplane/internal/catalog"
	"github.com/agentoven/promptplane/internal/llmconfig"
	"github.com/agentoven/promptplane/internal/registry"
	"github.com/agentoven/promptplane/internal/resolver"
	"github.com/agentoven/promptplane/internal/retrieval"
	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/internal/templates"
	"github.com/agentoven/promptplane/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Assembler    *assembler.Assembler
	Resolver     *resolver.Resolver
	Configs      *llmconfig.Service
	Templates    *templates.Store
	Metadata     *templates.MetadataService
	Parameters   *registry.Parameters
	Methods      *retrieval.Registry
	Interactions *registry.Interactions
	Models       *catalog.Catalog
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// respondErr maps the error taxonomy onto HTTP statuses: not found 404,
// invalid reference 422, conflicts 409, validation 400, the rest 500.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound     *store.ErrNotFound
		noConfig     *resolver.ConfigurationNotFoundError
		invalidRef   *resolver.InvalidConfigurationError
		missing      *assembler.MissingParametersError
		exists       *store.ErrAlreadyExists
		invalidInput *models.ValidationError
	)
	switch {
	case errors.As(err, &invalidRef):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":     err.Error(),
			"config_id": invalidRef.ConfigID,
			"field":     invalidRef.Field,
			"code":      invalidRef.Code,
		})
	case errors.As(err, &missing):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":       err.Error(),
			"interaction": missing.InteractionCode,
			"missing":     missing.Missing,
			"warnings":    missing.Warnings,
		})
	case errors.As(err, &noConfig):
		body := map[string]interface{}{
			"error":       err.Error(),
			"interaction": noConfig.InteractionCode,
		}
		if noConfig.Tier != nil {
			body["tier"] = *noConfig.Tier
		}
		respondJSON(w, http.StatusNotFound, body)
	case errors.As(err, &notFound):
		respondJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":  err.Error(),
			"entity": notFound.Entity,
			"key":    notFound.Key,
		})
	case errors.As(err, &exists), errors.Is(err, templates.ErrLatestDeletion):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalidInput):
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  err.Error(),
			"fields": invalidInput.Fields,
		})
	case errors.Is(err, templates.ErrInvalidName):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// pageParams reads limit and offset query parameters.
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, errors.New("limit must be a non-negative integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
