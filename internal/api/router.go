package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agentoven/promptplane/internal/api/handlers"
	"github.com/agentoven/promptplane/internal/api/middleware"
)

const serviceName = "promptplane"

// NewRouter creates the HTTP router with all API routes. adminKeys guard
// admin writes; empty leaves them open.
func NewRouter(version string, adminKeys []string, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.TenantExtractor)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(middleware.NewAdminKeyAuth(adminKeys).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-API-Key", "X-Tenant-Id", "X-User-Id", "X-Actor", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(version))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/prompts/assemble", h.AssemblePrompt)

		// LLM configurations
		r.Route("/configurations", func(r chi.Router) {
			r.Get("/", h.ListConfigurations)
			r.Post("/", h.CreateConfiguration)
			r.Get("/resolve", h.ResolveConfiguration)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetConfiguration)
				r.Put("/", h.UpdateConfiguration)
				r.Delete("/", h.DeleteConfiguration)
				r.Post("/activate", h.ActivateConfiguration)
				r.Post("/deactivate", h.DeactivateConfiguration)
			})
		})

		// Template bodies (versioned)
		r.Route("/templates/{topic}", func(r chi.Router) {
			r.Put("/latest", h.SetLatestTemplateVersion)
			r.Route("/versions", func(r chi.Router) {
				r.Get("/", h.ListTemplateVersions)
				r.Post("/", h.CreateTemplateVersion)
				r.Get("/{version}", h.GetTemplateVersion)
				r.Delete("/{version}", h.DeleteTemplateVersion)
			})
		})

		// Template metadata
		r.Route("/template-metadata", func(r chi.Router) {
			r.Get("/", h.ListTemplateMetadata)
			r.Post("/", h.CreateTemplateMetadata)
			r.Get("/code/{code}", h.GetTemplateMetadataByCode)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetTemplateMetadata)
				r.Put("/", h.UpdateTemplateMetadata)
				r.Post("/activate", h.ActivateTemplateMetadata)
				r.Post("/deactivate", h.DeactivateTemplateMetadata)
				r.Get("/parameters", h.GetTemplateParameters)
				r.Get("/lint", h.LintTemplate)
			})
		})

		// Registries (read-only)
		r.Route("/registry", func(r chi.Router) {
			r.Get("/parameters", h.ListParameters)
			r.Get("/retrieval-methods", h.ListRetrievalMethods)
			r.Get("/interactions", h.ListInteractions)
			r.Get("/models", h.ListModels)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

func versionHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": version,
			"service": serviceName,
		})
	}
}
