// Package contracts defines the service interfaces of the prompt plane.
//
// These interfaces are the boundary for code that embeds the server through
// pkg/server: it can wrap or replace the default implementations without
// importing internal/ packages.
package contracts

import (
	"context"

	"github.com/agentoven/promptplane/internal/cache"
	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/pkg/models"
)

// ConfigStore is a type alias for the internal configuration store.
type ConfigStore = store.ConfigStore

// TemplateMetaStore is a type alias for the internal template metadata store.
type TemplateMetaStore = store.TemplateMetaStore

// Cache is a type alias for the resolution cache.
type Cache = cache.Cache

// ErrNotFound is a type alias for the internal ErrNotFound error.
type ErrNotFound = store.ErrNotFound

// ── Configuration Resolution ────────────────────────────────

// ConfigResolver resolves the configuration for an interaction and tier.
// Default implementation: internal/resolver.Resolver
type ConfigResolver interface {
	Resolve(ctx context.Context, interactionCode string, tier *string) (*models.LLMConfiguration, error)

	// Invalidate drops cached resolutions after admin writes.
	Invalidate(ctx context.Context, interactionCode string) error
}

// ── Template Store ──────────────────────────────────────────

// TemplateStore reads and writes versioned template bodies.
// Default implementation: internal/templates.Store
type TemplateStore interface {
	Get(ctx context.Context, topic, version string) (*models.Template, error)
	ListVersions(ctx context.Context, topic string) ([]models.TemplateVersion, error)
	Save(ctx context.Context, topic, version, body string) error
	SetLatest(ctx context.Context, topic, version string) error
	Delete(ctx context.Context, topic, version string) error
	CreateVersion(ctx context.Context, topic, source, newVersion string) (*models.Template, error)
}

// ── Model Registry ──────────────────────────────────────────

// ModelRegistry is the read-only set of model codes.
// Default implementation: internal/catalog.Catalog
type ModelRegistry interface {
	Lookup(code string) (models.ModelCapability, bool)
	Has(code string) bool
	List() []models.ModelCapability
}
