// Package store provides the persistence interfaces and implementations for
// LLM configurations and template metadata.
// The in-memory store serves local dev and tests; PostgreSQL backs
// configurations and SQLite backs template metadata in production.
package store

import (
	"context"

	"github.com/agentoven/promptplane/pkg/models"
)

// ── Configuration Store ─────────────────────────────────────

// ConfigFilter narrows ListConfigs.
type ConfigFilter struct {
	InteractionCode string // exact match, empty = all
	ActiveOnly      bool
	Limit           int // 0 = unbounded
	Offset          int
}

// ConfigStore persists LLM configurations keyed by id. Create and update are
// conditional writes: create fails when the id exists, update and delete
// fail when it does not.
type ConfigStore interface {
	GetConfig(ctx context.Context, id string) (*models.LLMConfiguration, error)
	ListConfigsByInteraction(ctx context.Context, interactionCode string) ([]models.LLMConfiguration, error)
	ListConfigs(ctx context.Context, filter ConfigFilter) ([]models.LLMConfiguration, error)
	CreateConfig(ctx context.Context, cfg *models.LLMConfiguration) error
	UpdateConfig(ctx context.Context, cfg *models.LLMConfiguration) error
	DeleteConfig(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// ── Template Metadata Store ─────────────────────────────────

// TemplateMetaStore persists template metadata keyed by id, with secondary
// lookups by template code and by owning interaction.
type TemplateMetaStore interface {
	GetTemplate(ctx context.Context, id string) (*models.TemplateMetadata, error)
	GetTemplateByCode(ctx context.Context, code string) (*models.TemplateMetadata, error)
	ListTemplatesByInteraction(ctx context.Context, interactionCode string) ([]models.TemplateMetadata, error)
	ListTemplates(ctx context.Context, filter ListFilter) ([]models.TemplateMetadata, error)
	CreateTemplate(ctx context.Context, tmpl *models.TemplateMetadata) error
	UpdateTemplate(ctx context.Context, tmpl *models.TemplateMetadata) error
	DeleteTemplate(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ErrAlreadyExists is returned when a create collides with an existing key.
type ErrAlreadyExists struct {
	Entity string
	Key    string
}

func (e *ErrAlreadyExists) Error() string {
	return e.Entity + " already exists: " + e.Key
}

// ── Filter helpers ──────────────────────────────────────────

// ListFilter provides common pagination options.
type ListFilter struct {
	Limit  int
	Offset int
}

// page applies offset/limit to an already ordered slice.
func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
