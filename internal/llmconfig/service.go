// Package llmconfig is the admin path for LLM configurations: validated
// writes to the configuration store followed by resolver cache invalidation.
package llmconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/promptplane/internal/registry"
	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/internal/templates"
	"github.com/agentoven/promptplane/internal/validation"
	"github.com/agentoven/promptplane/pkg/models"
)

// ModelRegistry reports whether a model code is known.
type ModelRegistry interface {
	Has(code string) bool
}

// TemplateChecker reports whether a template reference resolves.
type TemplateChecker interface {
	Exists(ctx context.Context, ref models.TemplateRef) error
}

// Invalidator drops cached resolutions for an interaction.
type Invalidator interface {
	Invalidate(ctx context.Context, interactionCode string) error
}

// Service manages LLM configurations.
type Service struct {
	store        store.ConfigStore
	interactions *registry.Interactions
	models       ModelRegistry
	templates    TemplateChecker
	cache        Invalidator
	validate     *validation.Validator
	now          func() time.Time
}

// NewService wires the service. cache may be nil.
func NewService(s store.ConfigStore, interactions *registry.Interactions, m ModelRegistry, t TemplateChecker, cache Invalidator) *Service {
	return &Service{
		store:        s,
		interactions: interactions,
		models:       m,
		templates:    t,
		cache:        cache,
		validate:     validation.New(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func normalizeTier(cfg *models.LLMConfiguration) {
	if cfg.Tier == nil {
		return
	}
	t := strings.TrimSpace(*cfg.Tier)
	if t == "" {
		cfg.Tier = nil
		return
	}
	cfg.Tier = &t
}

// check validates field ranges and every reference the configuration makes.
func (s *Service) check(ctx context.Context, cfg *models.LLMConfiguration) error {
	if err := s.validate.Struct("configuration", cfg); err != nil {
		return err
	}
	verr := &models.ValidationError{Entity: "configuration"}
	if !s.interactions.Has(cfg.InteractionCode) {
		verr.Add("interaction_code", fmt.Sprintf("unknown interaction %q", cfg.InteractionCode))
	}
	if !s.models.Has(cfg.ModelCode) {
		verr.Add("model_code", fmt.Sprintf("unknown model %q", cfg.ModelCode))
	}
	if cfg.Tier != nil && *cfg.Tier == models.DefaultTierKey {
		verr.Add("tier", fmt.Sprintf("%q is reserved, omit tier for the default configuration", models.DefaultTierKey))
	}
	if cfg.EffectiveUntil != nil && cfg.EffectiveUntil.Before(cfg.EffectiveFrom) {
		verr.Add("effective_until", "must not be before effective_from")
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	ref := cfg.TemplateRef()
	if err := s.templates.Exists(ctx, ref); err != nil {
		if errors.Is(err, templates.ErrVersionNotFound) || errors.Is(err, templates.ErrInvalidName) {
			verr.Add("template_version", fmt.Sprintf("template %s does not resolve", ref))
			return verr
		}
		return fmt.Errorf("check template %s: %w", ref, err)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, codes ...string) {
	if s.cache == nil {
		return
	}
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		if seen[c] {
			continue
		}
		seen[c] = true
		if err := s.cache.Invalidate(ctx, c); err != nil {
			log.Warn().Err(err).Str("interaction", c).Msg("Failed to invalidate configuration cache")
		}
	}
}

// Create validates and stores a new configuration. EffectiveFrom defaults to
// now; new configurations start active.
func (s *Service) Create(ctx context.Context, cfg *models.LLMConfiguration, actor string) (*models.LLMConfiguration, error) {
	rec := *cfg
	rec.ID = uuid.NewString()
	normalizeTier(&rec)
	now := s.now()
	if rec.EffectiveFrom.IsZero() {
		rec.EffectiveFrom = now
	}
	if err := s.check(ctx, &rec); err != nil {
		return nil, err
	}
	rec.IsActive = true
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.CreatedBy, rec.UpdatedBy = actor, actor
	if err := s.store.CreateConfig(ctx, &rec); err != nil {
		return nil, err
	}
	s.invalidate(ctx, rec.InteractionCode)

	log.Info().
		Str("id", rec.ID).
		Str("interaction", rec.InteractionCode).
		Str("tier", rec.TierKey()).
		Str("model", rec.ModelCode).
		Msg("📝 Configuration created")
	return &rec, nil
}

// Update replaces the mutable fields of a configuration. Activation state
// and creation audit fields are kept.
func (s *Service) Update(ctx context.Context, id string, cfg *models.LLMConfiguration, actor string) (*models.LLMConfiguration, error) {
	cur, err := s.store.GetConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := *cfg
	rec.ID = cur.ID
	rec.IsActive = cur.IsActive
	rec.CreatedAt, rec.CreatedBy = cur.CreatedAt, cur.CreatedBy
	normalizeTier(&rec)
	if rec.EffectiveFrom.IsZero() {
		rec.EffectiveFrom = cur.EffectiveFrom
	}
	if err := s.check(ctx, &rec); err != nil {
		return nil, err
	}
	rec.UpdatedAt, rec.UpdatedBy = s.now(), actor
	if err := s.store.UpdateConfig(ctx, &rec); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cur.InteractionCode, rec.InteractionCode)
	log.Info().Str("id", rec.ID).Str("interaction", rec.InteractionCode).Msg("Configuration updated")
	return &rec, nil
}

func (s *Service) setActive(ctx context.Context, id string, active bool, actor string) (*models.LLMConfiguration, error) {
	cur, err := s.store.GetConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.IsActive == active {
		return cur, nil
	}
	cur.IsActive = active
	cur.UpdatedAt, cur.UpdatedBy = s.now(), actor
	if err := s.store.UpdateConfig(ctx, cur); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cur.InteractionCode)
	log.Info().Str("id", id).Bool("active", active).Msg("Configuration activation changed")
	return cur, nil
}

// Activate makes a configuration eligible for resolution.
func (s *Service) Activate(ctx context.Context, id, actor string) (*models.LLMConfiguration, error) {
	return s.setActive(ctx, id, true, actor)
}

// Deactivate withdraws a configuration from resolution without deleting it.
func (s *Service) Deactivate(ctx context.Context, id, actor string) (*models.LLMConfiguration, error) {
	return s.setActive(ctx, id, false, actor)
}

// Delete removes a configuration.
func (s *Service) Delete(ctx context.Context, id string) error {
	cur, err := s.store.GetConfig(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteConfig(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cur.InteractionCode)
	log.Info().Str("id", id).Msg("🗑️ Configuration deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.LLMConfiguration, error) {
	return s.store.GetConfig(ctx, id)
}

func (s *Service) List(ctx context.Context, filter store.ConfigFilter) ([]models.LLMConfiguration, error) {
	return s.store.ListConfigs(ctx, filter)
}
