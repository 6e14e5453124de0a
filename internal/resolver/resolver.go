// Package resolver picks the LLM configuration that applies to an
// interaction and tier at the current time.
//
// Resolution consults the cache first, then the configuration store for a
// tier-specific match, then the tenant-independent default. Whatever wins is
// checked against the Interaction and Model registries before it is returned,
// so a configuration that points at a retired model fails loudly instead of
// reaching the caller.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentoven/promptplane/internal/cache"
	"github.com/agentoven/promptplane/internal/registry"
	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("promptplane/resolver")

// DefaultTTL is how long a resolved configuration stays cached.
const DefaultTTL = 5 * time.Minute

// DefaultTierLimit bounds how many extra tiers are tracked per interaction.
const DefaultTierLimit = 64

const keyPrefix = "llmconfig:"

var wellKnownTiers = []string{
	models.DefaultTierKey,
	string(models.TierFree),
	string(models.TierPremium),
	string(models.TierEnterprise),
}

// ModelRegistry is the subset of the model catalog the resolver needs.
type ModelRegistry interface {
	Has(code string) bool
}

// ConfigurationNotFoundError is returned when neither a tier-specific nor a
// default configuration is usable.
type ConfigurationNotFoundError struct {
	InteractionCode string
	Tier            *string
}

func (e *ConfigurationNotFoundError) Error() string {
	return fmt.Sprintf("no usable configuration for interaction %q (tier %s)",
		e.InteractionCode, tierKey(e.Tier))
}

// InvalidConfigurationError is returned when the winning configuration
// references an interaction or model that is no longer registered.
type InvalidConfigurationError struct {
	ConfigID string
	Field    string // "interaction_code" or "model_code"
	Code     string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s references unknown %s %q", e.ConfigID, e.Field, e.Code)
}

// Resolver resolves configurations. Safe for concurrent use.
type Resolver struct {
	store        store.ConfigStore
	cache        cache.Cache
	interactions *registry.Interactions
	models       ModelRegistry
	ttl          time.Duration
	now          func() time.Time
	tierLimit    int

	// extra tiers seen per interaction, so Invalidate can reach every key it
	// wrote. Evicting a tier drops its cache key.
	seen sync.Map // interaction → *lru.Cache[string, struct{}]
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithTierLimit overrides DefaultTierLimit.
func WithTierLimit(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.tierLimit = n
		}
	}
}

// WithClock injects the time source used for effective-window checks.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a resolver.
func NewResolver(s store.ConfigStore, c cache.Cache, interactions *registry.Interactions, m ModelRegistry, opts ...Option) *Resolver {
	r := &Resolver{
		store:        s,
		cache:        c,
		interactions: interactions,
		models:       m,
		ttl:          DefaultTTL,
		now:          time.Now,
		tierLimit:    DefaultTierLimit,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// CacheKey returns the cache key for an interaction and tier.
func CacheKey(interactionCode string, tier *string) string {
	return keyPrefix + interactionCode + ":" + tierKey(tier)
}

func tierKey(tier *string) string {
	if tier == nil || *tier == "" {
		return models.DefaultTierKey
	}
	return *tier
}

// Resolve returns the configuration that applies to interactionCode and tier.
// An empty tier is treated like nil.
func (r *Resolver) Resolve(ctx context.Context, interactionCode string, tier *string) (*models.LLMConfiguration, error) {
	if tier != nil && *tier == "" {
		tier = nil
	}
	ctx, span := tracer.Start(ctx, "resolver.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("interaction", interactionCode),
		attribute.String("tier", tierKey(tier)),
	)

	key := CacheKey(interactionCode, tier)
	if cfg, ok := r.fromCache(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		if err := r.validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	configs, err := r.store.ListConfigsByInteraction(ctx, interactionCode)
	if err != nil {
		return nil, fmt.Errorf("list configurations for %s: %w", interactionCode, err)
	}

	now := r.now()
	var winner *models.LLMConfiguration
	if tier != nil {
		winner = pick(configs, now, tier, interactionCode)
	}
	if winner == nil {
		winner = pick(configs, now, nil, interactionCode)
	}
	if winner == nil {
		return nil, &ConfigurationNotFoundError{InteractionCode: interactionCode, Tier: tier}
	}

	if err := r.validate(winner); err != nil {
		return nil, err
	}

	r.toCache(ctx, key, winner)
	r.remember(interactionCode, tierKey(tier))
	return winner, nil
}

// pick filters configs to the ones usable for tier and returns the most
// recently updated. Conflicts are logged.
func pick(configs []models.LLMConfiguration, now time.Time, tier *string, interactionCode string) *models.LLMConfiguration {
	var usable []*models.LLMConfiguration
	for i := range configs {
		if configs[i].UsableFor(now, tier) {
			usable = append(usable, &configs[i])
		}
	}
	if len(usable) == 0 {
		return nil
	}
	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].UpdatedAt.Equal(usable[j].UpdatedAt) {
			return usable[i].ID > usable[j].ID
		}
		return usable[i].UpdatedAt.After(usable[j].UpdatedAt)
	})
	if len(usable) > 1 {
		ids := make([]string, len(usable))
		for i, c := range usable {
			ids[i] = c.ID
		}
		log.Warn().
			Str("interaction", interactionCode).
			Str("tier", tierKey(tier)).
			Str("winner", usable[0].ID).
			Strs("candidates", ids).
			Msg("⚠️ Multiple usable configurations, picked most recently updated")
	}
	out := *usable[0]
	return &out
}

func (r *Resolver) validate(cfg *models.LLMConfiguration) error {
	if !r.interactions.Has(cfg.InteractionCode) {
		return &InvalidConfigurationError{ConfigID: cfg.ID, Field: "interaction_code", Code: cfg.InteractionCode}
	}
	if !r.models.Has(cfg.ModelCode) {
		return &InvalidConfigurationError{ConfigID: cfg.ID, Field: "model_code", Code: cfg.ModelCode}
	}
	return nil
}

// ── Cache ───────────────────────────────────────────────────

func (r *Resolver) fromCache(ctx context.Context, key string) (*models.LLMConfiguration, bool) {
	if r.cache == nil {
		return nil, false
	}
	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Config cache read failed, falling back to store")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var cfg models.LLMConfiguration
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return nil, false
	}
	return &cfg, true
}

func (r *Resolver) toCache(ctx context.Context, key string, cfg *models.LLMConfiguration) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to encode configuration for cache")
		return
	}
	if err := r.cache.Set(ctx, key, string(data), r.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Config cache write failed")
	}
}

func isWellKnownTier(tier string) bool {
	for _, t := range wellKnownTiers {
		if t == tier {
			return true
		}
	}
	return false
}

func (r *Resolver) remember(interactionCode, tier string) {
	if r.cache == nil || isWellKnownTier(tier) {
		return
	}
	v, ok := r.seen.Load(interactionCode)
	if !ok {
		tiers, err := lru.NewWithEvict[string, struct{}](r.tierLimit, func(t string, _ struct{}) {
			r.dropKey(interactionCode, t)
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to track resolved tier")
			return
		}
		v, _ = r.seen.LoadOrStore(interactionCode, tiers)
	}
	v.(*lru.Cache[string, struct{}]).Add(tier, struct{}{})
}

func (r *Resolver) dropKey(interactionCode, tier string) {
	key := keyPrefix + interactionCode + ":" + tier
	if err := r.cache.Delete(context.Background(), key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to drop evicted tier key")
	}
}

// Invalidate drops every cached resolution for an interaction: the default
// key, the well-known tiers and the other tiers this process still tracks.
func (r *Resolver) Invalidate(ctx context.Context, interactionCode string) error {
	if r.cache == nil {
		return nil
	}
	tiers := append([]string(nil), wellKnownTiers...)
	if v, ok := r.seen.LoadAndDelete(interactionCode); ok {
		tiers = append(tiers, v.(*lru.Cache[string, struct{}]).Keys()...)
	}
	keys := make([]string, 0, len(tiers))
	for _, t := range tiers {
		keys = append(keys, keyPrefix+interactionCode+":"+t)
	}
	sort.Strings(keys)
	if err := r.cache.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate %s: %w", interactionCode, err)
	}
	log.Debug().Str("interaction", interactionCode).Int("keys", len(keys)).Msg("Configuration cache invalidated")
	return nil
}
