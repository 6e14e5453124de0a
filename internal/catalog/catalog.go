// Package catalog is the Model Registry: the immutable set of model codes a
// configuration may reference, with their capability data.
//
// The registry is built once at startup from the built-in defaults merged
// with an optional overrides file, and never changes afterwards.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/agentoven/promptplane/pkg/models"
	"github.com/rs/zerolog/log"
)

// Catalog is the published Model Registry. Safe for concurrent use.
type Catalog struct {
	models  map[string]models.ModelCapability // key: model_id
	aliases map[string]string                 // bare model name → model_id
	ids     []string                          // sorted
}

// New builds the registry from the built-in defaults plus overrides. An
// override with an existing model_id replaces the default entry.
func New(overrides []models.ModelCapability) (*Catalog, error) {
	c := &Catalog{
		models:  make(map[string]models.ModelCapability),
		aliases: make(map[string]string),
	}
	for _, d := range BuiltinDefaults() {
		c.models[d.ModelID] = d
	}
	for _, o := range overrides {
		if o.ModelID == "" {
			return nil, fmt.Errorf("model override without model_id")
		}
		if o.Source == "" {
			o.Source = "override"
		}
		c.models[o.ModelID] = o
	}
	for id, m := range c.models {
		c.ids = append(c.ids, id)
		if m.ModelName == "" {
			continue
		}
		// A bare name only aliases when it is unambiguous.
		if prev, dup := c.aliases[m.ModelName]; dup && prev != id {
			c.aliases[m.ModelName] = ""
			continue
		}
		c.aliases[m.ModelName] = id
	}
	sort.Strings(c.ids)
	log.Info().Int("models", len(c.ids)).Int("overrides", len(overrides)).Msg("Model registry built")
	return c, nil
}

// LoadOverrides reads a JSON array of model capabilities from path.
func LoadOverrides(path string) ([]models.ModelCapability, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model overrides: %w", err)
	}
	var out []models.ModelCapability
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse model overrides %s: %w", path, err)
	}
	return out, nil
}

// Lookup returns the capability data for a model code.
// Tries the canonical "provider/model" id, then an unambiguous bare name.
func (c *Catalog) Lookup(code string) (models.ModelCapability, bool) {
	if m, ok := c.models[code]; ok {
		return m, true
	}
	if id := c.aliases[code]; id != "" {
		return c.models[id], true
	}
	return models.ModelCapability{}, false
}

// Has reports whether code names a registered model.
func (c *Catalog) Has(code string) bool {
	_, ok := c.Lookup(code)
	return ok
}

// List returns every model ordered by id.
func (c *Catalog) List() []models.ModelCapability {
	out := make([]models.ModelCapability, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.models[id])
	}
	return out
}

// ListByProvider returns the models of one provider kind ordered by id.
func (c *Catalog) ListByProvider(providerKind string) []models.ModelCapability {
	var out []models.ModelCapability
	for _, id := range c.ids {
		if m := c.models[id]; m.ProviderKind == providerKind {
			out = append(out, m)
		}
	}
	return out
}

// Count returns the number of registered models.
func (c *Catalog) Count() int { return len(c.ids) }

// ── Built-in Defaults ───────────────────────────────────────

// BuiltinDefaults is the set of well-known models the registry always knows.
func BuiltinDefaults() []models.ModelCapability {
	return []models.ModelCapability{
		// OpenAI
		{ModelID: "openai/gpt-5", ProviderKind: "openai", ModelName: "gpt-5",
			ContextWindow: 128000, MaxOutputTokens: 16384,
			InputCostPer1K: 0.005, OutputCostPer1K: 0.015,
			SupportsTools: true, SupportsVision: true, SupportsStreaming: true, SupportsJSON: true,
			TokenParamName: "max_completion_tokens", Source: "builtin"},
		{ModelID: "openai/gpt-5-mini", ProviderKind: "openai", ModelName: "gpt-5-mini",
			ContextWindow: 128000, MaxOutputTokens: 16384,
			InputCostPer1K: 0.0004, OutputCostPer1K: 0.0016,
			SupportsTools: true, SupportsVision: true, SupportsStreaming: true, SupportsJSON: true,
			TokenParamName: "max_completion_tokens", Source: "builtin"},
		{ModelID: "openai/gpt-4o", ProviderKind: "openai", ModelName: "gpt-4o",
			ContextWindow: 128000, MaxOutputTokens: 16384,
			InputCostPer1K: 0.0025, OutputCostPer1K: 0.01,
			SupportsTools: true, SupportsVision: true, SupportsStreaming: true, SupportsJSON: true,
			TokenParamName: "max_completion_tokens", Source: "builtin"},
		{ModelID: "openai/gpt-4o-mini", ProviderKind: "openai", ModelName: "gpt-4o-mini",
			ContextWindow: 128000, MaxOutputTokens: 16384,
			InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006,
			SupportsTools: true, SupportsVision: true, SupportsStreaming: true, SupportsJSON: true,
			TokenParamName: "max_completion_tokens", Source: "builtin"},

		// Anthropic
		{ModelID: "anthropic/claude-sonnet-4-20250514", ProviderKind: "anthropic", ModelName: "claude-sonnet-4-20250514",
			ContextWindow: 200000, MaxOutputTokens: 8192,
			InputCostPer1K: 0.003, OutputCostPer1K: 0.015,
			SupportsTools: true, SupportsVision: true, SupportsStreaming: true,
			TokenParamName: "max_tokens", Source: "builtin"},
		{ModelID: "anthropic/claude-opus-4-20250514", ProviderKind: "anthropic", ModelName: "claude-opus-4-20250514",
			ContextWindow: 200000, MaxOutputTokens: 32000,
			InputCostPer1K: 0.015, OutputCostPer1K: 0.075,
			SupportsTools: true, SupportsVision: true, SupportsStreaming: true, SupportsThinking: true,
			TokenParamName: "max_tokens", Source: "builtin"},
		{ModelID: "anthropic/claude-3-5-haiku-20241022", ProviderKind: "anthropic", ModelName: "claude-3-5-haiku-20241022",
			ContextWindow: 200000, MaxOutputTokens: 8192,
			InputCostPer1K: 0.001, OutputCostPer1K: 0.005,
			SupportsTools: true, SupportsStreaming: true,
			TokenParamName: "max_tokens", Source: "builtin"},
	}
}
