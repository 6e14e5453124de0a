// Package models defines the shared data types of the prompt plane:
// parameter and retrieval method definitions, interactions, LLM
// configurations, template metadata and template versions.
package models

import (
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════
// ── Parameters ───────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ParamType is the declared type of a template parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamObject  ParamType = "object"
	ParamArray   ParamType = "array"
	ParamInteger ParamType = "integer"
)

// Valid reports whether t is one of the known parameter types.
func (t ParamType) Valid() bool {
	switch t {
	case ParamString, ParamObject, ParamArray, ParamInteger:
		return true
	}
	return false
}

// ParameterDefinition describes one placeholder a template may reference and
// where its value comes from when the request payload does not carry it.
type ParameterDefinition struct {
	Name            string    `json:"name"`
	Type            ParamType `json:"type"`
	Required        bool      `json:"required"` // required unless the caller supplies its own required set
	Description     string    `json:"description"`
	Default         any       `json:"default,omitempty"`
	HasDefault      bool      `json:"has_default"`
	RetrievalMethod string    `json:"retrieval_method,omitempty"`
	ExtractionPath  string    `json:"extraction_path,omitempty"` // dotted keys / array indexes into the method response
}

// Path returns the extraction path, falling back to the parameter name.
func (p ParameterDefinition) Path() string {
	if p.ExtractionPath != "" {
		return p.ExtractionPath
	}
	return p.Name
}

// ── Retrieval Methods ────────────────────────────────────────

// RetrievalMethodDefinition describes a registered external-data fetch.
// Outputs documents the response shape (dotted path -> type) so extraction
// paths can be checked when the registries are built.
type RetrievalMethodDefinition struct {
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Provides        []string          `json:"provides"`
	RequiresPayload []string          `json:"requires_payload,omitempty"`
	SchemaVersion   string            `json:"schema_version"`
	Outputs         map[string]string `json:"outputs"`
}

// ProvidesParam reports whether the method declares the given parameter.
func (d RetrievalMethodDefinition) ProvidesParam(name string) bool {
	for _, p := range d.Provides {
		if p == name {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════
// ── Interactions & Tiers ─────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// Interaction is a named kind of LLM call with a fixed parameter contract.
type Interaction struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Required    []string `json:"required"`
	Optional    []string `json:"optional,omitempty"`
}

// Parameters returns required followed by optional parameter names.
func (i Interaction) Parameters() []string {
	out := make([]string, 0, len(i.Required)+len(i.Optional))
	out = append(out, i.Required...)
	return append(out, i.Optional...)
}

// Declares reports whether name is part of the interaction's contract.
func (i Interaction) Declares(name string) bool {
	for _, p := range i.Parameters() {
		if p == name {
			return true
		}
	}
	return false
}

// Tier is a subscription level. Configurations with a nil tier apply to
// every tier not otherwise covered.
type Tier string

const (
	TierFree       Tier = "free"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// DefaultTierKey is used wherever a missing tier needs a printable key.
const DefaultTierKey = "default"

// ══════════════════════════════════════════════════════════════
// ── LLM Configuration ────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// LLMConfiguration binds an interaction (optionally per tier) to a template
// reference, a model and its sampling parameters.
type LLMConfiguration struct {
	ID               string     `json:"id" db:"id"`
	InteractionCode  string     `json:"interaction_code" db:"interaction_code" validate:"required"`
	TemplateTopic    string     `json:"template_topic" db:"template_topic" validate:"required"`
	TemplateVersion  string     `json:"template_version" db:"template_version"` // empty = latest
	ModelCode        string     `json:"model_code" db:"model_code" validate:"required"`
	Tier             *string    `json:"tier,omitempty" db:"tier"`
	Temperature      float64    `json:"temperature" db:"temperature" validate:"gte=0,lte=2"`
	MaxTokens        int        `json:"max_tokens" db:"max_tokens" validate:"gt=0"`
	TopP             float64    `json:"top_p" db:"top_p" validate:"gte=0,lte=1"`
	FrequencyPenalty float64    `json:"frequency_penalty" db:"frequency_penalty" validate:"gte=-2,lte=2"`
	PresencePenalty  float64    `json:"presence_penalty" db:"presence_penalty" validate:"gte=-2,lte=2"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	EffectiveFrom    time.Time  `json:"effective_from" db:"effective_from"`
	EffectiveUntil   *time.Time `json:"effective_until,omitempty" db:"effective_until"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	CreatedBy        string     `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy        string     `json:"updated_by,omitempty" db:"updated_by"`
}

// TierKey returns the configuration tier or DefaultTierKey.
func (c *LLMConfiguration) TierKey() string {
	if c.Tier == nil || *c.Tier == "" {
		return DefaultTierKey
	}
	return *c.Tier
}

// EffectiveAt reports whether now falls inside the effective window.
func (c *LLMConfiguration) EffectiveAt(now time.Time) bool {
	if c.EffectiveFrom.After(now) {
		return false
	}
	return c.EffectiveUntil == nil || !c.EffectiveUntil.Before(now)
}

// UsableFor reports whether the configuration is active, effective at now and
// matches tier exactly. A nil tier matches only the tenant-independent default.
func (c *LLMConfiguration) UsableFor(now time.Time, tier *string) bool {
	if !c.IsActive || !c.EffectiveAt(now) {
		return false
	}
	if tier == nil {
		return c.Tier == nil || *c.Tier == ""
	}
	return c.Tier != nil && *c.Tier == *tier
}

// TemplateRef returns the template reference the configuration points at.
func (c *LLMConfiguration) TemplateRef() TemplateRef {
	return TemplateRef{Topic: c.TemplateTopic, Version: c.TemplateVersion}
}

// ══════════════════════════════════════════════════════════════
// ── Templates ────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// LatestVersion is the logical version alias resolved by the template store.
const LatestVersion = "latest"

// TemplateRef points at a template body in the versioned template store.
type TemplateRef struct {
	Topic   string `json:"topic"`
	Version string `json:"version"`
}

// VersionOrLatest returns the version or LatestVersion when unset.
func (r TemplateRef) VersionOrLatest() string {
	if strings.TrimSpace(r.Version) == "" {
		return LatestVersion
	}
	return r.Version
}

func (r TemplateRef) String() string {
	return r.Topic + "@" + r.VersionOrLatest()
}

// Template is a resolved template body.
type Template struct {
	Topic   string `json:"topic"`
	Version string `json:"version"`
	Body    string `json:"body"`
}

// TemplateVersion describes one stored version blob.
type TemplateVersion struct {
	Topic      string    `json:"topic"`
	Version    string    `json:"version"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	IsLatest   bool      `json:"is_latest"`
}

// ObjectLocation is the object-store location of a template topic.
type ObjectLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// TemplateMetadata describes a template. Parameters are not stored; they are
// derived from the owning interaction when requested.
type TemplateMetadata struct {
	ID              string         `json:"id"`
	Code            string         `json:"code" validate:"required"`
	InteractionCode string         `json:"interaction_code" validate:"required"`
	Name            string         `json:"name" validate:"required"`
	Description     string         `json:"description,omitempty"`
	Location        ObjectLocation `json:"location"`
	Version         string         `json:"version"`
	IsActive        bool           `json:"is_active"`
	Parameters      []string       `json:"parameters,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CreatedBy       string         `json:"created_by,omitempty"`
	UpdatedBy       string         `json:"updated_by,omitempty"`
}

// ══════════════════════════════════════════════════════════════
// ── Model Registry ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ModelCapability describes a model code known to the Model Registry.
type ModelCapability struct {
	ModelID           string   `json:"model_id"`                    // canonical ID: "openai/gpt-4o-mini"
	ProviderKind      string   `json:"provider_kind"`               // "openai", "anthropic", "ollama"
	ModelName         string   `json:"model_name"`                  // provider-specific: "gpt-4o-mini"
	DisplayName       string   `json:"display_name,omitempty"`      // human-friendly name
	ContextWindow     int      `json:"context_window,omitempty"`    // max input tokens
	MaxOutputTokens   int      `json:"max_output_tokens,omitempty"` // max output tokens
	InputCostPer1K    float64  `json:"input_cost_per_1k,omitempty"`
	OutputCostPer1K   float64  `json:"output_cost_per_1k,omitempty"`
	SupportsTools     bool     `json:"supports_tools,omitempty"`
	SupportsVision    bool     `json:"supports_vision,omitempty"`
	SupportsStreaming bool     `json:"supports_streaming,omitempty"`
	SupportsThinking  bool     `json:"supports_thinking,omitempty"` // extended thinking / reasoning
	SupportsJSON      bool     `json:"supports_json,omitempty"`     // structured JSON output
	TokenParamName    string   `json:"token_param_name,omitempty"`  // "max_tokens" or "max_completion_tokens"
	Modalities        []string `json:"modalities,omitempty"`        // ["text", "image", "audio"]
	DeprecatedAt      string   `json:"deprecated_at,omitempty"`     // ISO date
	Source            string   `json:"source,omitempty"`            // "builtin", "override"
}

// ══════════════════════════════════════════════════════════════
// ── Assembly ─────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// SamplingParams are the generation parameters handed to the model caller.
type SamplingParams struct {
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	TopP             float64 `json:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`
}

// Sampling extracts the sampling parameters of a configuration.
func (c *LLMConfiguration) Sampling() SamplingParams {
	return SamplingParams{
		Temperature:      c.Temperature,
		MaxTokens:        c.MaxTokens,
		TopP:             c.TopP,
		FrequencyPenalty: c.FrequencyPenalty,
		PresencePenalty:  c.PresencePenalty,
	}
}

// AssembledPrompt is everything a caller needs to invoke generation.
type AssembledPrompt struct {
	ConfigID    string         `json:"config_id"`
	Interaction string         `json:"interaction"`
	Tier        string         `json:"tier"`
	Model       string         `json:"model"`
	Template    TemplateRef    `json:"template"`
	Sampling    SamplingParams `json:"sampling"`
	Prompt      string         `json:"prompt"`
	Values      map[string]any `json:"values"`
	Missing     []string       `json:"missing"`
	Warnings    []string       `json:"warnings"`
}
