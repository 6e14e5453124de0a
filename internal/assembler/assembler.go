// Package assembler turns an interaction request into a ready-to-send prompt:
// resolve the configuration, load the template body, resolve parameters and
// substitute them.
package assembler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/agentoven/promptplane/internal/coachapi"
	"github.com/agentoven/promptplane/internal/params"
	"github.com/agentoven/promptplane/internal/registry"
	"github.com/agentoven/promptplane/internal/retrieval"
	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/pkg/models"
)

var tracer = otel.Tracer("promptplane/assembler")

// Resolver resolves the configuration for an interaction and tier.
type Resolver interface {
	Resolve(ctx context.Context, interactionCode string, tier *string) (*models.LLMConfiguration, error)
}

// TemplateSource returns template bodies by topic and version.
type TemplateSource interface {
	Get(ctx context.Context, topic, version string) (*models.Template, error)
}

// Request is one assembly request.
type Request struct {
	InteractionCode string         `json:"interaction_code"`
	Tier            *string        `json:"tier,omitempty"`
	TenantID        string         `json:"tenant_id,omitempty"`
	UserID          string         `json:"user_id,omitempty"`
	Payload         map[string]any `json:"payload,omitempty"`
	AllowMissing    bool           `json:"allow_missing,omitempty"`
}

// MissingParametersError is returned when required parameters stay
// unresolved and the request does not allow it.
type MissingParametersError struct {
	InteractionCode string
	Missing         []string
	Warnings        []string
}

func (e *MissingParametersError) Error() string {
	return fmt.Sprintf("interaction %q: missing required parameters: %s",
		e.InteractionCode, strings.Join(e.Missing, ", "))
}

// Assembler wires the resolution engines together.
type Assembler struct {
	resolver     Resolver
	templates    TemplateSource
	processor    *params.Processor
	interactions *registry.Interactions
	client       coachapi.API
}

// New creates an assembler. client is handed to retrieval methods.
func New(r Resolver, t TemplateSource, p *params.Processor, interactions *registry.Interactions, client coachapi.API) *Assembler {
	return &Assembler{
		resolver:     r,
		templates:    t,
		processor:    p,
		interactions: interactions,
		client:       client,
	}
}

// Assemble resolves and renders the prompt for req.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*models.AssembledPrompt, error) {
	ctx, span := tracer.Start(ctx, "assembler.Assemble")
	defer span.End()
	span.SetAttributes(attribute.String("interaction", req.InteractionCode))

	in, ok := a.interactions.Get(req.InteractionCode)
	if !ok {
		return nil, &store.ErrNotFound{Entity: "interaction", Key: req.InteractionCode}
	}

	cfg, err := a.resolver.Resolve(ctx, req.InteractionCode, req.Tier)
	if err != nil {
		return nil, err
	}

	tmpl, err := a.templates.Get(ctx, cfg.TemplateTopic, cfg.TemplateRef().VersionOrLatest())
	if err != nil {
		return nil, fmt.Errorf("configuration %s: %w", cfg.ID, err)
	}

	rc := &retrieval.Context{
		Client:   a.client,
		TenantID: req.TenantID,
		UserID:   req.UserID,
		Payload:  req.Payload,
	}
	res, err := a.processor.Process(ctx, tmpl.Body, req.Payload, in.Required, rc)
	if err != nil {
		return nil, err
	}
	if len(res.Missing) > 0 && !req.AllowMissing {
		return nil, &MissingParametersError{
			InteractionCode: req.InteractionCode,
			Missing:         res.Missing,
			Warnings:        res.Warnings,
		}
	}

	out := &models.AssembledPrompt{
		ConfigID:    cfg.ID,
		Interaction: req.InteractionCode,
		Tier:        cfg.TierKey(),
		Model:       cfg.ModelCode,
		Template:    models.TemplateRef{Topic: tmpl.Topic, Version: tmpl.Version},
		Sampling:    cfg.Sampling(),
		Prompt:      params.Substitute(tmpl.Body, res.Values),
		Values:      res.Values,
		Missing:     res.Missing,
		Warnings:    res.Warnings,
	}

	log.Debug().
		Str("interaction", req.InteractionCode).
		Str("config", cfg.ID).
		Str("template", out.Template.String()).
		Int("warnings", len(res.Warnings)).
		Msg("Prompt assembled")
	return out, nil
}
