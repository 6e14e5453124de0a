package templates

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/promptplane/internal/params"
	"github.com/agentoven/promptplane/internal/registry"
	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/internal/validation"
	"github.com/agentoven/promptplane/pkg/models"
)

// DefaultBucket is the object-store bucket recorded for new templates.
const DefaultBucket = "templates"

// LintReport compares a template body with its interaction contract.
type LintReport struct {
	TemplateID   string   `json:"template_id"`
	Topic        string   `json:"topic"`
	Version      string   `json:"version"`
	Placeholders []string `json:"placeholders"`
	Undeclared   []string `json:"undeclared"`   // referenced but not in the interaction
	Unreferenced []string `json:"unreferenced"` // required by the interaction but never referenced
}

// Clean reports whether the lint found nothing.
func (r *LintReport) Clean() bool {
	return len(r.Undeclared) == 0 && len(r.Unreferenced) == 0
}

// MetadataService manages template metadata records.
type MetadataService struct {
	meta         store.TemplateMetaStore
	bodies       *Store
	interactions *registry.Interactions
	validate     *validation.Validator
	now          func() time.Time
}

// NewMetadataService wires the service.
func NewMetadataService(meta store.TemplateMetaStore, bodies *Store, interactions *registry.Interactions) *MetadataService {
	return &MetadataService{
		meta:         meta,
		bodies:       bodies,
		interactions: interactions,
		validate:     validation.New(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *MetadataService) check(ctx context.Context, t *models.TemplateMetadata) error {
	if err := s.validate.Struct("template", t); err != nil {
		return err
	}
	verr := &models.ValidationError{Entity: "template"}
	if !s.interactions.Has(t.InteractionCode) {
		verr.Add("interaction_code", fmt.Sprintf("unknown interaction %q", t.InteractionCode))
	}
	if err := validTopic(t.Location.Key); err != nil {
		verr.Add("location.key", err.Error())
	}
	if err := verr.OrNil(); err != nil {
		return err
	}
	if t.Version != "" {
		if err := s.bodies.Exists(ctx, models.TemplateRef{Topic: t.Location.Key, Version: t.Version}); err != nil {
			return fmt.Errorf("template body %s@%s: %w", t.Location.Key, t.Version, err)
		}
	}
	return nil
}

// Create validates and stores a new template record. Location defaults to
// the default bucket keyed by the template code.
func (s *MetadataService) Create(ctx context.Context, t *models.TemplateMetadata, actor string) (*models.TemplateMetadata, error) {
	rec := *t
	rec.ID = uuid.NewString()
	if rec.Location.Bucket == "" {
		rec.Location.Bucket = DefaultBucket
	}
	if rec.Location.Key == "" {
		rec.Location.Key = rec.Code
	}
	if err := s.check(ctx, &rec); err != nil {
		return nil, err
	}
	now := s.now()
	rec.IsActive = true
	rec.Parameters = nil
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.CreatedBy, rec.UpdatedBy = actor, actor
	if err := s.meta.CreateTemplate(ctx, &rec); err != nil {
		return nil, err
	}
	log.Info().Str("id", rec.ID).Str("code", rec.Code).Str("interaction", rec.InteractionCode).Msg("Template metadata created")
	return &rec, nil
}

// Update replaces the mutable fields of an existing record.
func (s *MetadataService) Update(ctx context.Context, id string, t *models.TemplateMetadata, actor string) (*models.TemplateMetadata, error) {
	cur, err := s.meta.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := *t
	rec.ID = cur.ID
	rec.IsActive = cur.IsActive
	rec.CreatedAt, rec.CreatedBy = cur.CreatedAt, cur.CreatedBy
	if rec.Location.Bucket == "" {
		rec.Location.Bucket = cur.Location.Bucket
	}
	if rec.Location.Key == "" {
		rec.Location.Key = cur.Location.Key
	}
	if err := s.check(ctx, &rec); err != nil {
		return nil, err
	}
	rec.Parameters = nil
	rec.UpdatedAt, rec.UpdatedBy = s.now(), actor
	if err := s.meta.UpdateTemplate(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MetadataService) setActive(ctx context.Context, id string, active bool, actor string) (*models.TemplateMetadata, error) {
	cur, err := s.meta.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.IsActive == active {
		return cur, nil
	}
	cur.IsActive = active
	cur.UpdatedAt, cur.UpdatedBy = s.now(), actor
	if err := s.meta.UpdateTemplate(ctx, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

func (s *MetadataService) Activate(ctx context.Context, id, actor string) (*models.TemplateMetadata, error) {
	return s.setActive(ctx, id, true, actor)
}

func (s *MetadataService) Deactivate(ctx context.Context, id, actor string) (*models.TemplateMetadata, error) {
	return s.setActive(ctx, id, false, actor)
}

// Get returns a record with its parameters derived from the interaction.
func (s *MetadataService) Get(ctx context.Context, id string) (*models.TemplateMetadata, error) {
	t, err := s.meta.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fillParameters(t)
	return t, nil
}

func (s *MetadataService) GetByCode(ctx context.Context, code string) (*models.TemplateMetadata, error) {
	t, err := s.meta.GetTemplateByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.fillParameters(t)
	return t, nil
}

func (s *MetadataService) ListByInteraction(ctx context.Context, interactionCode string) ([]models.TemplateMetadata, error) {
	list, err := s.meta.ListTemplatesByInteraction(ctx, interactionCode)
	if err != nil {
		return nil, err
	}
	for i := range list {
		s.fillParameters(&list[i])
	}
	return list, nil
}

func (s *MetadataService) List(ctx context.Context, filter store.ListFilter) ([]models.TemplateMetadata, error) {
	list, err := s.meta.ListTemplates(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range list {
		s.fillParameters(&list[i])
	}
	return list, nil
}

// Parameters returns the parameter contract of the template's interaction.
func (s *MetadataService) Parameters(ctx context.Context, id string) ([]string, error) {
	t, err := s.meta.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	in, ok := s.interactions.Get(t.InteractionCode)
	if !ok {
		return nil, &store.ErrNotFound{Entity: "interaction", Key: t.InteractionCode}
	}
	return in.Parameters(), nil
}

func (s *MetadataService) fillParameters(t *models.TemplateMetadata) {
	if in, ok := s.interactions.Get(t.InteractionCode); ok {
		t.Parameters = in.Parameters()
	}
}

// Lint checks a stored body of the template against its interaction.
func (s *MetadataService) Lint(ctx context.Context, id, version string) (*LintReport, error) {
	t, err := s.meta.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	in, ok := s.interactions.Get(t.InteractionCode)
	if !ok {
		return nil, &store.ErrNotFound{Entity: "interaction", Key: t.InteractionCode}
	}
	if strings.TrimSpace(version) == "" {
		version = t.Version
	}
	body, err := s.bodies.Get(ctx, t.Location.Key, version)
	if err != nil {
		return nil, err
	}

	placeholders := params.ExtractPlaceholders(body.Body)
	report := &LintReport{
		TemplateID:   t.ID,
		Topic:        body.Topic,
		Version:      body.Version,
		Placeholders: placeholders,
		Undeclared:   []string{},
		Unreferenced: []string{},
	}
	referenced := make(map[string]bool, len(placeholders))
	for _, p := range placeholders {
		referenced[p] = true
		if !in.Declares(p) {
			report.Undeclared = append(report.Undeclared, p)
		}
	}
	for _, r := range in.Required {
		if !referenced[r] {
			report.Unreferenced = append(report.Unreferenced, r)
		}
	}
	sort.Strings(report.Unreferenced)
	return report, nil
}
