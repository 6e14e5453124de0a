package llmconfig_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/promptplane/internal/catalog"
	"github.com/agentoven/promptplane/internal/llmconfig"
	"github.com/agentoven/promptplane/internal/objectstore"
	"github.com/agentoven/promptplane/internal/registry"
	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/internal/templates"
	"github.com/agentoven/promptplane/pkg/models"
)

type recordingInvalidator struct {
	calls []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, code string) error {
	r.calls = append(r.calls, code)
	return nil
}

func newService(t *testing.T) (*llmconfig.Service, *recordingInvalidator) {
	t.Helper()
	ctx := context.Background()
	params, err := registry.BuildParameters(registry.DefaultParameters())
	require.NoError(t, err)
	interactions, err := registry.BuildInteractions(registry.DefaultInteractions(), params)
	require.NoError(t, err)
	modelRegistry, err := catalog.New(nil)
	require.NoError(t, err)

	bodies, err := templates.NewStore(objectstore.NewMemFS(), 8)
	require.NoError(t, err)
	require.NoError(t, bodies.Save(ctx, "goal-coaching", "v1", "Hi {user_name}, about {goal_title}"))

	mem := store.NewMemoryStore("")
	t.Cleanup(func() { mem.Close() })
	inv := &recordingInvalidator{}
	return llmconfig.NewService(mem, interactions, modelRegistry, bodies, inv), inv
}

func validConfig() *models.LLMConfiguration {
	return &models.LLMConfiguration{
		InteractionCode: "goal_coaching",
		TemplateTopic:   "goal-coaching",
		TemplateVersion: "v1",
		ModelCode:       "openai/gpt-4o-mini",
		Temperature:     0.7,
		MaxTokens:       512,
		TopP:            1,
	}
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	out := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		out[i] = f.Field
	}
	return out
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Should assign identity, audit fields and invalidate the cache", func(t *testing.T) {
		svc, inv := newService(t)
		cfg, err := svc.Create(ctx, validConfig(), "alice")
		require.NoError(t, err)
		assert.NotEmpty(t, cfg.ID)
		assert.True(t, cfg.IsActive)
		assert.False(t, cfg.EffectiveFrom.IsZero())
		assert.Equal(t, "alice", cfg.CreatedBy)
		assert.Equal(t, []string{"goal_coaching"}, inv.calls)

		got, err := svc.Get(ctx, cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, cfg.ModelCode, got.ModelCode)
	})

	t.Run("Should reject out-of-range sampling parameters", func(t *testing.T) {
		svc, _ := newService(t)
		cfg := validConfig()
		cfg.Temperature = 3
		cfg.MaxTokens = 0
		_, err := svc.Create(ctx, cfg, "alice")
		assert.ElementsMatch(t, []string{"temperature", "max_tokens"}, fieldsOf(t, err))
	})

	t.Run("Should reject unknown interaction and model codes", func(t *testing.T) {
		svc, _ := newService(t)
		cfg := validConfig()
		cfg.InteractionCode = "nope"
		cfg.ModelCode = "acme/unknown"
		_, err := svc.Create(ctx, cfg, "alice")
		assert.Equal(t, []string{"interaction_code", "model_code"}, fieldsOf(t, err))
	})

	t.Run("Should reject an inverted effective window", func(t *testing.T) {
		svc, _ := newService(t)
		cfg := validConfig()
		cfg.EffectiveFrom = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		until := cfg.EffectiveFrom.Add(-time.Hour)
		cfg.EffectiveUntil = &until
		_, err := svc.Create(ctx, cfg, "alice")
		assert.Equal(t, []string{"effective_until"}, fieldsOf(t, err))
	})

	t.Run("Should reject templates that do not resolve", func(t *testing.T) {
		svc, _ := newService(t)
		cfg := validConfig()
		cfg.TemplateVersion = "v9"
		_, err := svc.Create(ctx, cfg, "alice")
		assert.Equal(t, []string{"template_version"}, fieldsOf(t, err))

		cfg.TemplateTopic = "unknown-topic"
		cfg.TemplateVersion = ""
		_, err = svc.Create(ctx, cfg, "alice")
		assert.Equal(t, []string{"template_version"}, fieldsOf(t, err))
	})

	t.Run("Should accept the latest alias", func(t *testing.T) {
		svc, _ := newService(t)
		cfg := validConfig()
		cfg.TemplateVersion = ""
		_, err := svc.Create(ctx, cfg, "alice")
		require.NoError(t, err)
	})

	t.Run("Should store a blank tier as the default", func(t *testing.T) {
		svc, _ := newService(t)
		cfg := validConfig()
		blank := "  "
		cfg.Tier = &blank
		created, err := svc.Create(ctx, cfg, "alice")
		require.NoError(t, err)
		assert.Nil(t, created.Tier)
	})
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("Should update mutable fields and keep creation audit", func(t *testing.T) {
		svc, inv := newService(t)
		created, err := svc.Create(ctx, validConfig(), "alice")
		require.NoError(t, err)

		upd := validConfig()
		upd.InteractionCode = "weekly_reflection"
		upd.TemplateVersion = ""
		upd.MaxTokens = 1024
		got, err := svc.Update(ctx, created.ID, upd, "bob")
		require.NoError(t, err)
		assert.Equal(t, 1024, got.MaxTokens)
		assert.Equal(t, "alice", got.CreatedBy)
		assert.Equal(t, "bob", got.UpdatedBy)
		assert.True(t, got.IsActive)
		assert.Equal(t, created.EffectiveFrom, got.EffectiveFrom)
		assert.Equal(t, []string{"goal_coaching", "goal_coaching", "weekly_reflection"}, inv.calls)
	})

	t.Run("Should toggle activation", func(t *testing.T) {
		svc, _ := newService(t)
		created, err := svc.Create(ctx, validConfig(), "alice")
		require.NoError(t, err)

		off, err := svc.Deactivate(ctx, created.ID, "bob")
		require.NoError(t, err)
		assert.False(t, off.IsActive)

		active, err := svc.List(ctx, store.ConfigFilter{ActiveOnly: true})
		require.NoError(t, err)
		assert.Empty(t, active)

		on, err := svc.Activate(ctx, created.ID, "bob")
		require.NoError(t, err)
		assert.True(t, on.IsActive)
	})

	t.Run("Should return not found for unknown ids", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Update(ctx, "missing", validConfig(), "bob")
		var nf *store.ErrNotFound
		assert.True(t, errors.As(err, &nf))

		_, err = svc.Activate(ctx, "missing", "bob")
		assert.True(t, errors.As(err, &nf))
		assert.True(t, errors.As(svc.Delete(ctx, "missing"), &nf))
	})

	t.Run("Should delete configurations", func(t *testing.T) {
		svc, _ := newService(t)
		created, err := svc.Create(ctx, validConfig(), "alice")
		require.NoError(t, err)
		require.NoError(t, svc.Delete(ctx, created.ID))
		_, err = svc.Get(ctx, created.ID)
		var nf *store.ErrNotFound
		assert.True(t, errors.As(err, &nf))
	})
}
