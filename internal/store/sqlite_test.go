package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/pkg/models"
)

func newSQLiteStore(t *testing.T) *store.SQLiteTemplateStore {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTemplate(id, code string) *models.TemplateMetadata {
	now := time.Date(2025, 3, 1, 12, 0, 0, 123, time.UTC)
	return &models.TemplateMetadata{
		ID:              id,
		Code:            code,
		InteractionCode: "weekly_reflection",
		Name:            "Weekly reflection",
		Description:     "End of week prompt",
		Location:        models.ObjectLocation{Bucket: "templates", Key: "weekly_reflection"},
		Version:         "v1",
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatedBy:       "ops",
		UpdatedBy:       "ops",
	}
}

func TestSQLiteTemplateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should round trip metadata", func(t *testing.T) {
		s := newSQLiteStore(t)
		in := sampleTemplate("t1", "weekly-default")
		require.NoError(t, s.CreateTemplate(ctx, in))

		got, err := s.GetTemplate(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, in.Code, got.Code)
		assert.Equal(t, in.Location, got.Location)
		assert.True(t, got.IsActive)
		assert.True(t, in.CreatedAt.Equal(got.CreatedAt))

		byCode, err := s.GetTemplateByCode(ctx, "weekly-default")
		require.NoError(t, err)
		assert.Equal(t, "t1", byCode.ID)
	})

	t.Run("Should reject duplicate ids and codes", func(t *testing.T) {
		s := newSQLiteStore(t)
		require.NoError(t, s.CreateTemplate(ctx, sampleTemplate("t1", "a")))

		var exists *store.ErrAlreadyExists
		assert.True(t, errors.As(s.CreateTemplate(ctx, sampleTemplate("t1", "b")), &exists))
		assert.True(t, errors.As(s.CreateTemplate(ctx, sampleTemplate("t2", "a")), &exists))
		assert.Equal(t, "a", exists.Key)
	})

	t.Run("Should list by interaction and page", func(t *testing.T) {
		s := newSQLiteStore(t)
		require.NoError(t, s.CreateTemplate(ctx, sampleTemplate("t2", "b")))
		require.NoError(t, s.CreateTemplate(ctx, sampleTemplate("t1", "a")))
		other := sampleTemplate("t3", "c")
		other.InteractionCode = "issue_triage"
		require.NoError(t, s.CreateTemplate(ctx, other))

		list, err := s.ListTemplatesByInteraction(ctx, "weekly_reflection")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "a", list[0].Code)

		paged, err := s.ListTemplates(ctx, store.ListFilter{Limit: 1, Offset: 2})
		require.NoError(t, err)
		require.Len(t, paged, 1)
		assert.Equal(t, "c", paged[0].Code)

		all, err := s.ListTemplates(ctx, store.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("Should update and delete existing rows only", func(t *testing.T) {
		s := newSQLiteStore(t)
		tmpl := sampleTemplate("t1", "a")
		require.NoError(t, s.CreateTemplate(ctx, tmpl))

		tmpl.IsActive = false
		tmpl.Name = "Renamed"
		require.NoError(t, s.UpdateTemplate(ctx, tmpl))
		got, err := s.GetTemplate(ctx, "t1")
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		assert.Equal(t, "Renamed", got.Name)

		var nf *store.ErrNotFound
		assert.True(t, errors.As(s.UpdateTemplate(ctx, sampleTemplate("ghost", "z")), &nf))
		require.NoError(t, s.DeleteTemplate(ctx, "t1"))
		assert.True(t, errors.As(s.DeleteTemplate(ctx, "t1"), &nf))
		_, err = s.GetTemplate(ctx, "t1")
		assert.True(t, errors.As(err, &nf))
	})
}
