package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/promptplane/internal/store"
)

var pgConfigColumns = []string{
	"id", "interaction_code", "template_topic", "template_version", "model_code", "tier",
	"temperature", "max_tokens", "top_p", "frequency_penalty", "presence_penalty", "is_active",
	"effective_from", "effective_until", "created_at", "updated_at", "created_by", "updated_by",
}

func TestPostgresConfigStore_GetConfig(t *testing.T) {
	t.Run("Should scan a configuration row", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		s := store.NewPostgresConfigStore(mockPool)

		now := time.Now().UTC()
		var noUntil *time.Time
		rows := mockPool.NewRows(pgConfigColumns).
			AddRow("c1", "goal_coaching", "coaching", "v2", "openai/gpt-4o-mini", strPtr("premium"),
				0.5, 256, 0.9, 0.0, 0.0, true, now, noUntil, now, now, "alice", "alice")
		mockPool.ExpectQuery("SELECT (.+) FROM llm_configurations WHERE id = \\$1").
			WithArgs("c1").
			WillReturnRows(rows)

		got, err := s.GetConfig(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, "goal_coaching", got.InteractionCode)
		assert.Equal(t, "premium", got.TierKey())
		assert.Equal(t, 256, got.MaxTokens)
		assert.Nil(t, got.EffectiveUntil)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should map no rows to ErrNotFound", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		s := store.NewPostgresConfigStore(mockPool)

		mockPool.ExpectQuery("SELECT (.+) FROM llm_configurations WHERE id = \\$1").
			WithArgs("missing").
			WillReturnRows(mockPool.NewRows(pgConfigColumns))

		_, err = s.GetConfig(context.Background(), "missing")
		var nf *store.ErrNotFound
		assert.True(t, errors.As(err, &nf))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresConfigStore_ListConfigsByInteraction(t *testing.T) {
	t.Run("Should filter by interaction code", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		s := store.NewPostgresConfigStore(mockPool)

		now := time.Now().UTC()
		var noTier *string
		var noUntil *time.Time
		rows := mockPool.NewRows(pgConfigColumns).
			AddRow("a", "issue_triage", "triage", "", "openai/gpt-4o", noTier,
				0.2, 512, 1.0, 0.0, 0.0, true, now, noUntil, now, now, "", "").
			AddRow("b", "issue_triage", "triage", "", "openai/gpt-4o", strPtr("free"),
				0.2, 512, 1.0, 0.0, 0.0, true, now, noUntil, now, now, "", "")
		mockPool.ExpectQuery("SELECT (.+) FROM llm_configurations WHERE interaction_code = \\$1 ORDER BY created_at ASC, id ASC").
			WithArgs("issue_triage").
			WillReturnRows(rows)

		got, err := s.ListConfigsByInteraction(context.Background(), "issue_triage")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "default", got[0].TierKey())
		assert.Equal(t, "free", got[1].TierKey())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresConfigStore_ConditionalWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("Should create with ON CONFLICT DO NOTHING", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		s := store.NewPostgresConfigStore(mockPool)

		mockPool.ExpectExec("INSERT INTO llm_configurations (.+) ON CONFLICT \\(id\\) DO NOTHING").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		assert.NoError(t, s.CreateConfig(ctx, testConfig("c1", "goal_coaching", nil)))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should report an existing id as ErrAlreadyExists", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		s := store.NewPostgresConfigStore(mockPool)

		mockPool.ExpectExec("INSERT INTO llm_configurations").
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		err = s.CreateConfig(ctx, testConfig("c1", "goal_coaching", nil))
		var exists *store.ErrAlreadyExists
		assert.True(t, errors.As(err, &exists))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should report phantom updates and deletes as ErrNotFound", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		s := store.NewPostgresConfigStore(mockPool)

		mockPool.ExpectExec("UPDATE llm_configurations SET (.+) WHERE id = \\$16").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectExec("DELETE FROM llm_configurations WHERE id = \\$1").
			WithArgs("ghost").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		var nf *store.ErrNotFound
		assert.True(t, errors.As(s.UpdateConfig(ctx, testConfig("ghost", "goal_coaching", nil)), &nf))
		assert.True(t, errors.As(s.DeleteConfig(ctx, "ghost"), &nf))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should surface driver errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		s := store.NewPostgresConfigStore(mockPool)

		mockPool.ExpectExec("DELETE FROM llm_configurations").
			WillReturnError(errors.New("connection reset"))
		err = s.DeleteConfig(ctx, "c1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}
