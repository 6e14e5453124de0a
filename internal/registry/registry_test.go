package registry_test

import (
	"testing"

	"github.com/agentoven/promptplane/internal/registry"
	"github.com/agentoven/promptplane/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Run("Should reject duplicate names", func(t *testing.T) {
		b := registry.NewBuilder[int]("number")
		require.NoError(t, b.Add("one", 1))
		err := b.Add("one", 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `number "one" already registered`)
	})

	t.Run("Should reject additions after build", func(t *testing.T) {
		b := registry.NewBuilder[int]("number")
		b.Build()
		assert.Error(t, b.Add("late", 1))
	})

	t.Run("Should publish a snapshot unaffected by the builder", func(t *testing.T) {
		b := registry.NewBuilder[string]("word")
		require.NoError(t, b.Add("b", "bee"))
		require.NoError(t, b.Add("a", "ay"))
		tbl := b.Build()

		assert.Equal(t, []string{"a", "b"}, tbl.Names())
		assert.Equal(t, []string{"ay", "bee"}, tbl.List(nil))
		v, ok := tbl.Get("a")
		assert.True(t, ok)
		assert.Equal(t, "ay", v)
		_, ok = tbl.Get("missing")
		assert.False(t, ok)
	})

	t.Run("Should filter listings", func(t *testing.T) {
		b := registry.NewBuilder[int]("number")
		for i, n := range []string{"a", "b", "c", "d"} {
			require.NoError(t, b.Add(n, i))
		}
		even := b.Build().List(func(v int) bool { return v%2 == 0 })
		assert.Equal(t, []int{0, 2}, even)
	})
}

func TestBuildParameters(t *testing.T) {
	t.Run("Should build the default table", func(t *testing.T) {
		params, err := registry.BuildParameters(registry.DefaultParameters())
		require.NoError(t, err)

		def, ok := params.Get("coaching_style")
		require.True(t, ok)
		assert.True(t, def.HasDefault)
		assert.Equal(t, "supportive", def.Default)

		def, ok = params.Get("user_name")
		require.True(t, ok)
		assert.Equal(t, "get_user_profile", def.RetrievalMethod)
		assert.Equal(t, "user.name", def.Path())
	})

	t.Run("Should reject invalid extraction paths", func(t *testing.T) {
		_, err := registry.BuildParameters([]models.ParameterDefinition{
			{Name: "x", Type: models.ParamString, ExtractionPath: "a..b"},
		})
		assert.Error(t, err)

		_, err = registry.BuildParameters([]models.ParameterDefinition{
			{Name: "x", Type: models.ParamString, ExtractionPath: "a.#"},
		})
		assert.Error(t, err)
	})

	t.Run("Should reject unknown types and bad identifiers", func(t *testing.T) {
		_, err := registry.BuildParameters([]models.ParameterDefinition{{Name: "x", Type: "float"}})
		assert.Error(t, err)
		_, err = registry.BuildParameters([]models.ParameterDefinition{{Name: "9x", Type: models.ParamString}})
		assert.Error(t, err)
	})
}

func TestBuildInteractions(t *testing.T) {
	params, err := registry.BuildParameters(registry.DefaultParameters())
	require.NoError(t, err)

	t.Run("Should build the default table against the default parameters", func(t *testing.T) {
		interactions, err := registry.BuildInteractions(registry.DefaultInteractions(), params)
		require.NoError(t, err)
		in, ok := interactions.Get("alignment_analysis")
		require.True(t, ok)
		assert.True(t, in.Declares("org_values"))
		assert.False(t, in.Declares("top_issue"))
	})

	t.Run("Should reject interactions declaring unknown parameters", func(t *testing.T) {
		_, err := registry.BuildInteractions([]models.Interaction{
			{Code: "bad", Required: []string{"nope"}},
		}, params)
		assert.Error(t, err)
	})
}
