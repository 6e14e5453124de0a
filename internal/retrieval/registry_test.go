package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentoven/promptplane/internal/coachapi"
	"github.com/agentoven/promptplane/internal/registry"
	"github.com/agentoven/promptplane/internal/retrieval"
	"github.com/agentoven/promptplane/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	user   map[string]any
	goals  []map[string]any
	goal   map[string]any
	team   []map[string]any
	issues []map[string]any
	org    map[string]any

	goalIDs []string
	status  string
}

func (f *fakeAPI) GetUser(_ context.Context, _, _ string) (map[string]any, error) {
	if f.user == nil {
		return nil, coachapi.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeAPI) ListGoals(_ context.Context, _, _ string) ([]map[string]any, error) {
	return f.goals, nil
}

func (f *fakeAPI) GetGoal(_ context.Context, _, goalID string) (map[string]any, error) {
	f.goalIDs = append(f.goalIDs, goalID)
	return f.goal, nil
}

func (f *fakeAPI) ListTeam(_ context.Context, _, _ string) ([]map[string]any, error) {
	return f.team, nil
}

func (f *fakeAPI) ListIssues(_ context.Context, _, _, status string) ([]map[string]any, error) {
	f.status = status
	return f.issues, nil
}

func (f *fakeAPI) GetOrganization(_ context.Context, _ string) (map[string]any, error) {
	return f.org, nil
}

func noop() retrieval.Method {
	return retrieval.MethodFunc(func(context.Context, *retrieval.Context) (map[string]any, error) {
		return map[string]any{}, nil
	})
}

func TestBuilder_Register(t *testing.T) {
	t.Run("Should reject duplicates", func(t *testing.T) {
		b := retrieval.NewBuilder()
		def := models.RetrievalMethodDefinition{Name: "m", Provides: []string{"p"}, Outputs: map[string]string{"p": "string"}}
		require.NoError(t, b.Register(def, noop()))
		assert.Error(t, b.Register(def, noop()))
	})

	t.Run("Should require provides and outputs", func(t *testing.T) {
		b := retrieval.NewBuilder()
		assert.Error(t, b.Register(models.RetrievalMethodDefinition{Name: "m", Outputs: map[string]string{"p": "string"}}, noop()))
		assert.Error(t, b.Register(models.RetrievalMethodDefinition{Name: "m", Provides: []string{"p"}}, noop()))
		assert.Error(t, b.Register(models.RetrievalMethodDefinition{Name: "m", Provides: []string{"p"}, Outputs: map[string]string{"p": "string"}}, nil))
	})
}

func TestBuilder_Build(t *testing.T) {
	params := func(t *testing.T, defs ...models.ParameterDefinition) *registry.Parameters {
		t.Helper()
		p, err := registry.BuildParameters(defs)
		require.NoError(t, err)
		return p
	}

	t.Run("Should reject parameters routed to unknown methods", func(t *testing.T) {
		b := retrieval.NewBuilder()
		_, err := b.Build(params(t, models.ParameterDefinition{Name: "x", Type: models.ParamString, RetrievalMethod: "nope"}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown retrieval method "nope"`)
	})

	t.Run("Should reject parameters the method does not declare", func(t *testing.T) {
		b := retrieval.NewBuilder()
		require.NoError(t, b.Register(models.RetrievalMethodDefinition{
			Name: "m", Provides: []string{"other"}, Outputs: map[string]string{"x": "string"},
		}, noop()))
		_, err := b.Build(params(t, models.ParameterDefinition{Name: "x", Type: models.ParamString, RetrievalMethod: "m"}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not declare it")
	})

	t.Run("Should reject undocumented extraction roots", func(t *testing.T) {
		b := retrieval.NewBuilder()
		require.NoError(t, b.Register(models.RetrievalMethodDefinition{
			Name: "m", Provides: []string{"x"}, Outputs: map[string]string{"user": "object"},
		}, noop()))
		_, err := b.Build(params(t, models.ParameterDefinition{
			Name: "x", Type: models.ParamString, RetrievalMethod: "m", ExtractionPath: "profile.name",
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a documented output")
	})

	t.Run("Should validate the built-in tables against each other", func(t *testing.T) {
		p, err := registry.BuildParameters(registry.DefaultParameters())
		require.NoError(t, err)
		reg, err := retrieval.Defaults().Build(p)
		require.NoError(t, err)

		defs := reg.List(nil)
		require.Len(t, defs, 6)
		assert.Equal(t, "get_goal_details", defs[0].Name)

		withPayload := reg.List(func(d models.RetrievalMethodDefinition) bool { return len(d.RequiresPayload) > 0 })
		require.Len(t, withPayload, 1)
		assert.Equal(t, []string{"goal_id"}, withPayload[0].RequiresPayload)
	})
}

func TestDefaults_Fetch(t *testing.T) {
	api := &fakeAPI{
		user:   map[string]any{"name": "Ada", "manager": map[string]any{"name": "Grace"}},
		goals:  []map[string]any{{"title": "Ship v2"}, {"title": "Hire"}, {"id": "untitled"}},
		goal:   map[string]any{"title": "Ship v2", "progress": 40},
		team:   []map[string]any{{"name": "Linus"}, {"name": "Ken"}},
		issues: []map[string]any{{"title": "Outage"}},
		org:    map[string]any{"name": "Acme", "values": []any{"Candor"}},
	}
	reg, err := retrieval.Defaults().Build(nil)
	require.NoError(t, err)
	rc := &retrieval.Context{Client: api, TenantID: "t1", UserID: "u1", Payload: map[string]any{"goal_id": "g-7"}}

	fetch := func(t *testing.T, name string) map[string]any {
		t.Helper()
		e, ok := reg.Get(name)
		require.True(t, ok)
		resp, err := e.Method.Fetch(context.Background(), rc)
		require.NoError(t, err)
		return resp
	}

	t.Run("Should nest the user profile", func(t *testing.T) {
		resp := fetch(t, "get_user_profile")
		assert.Equal(t, "Ada", resp["user"].(map[string]any)["name"])
	})

	t.Run("Should summarize goals with titles and count", func(t *testing.T) {
		resp := fetch(t, "get_user_goals")
		assert.Equal(t, []any{"Ship v2", "Hire"}, resp["titles"])
		assert.Equal(t, 3, resp["count"])
		assert.Len(t, resp["goals"], 3)
	})

	t.Run("Should pass the payload goal id through", func(t *testing.T) {
		resp := fetch(t, "get_goal_details")
		assert.Equal(t, "Ship v2", resp["goal"].(map[string]any)["title"])
		assert.Equal(t, []string{"g-7"}, api.goalIDs)
	})

	t.Run("Should expose team names and size", func(t *testing.T) {
		resp := fetch(t, "get_team")
		assert.Equal(t, []any{"Linus", "Ken"}, resp["names"])
		assert.Equal(t, 2, resp["size"])
		assert.NotContains(t, resp, "titles")
	})

	t.Run("Should only ask for open issues", func(t *testing.T) {
		resp := fetch(t, "get_open_issues")
		assert.Equal(t, 1, resp["count"])
		assert.Equal(t, "open", api.status)
	})

	t.Run("Should nest the organization", func(t *testing.T) {
		resp := fetch(t, "get_org_profile")
		assert.Equal(t, "Acme", resp["organization"].(map[string]any)["name"])
	})

	t.Run("Should fail without a user id", func(t *testing.T) {
		e, _ := reg.Get("get_user_profile")
		_, err := e.Method.Fetch(context.Background(), &retrieval.Context{Client: api, TenantID: "t1"})
		assert.Error(t, err)
	})

	t.Run("Should propagate API errors", func(t *testing.T) {
		e, _ := reg.Get("get_user_profile")
		_, err := e.Method.Fetch(context.Background(), &retrieval.Context{Client: &fakeAPI{}, TenantID: "t1", UserID: "u1"})
		assert.True(t, errors.Is(err, coachapi.ErrNotFound))
	})
}
