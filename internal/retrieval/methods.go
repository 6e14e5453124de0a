package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentoven/promptplane/pkg/models"
)

const schemaV1 = "v1"

var errNoUser = errors.New("retrieval context has no user id")

// Defaults registers the built-in retrieval methods. They call the coach API
// client carried by the retrieval context.
func Defaults() *Builder {
	b := NewBuilder()

	b.MustRegister(models.RetrievalMethodDefinition{
		Name:          "get_user_profile",
		Description:   "Profile of the coached user",
		Provides:      []string{"user_name", "user_role", "manager_name"},
		SchemaVersion: schemaV1,
		Outputs: map[string]string{
			"user":              "object",
			"user.name":         "string",
			"user.role":         "string",
			"user.manager.name": "string",
		},
	}, MethodFunc(func(ctx context.Context, rc *Context) (map[string]any, error) {
		if rc.UserID == "" {
			return nil, errNoUser
		}
		u, err := rc.Client.GetUser(ctx, rc.TenantID, rc.UserID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"user": u}, nil
	}))

	b.MustRegister(models.RetrievalMethodDefinition{
		Name:          "get_user_goals",
		Description:   "Active goals of the coached user, highest priority first",
		Provides:      []string{"goals", "goal_count", "primary_goal_title"},
		SchemaVersion: schemaV1,
		Outputs: map[string]string{
			"goals":  "array",
			"titles": "array",
			"count":  "integer",
		},
	}, MethodFunc(func(ctx context.Context, rc *Context) (map[string]any, error) {
		if rc.UserID == "" {
			return nil, errNoUser
		}
		goals, err := rc.Client.ListGoals(ctx, rc.TenantID, rc.UserID)
		if err != nil {
			return nil, err
		}
		return listResponse("goals", goals, "title"), nil
	}))

	b.MustRegister(models.RetrievalMethodDefinition{
		Name:            "get_goal_details",
		Description:     "One goal selected by the request payload",
		Provides:        []string{"goal_title", "goal_description", "goal_progress"},
		RequiresPayload: []string{"goal_id"},
		SchemaVersion:   schemaV1,
		Outputs: map[string]string{
			"goal":             "object",
			"goal.title":       "string",
			"goal.description": "string",
			"goal.progress":    "integer",
		},
	}, MethodFunc(func(ctx context.Context, rc *Context) (map[string]any, error) {
		goalID, ok := rc.PayloadString("goal_id")
		if !ok {
			return nil, fmt.Errorf("payload field goal_id must be a non-empty string")
		}
		g, err := rc.Client.GetGoal(ctx, rc.TenantID, goalID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"goal": g}, nil
	}))

	b.MustRegister(models.RetrievalMethodDefinition{
		Name:          "get_team",
		Description:   "Direct team of the coached user",
		Provides:      []string{"team_members", "team_size"},
		SchemaVersion: schemaV1,
		Outputs: map[string]string{
			"members": "array",
			"names":   "array",
			"size":    "integer",
		},
	}, MethodFunc(func(ctx context.Context, rc *Context) (map[string]any, error) {
		if rc.UserID == "" {
			return nil, errNoUser
		}
		team, err := rc.Client.ListTeam(ctx, rc.TenantID, rc.UserID)
		if err != nil {
			return nil, err
		}
		resp := listResponse("members", team, "name")
		resp["names"] = resp["titles"]
		resp["size"] = resp["count"]
		delete(resp, "titles")
		delete(resp, "count")
		return resp, nil
	}))

	b.MustRegister(models.RetrievalMethodDefinition{
		Name:          "get_open_issues",
		Description:   "Open issues assigned to the coached user, most urgent first",
		Provides:      []string{"open_issues", "issue_count", "top_issue"},
		SchemaVersion: schemaV1,
		Outputs: map[string]string{
			"issues": "array",
			"titles": "array",
			"count":  "integer",
		},
	}, MethodFunc(func(ctx context.Context, rc *Context) (map[string]any, error) {
		if rc.UserID == "" {
			return nil, errNoUser
		}
		issues, err := rc.Client.ListIssues(ctx, rc.TenantID, rc.UserID, "open")
		if err != nil {
			return nil, err
		}
		return listResponse("issues", issues, "title"), nil
	}))

	b.MustRegister(models.RetrievalMethodDefinition{
		Name:          "get_org_profile",
		Description:   "Organizational profile of the tenant",
		Provides:      []string{"org_name", "org_mission", "org_values"},
		SchemaVersion: schemaV1,
		Outputs: map[string]string{
			"organization":         "object",
			"organization.name":    "string",
			"organization.mission": "string",
			"organization.values":  "array",
		},
	}, MethodFunc(func(ctx context.Context, rc *Context) (map[string]any, error) {
		org, err := rc.Client.GetOrganization(ctx, rc.TenantID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"organization": org}, nil
	}))

	return b
}

// listResponse shapes a list answer as {key: items, titles: [...], count: n}
// where titles collects the string field of every item that carries one.
func listResponse(key string, items []map[string]any, field string) map[string]any {
	titles := make([]any, 0, len(items))
	list := make([]any, 0, len(items))
	for _, it := range items {
		list = append(list, it)
		if s, ok := it[field].(string); ok && s != "" {
			titles = append(titles, s)
		}
	}
	return map[string]any{
		key:      list,
		"titles": titles,
		"count":  len(items),
	}
}
