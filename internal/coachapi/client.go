// Package coachapi is a thin REST client for the coaching product's business
// API (people, goals, teams, issues, organizations). Retrieval methods are the
// only callers; the prompt plane never depends on the shape of these
// resources beyond what each retrieval method documents.
package coachapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotFound is returned when the API answers 404.
var ErrNotFound = errors.New("coachapi: resource not found")

// API is the surface retrieval methods depend on.
type API interface {
	GetUser(ctx context.Context, tenantID, userID string) (map[string]any, error)
	ListGoals(ctx context.Context, tenantID, userID string) ([]map[string]any, error)
	GetGoal(ctx context.Context, tenantID, goalID string) (map[string]any, error)
	ListTeam(ctx context.Context, tenantID, userID string) ([]map[string]any, error)
	ListIssues(ctx context.Context, tenantID, userID, status string) ([]map[string]any, error)
	GetOrganization(ctx context.Context, tenantID string) (map[string]any, error)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// Client implements API over HTTP.
type Client struct {
	rc *resty.Client
}

type objectEnvelope struct {
	Data map[string]any `json:"data"`
}

type listEnvelope struct {
	Data []map[string]any `json:"data"`
}

// New creates a client for the business API.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	if cfg.APIKey != "" {
		rc.SetAuthToken(cfg.APIKey)
	}
	rc.AddRetryCondition(retryCondition)
	return &Client{rc: rc}
}

// retryCondition retries transport errors, 429 and 5xx answers.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (c *Client) request(ctx context.Context, tenantID, userID string) *resty.Request {
	req := c.rc.R().SetContext(ctx).SetHeader("X-Tenant-Id", tenantID)
	if userID != "" {
		req.SetHeader("X-User-Id", userID)
	}
	return req
}

func checkResponse(resp *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: status %d", what, resp.StatusCode())
	}
	return nil
}

func (c *Client) getObject(req *resty.Request, path, what string) (map[string]any, error) {
	var out objectEnvelope
	resp, err := req.SetResult(&out).Get(path)
	if err := checkResponse(resp, err, what); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	return out.Data, nil
}

func (c *Client) getList(req *resty.Request, path, what string) ([]map[string]any, error) {
	var out listEnvelope
	resp, err := req.SetResult(&out).Get(path)
	if err := checkResponse(resp, err, what); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []map[string]any{}
	}
	return out.Data, nil
}

// GetUser fetches a user profile.
func (c *Client) GetUser(ctx context.Context, tenantID, userID string) (map[string]any, error) {
	req := c.request(ctx, tenantID, userID).SetPathParam("userID", userID)
	return c.getObject(req, "/users/{userID}", "get user")
}

// ListGoals lists the active goals of a user, highest priority first.
func (c *Client) ListGoals(ctx context.Context, tenantID, userID string) ([]map[string]any, error) {
	req := c.request(ctx, tenantID, userID).
		SetPathParam("userID", userID).
		SetQueryParam("status", "active")
	return c.getList(req, "/users/{userID}/goals", "list goals")
}

// GetGoal fetches one goal.
func (c *Client) GetGoal(ctx context.Context, tenantID, goalID string) (map[string]any, error) {
	req := c.request(ctx, tenantID, "").SetPathParam("goalID", goalID)
	return c.getObject(req, "/goals/{goalID}", "get goal")
}

// ListTeam lists the direct team of a user.
func (c *Client) ListTeam(ctx context.Context, tenantID, userID string) ([]map[string]any, error) {
	req := c.request(ctx, tenantID, userID).SetPathParam("userID", userID)
	return c.getList(req, "/users/{userID}/team", "list team")
}

// ListIssues lists issues assigned to a user, most urgent first.
func (c *Client) ListIssues(ctx context.Context, tenantID, userID, status string) ([]map[string]any, error) {
	req := c.request(ctx, tenantID, userID).
		SetQueryParam("assignee", userID).
		SetQueryParam("sort", "-priority")
	if status != "" {
		req.SetQueryParam("status", status)
	}
	return c.getList(req, "/issues", "list issues")
}

// GetOrganization fetches the tenant's organizational profile.
func (c *Client) GetOrganization(ctx context.Context, tenantID string) (map[string]any, error) {
	req := c.request(ctx, tenantID, "").SetPathParam("tenantID", tenantID)
	return c.getObject(req, "/organizations/{tenantID}", "get organization")
}
