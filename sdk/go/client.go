package tracklinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Trackline HTTP API client.
type Client struct {
	BaseURL     string
	OrgID       string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, orgID string) *Client {
	return &Client{
		BaseURL: baseURL,
		OrgID:   orgID,
		Timeout: 10 * time.Second,
	}
}

// Status represents a workflow status.
type Status struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Transition represents a workflow edge.
type Transition struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FromStatusID string `json:"from_status_id"`
	ToStatusID   string `json:"to_status_id"`
}

// Workflow represents the API workflow model.
type Workflow struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	IsDefault   bool   `json:"is_default"`
	IsActive    bool   `json:"is_active"`
	Statuses    []struct {
		Position int    `json:"position"`
		Status   Status `json:"status"`
	} `json:"statuses"`
	Transitions []Transition `json:"transitions"`
}

// Issue represents the API issue model (partial).
type Issue struct {
	ID        string  `json:"id"`
	OrgID     string  `json:"org_id"`
	ProjectID string  `json:"project_id"`
	Type      string  `json:"type"`
	Summary   string  `json:"summary"`
	StatusID  string  `json:"status_id"`
	Status    *Status `json:"status,omitempty"`
}

// AvailableTransition is a transition reachable from an issue's status.
type AvailableTransition struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ToStatus Status `json:"to_status"`
}

// HistoryEntry records one field change on an issue.
type HistoryEntry struct {
	ID        int64  `json:"id"`
	IssueID   string `json:"issue_id"`
	UserID    string `json:"user_id"`
	Field     string `json:"field"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	CreatedAt string `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateIssue creates an issue in a project.
func (c *Client) CreateIssue(ctx context.Context, projectID, summary, issueType string) (Issue, error) {
	body := map[string]any{
		"project_id": projectID,
		"summary":    summary,
		"type":       issueType,
	}
	var resp Issue
	err := c.do(ctx, http.MethodPost, c.orgPath("issues"), body, &resp)
	return resp, err
}

// GetIssue fetches an issue by id.
func (c *Client) GetIssue(ctx context.Context, issueID string) (Issue, error) {
	var resp Issue
	endpoint := c.orgPath(fmt.Sprintf("issues/%s", url.PathEscape(issueID)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ProjectWorkflow resolves the workflow governing a project's issues.
func (c *Client) ProjectWorkflow(ctx context.Context, projectID string) (Workflow, error) {
	var resp Workflow
	endpoint := c.orgPath(fmt.Sprintf("projects/%s/workflow", url.PathEscape(projectID)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AvailableTransitions lists transitions reachable from the issue's status.
func (c *Client) AvailableTransitions(ctx context.Context, issueID string) ([]AvailableTransition, error) {
	var resp []AvailableTransition
	endpoint := c.orgPath(fmt.Sprintf("issues/%s/transitions", url.PathEscape(issueID)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// TransitionIssue executes a workflow transition on an issue.
func (c *Client) TransitionIssue(ctx context.Context, issueID, transitionID string) (Issue, error) {
	body := map[string]any{"transition_id": transitionID}
	var resp Issue
	endpoint := c.orgPath(fmt.Sprintf("issues/%s/transitions", url.PathEscape(issueID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// IssueHistory returns the change history for an issue.
func (c *Client) IssueHistory(ctx context.Context, issueID string) ([]HistoryEntry, error) {
	var resp []HistoryEntry
	endpoint := c.orgPath(fmt.Sprintf("issues/%s/history", url.PathEscape(issueID)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) orgPath(p string) string {
	org := url.PathEscape(c.OrgID)
	return fmt.Sprintf("v0/orgs/%s/%s", org, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
