// Package client provides an HTTP client for the profiled server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/raphaelgruber/profiled-go/internal/metrics"
	"github.com/raphaelgruber/profiled-go/internal/models"
)

// Client talks to the profiled server over JSON/HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. If baseURL is empty, uses PROFILED_SERVER_URL env var
// or defaults to localhost:8585. Timeout can be configured via
// PROFILED_CLIENT_TIMEOUT (default 2m; job processing itself is async so
// requests stay short).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("PROFILED_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8585"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("PROFILED_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiError is the error envelope the server returns on non-2xx responses.
type apiError struct {
	Error string `json:"error"`
}

// do sends a request and decodes the JSON response into result (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server error (%d)", resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// JobWithProfile is a job plus the profile the server embeds once the job
// completed.
type JobWithProfile struct {
	models.Job
	Profile *models.Profile `json:"profile,omitempty"`
}

// Health checks server reachability.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// CreateJob triggers a new processing job for the user.
func (c *Client) CreateJob(ctx context.Context, userID string, batchSize int) (*models.Job, error) {
	req := map[string]any{"user_id": userID}
	if batchSize > 0 {
		req["batch_size"] = batchSize
	}
	var job models.Job
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ProcessJob asks the server to (re)start processing an existing job.
func (c *Client) ProcessJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+jobID+"/process", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob fetches a job; the profile is embedded when the job completed.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobWithProfile, error) {
	var job JobWithProfile
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+jobID, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs lists jobs, optionally filtered by user.
func (c *Client) ListJobs(ctx context.Context, userID string) ([]models.Job, error) {
	path := "/api/jobs"
	if userID != "" {
		path += "?user_id=" + userID
	}
	var resp struct {
		Jobs []models.Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetProfile fetches a user's memory profile.
func (c *Client) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodGet, "/api/users/"+userID+"/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ConversationMessage is one turn when seeding a conversation.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CreateConversation seeds a conversation with messages for a user.
func (c *Client) CreateConversation(ctx context.Context, userID string, title *string, messages []ConversationMessage) error {
	req := map[string]any{
		"user_id":  userID,
		"title":    title,
		"messages": messages,
	}
	return c.do(ctx, http.MethodPost, "/api/conversations", req, nil)
}

// GetStats fetches the server's runtime statistics.
func (c *Client) GetStats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
