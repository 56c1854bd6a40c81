package composio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"MeetingPrep/internal/config"
)

// ErrNotConfigured is returned when the API key or user id is missing.
var ErrNotConfigured = errors.New("composio not configured")

const executePath = "/api/v3/tools/execute/"

// ToolError reports an execution the gateway marked as unsuccessful.
type ToolError struct {
	Slug    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("composio %s failed: %s", e.Slug, e.Message)
}

// Client executes Composio tools over the v3 REST API.
type Client struct {
	http   *resty.Client
	apiKey string
	userID string
}

type executeRequest struct {
	UserID    string         `json:"user_id"`
	Arguments map[string]any `json:"arguments"`
}

type executeResponse struct {
	Successful bool            `json:"successful"`
	Data       json.RawMessage `json:"data"`
	Error      json.RawMessage `json:"error"`
}

// NewClient builds a client from configuration.
func NewClient(cfg config.ComposioConfig) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}

	return &Client{http: httpClient, apiKey: cfg.APIKey, userID: cfg.UserID}
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.userID != ""
}

// Execute runs slug with args and returns the raw data payload.
func (c *Client) Execute(ctx context.Context, slug string, args map[string]any) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var envelope executeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetBody(executeRequest{UserID: c.userID, Arguments: args}).
		Post(executePath + slug)
	if err != nil {
		return nil, fmt.Errorf("composio %s: %w", slug, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("composio %s: unexpected status %s: %s", slug, resp.Status(), abbreviate(resp.String()))
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("composio %s: decode response: %w", slug, err)
	}
	if !envelope.Successful {
		return nil, &ToolError{Slug: slug, Message: errorText(envelope.Error)}
	}
	return envelope.Data, nil
}

func errorText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil && text != "" {
		return text
	}
	if len(raw) == 0 || string(raw) == "null" {
		return "unsuccessful"
	}
	return abbreviate(string(raw))
}

func abbreviate(s string) string {
	const limit = 200
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
