// Package client is a small HTTP client for the recall API, used by the
// CLI commands that talk to a running server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/papercomputeco/recall/api"
	"github.com/papercomputeco/recall/pkg/memory"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New returns a client for the API at target, e.g. "http://localhost:8090".
func New(target string) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL: %q", target)
	}

	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Snapshot downloads the server's current snapshot.
func (c *Client) Snapshot(ctx context.Context) (*memory.Snapshot, error) {
	var snap memory.Snapshot
	if err := c.do(ctx, http.MethodGet, "/v1/snapshot", nil, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Restore replaces the server state with snap and returns the new stats.
func (c *Client) Restore(ctx context.Context, snap *memory.Snapshot) (memory.Stats, error) {
	var st memory.Stats
	err := c.do(ctx, http.MethodPost, "/v1/snapshot", nil, snap, &st)
	return st, err
}

// Stats returns the server's engine statistics.
func (c *Client) Stats(ctx context.Context) (memory.Stats, error) {
	var st memory.Stats
	err := c.do(ctx, http.MethodGet, "/v1/stats", nil, nil, &st)
	return st, err
}

// Search runs a semantic search on the server.
func (c *Client) Search(ctx context.Context, q memory.SearchQuery) (*api.SearchResponse, error) {
	params := url.Values{}
	params.Set("query", q.Query)
	if q.ProjectID != "" {
		params.Set("project_id", q.ProjectID)
	}
	if q.UserID != "" {
		params.Set("user_id", q.UserID)
	}
	if q.AgentID != "" {
		params.Set("agent_id", q.AgentID)
	}
	if q.MessageType != "" {
		params.Set("message_type", q.MessageType)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.SimilarityThreshold != nil {
		params.Set("threshold", strconv.FormatFloat(*q.SimilarityThreshold, 'f', -1, 64))
	}

	var out api.SearchResponse
	if err := c.do(ctx, http.MethodGet, "/v1/search", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	u := *c.baseURL
	u.Path = path
	u.RawQuery = params.Encode()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to recall API at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s failed (HTTP %d): %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed (HTTP %d)", method, path, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
