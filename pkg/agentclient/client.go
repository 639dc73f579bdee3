// Package agentclient provides a Go client for the agent proxy server.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/advisorkit/advisor-proxy-go/internal/errors"
)

// Client talks to the proxy's /v1/agent endpoint
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithAPIKey sets the API key sent with every request
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new Client for the proxy at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute, // Long timeout for AI responses
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type agentRequest struct {
	Message   string `json:"message,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Operation string `json:"operation"`
}

// Invoke performs a non-streaming agent operation and returns the raw
// response body.
func (c *Client) Invoke(ctx context.Context, operation, message, sessionID string) ([]byte, error) {
	resp, err := c.post(ctx, operation, message, sessionID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewUpstreamError(
			fmt.Sprintf("Agent operation %s failed with status %d", operation, resp.StatusCode),
			resp.StatusCode, string(body))
	}

	return body, nil
}

// Stream performs a streaming agent operation. The caller must close the
// returned body.
func (c *Client) Stream(ctx context.Context, message, sessionID string) (io.ReadCloser, error) {
	resp, err := c.post(ctx, "stream_query", message, sessionID)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, apperrors.NewUpstreamError(
			fmt.Sprintf("Streaming request failed with status %d", resp.StatusCode),
			resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, operation, message, sessionID string) (*http.Response, error) {
	payload, err := json.Marshal(agentRequest{
		Message:   message,
		SessionID: sessionID,
		Operation: operation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/agent", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
