// Package vertex provides the Vertex AI reasoning-engine client.
//
// The client executes logical agent operations against one reasoning
// engine: it obtains a bearer token from its token source, posts the
// translated request, and hands back either a parsed JSON body or the raw
// response stream depending on the operation.
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/advisorkit/advisor-proxy-go/internal/errors"
	"github.com/advisorkit/advisor-proxy-go/internal/utils"
)

// TokenSource supplies a bearer token valid at call time. The auth.Minter
// satisfies this by minting a fresh token per call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is the reasoning-engine API client
type Client struct {
	engine     Engine
	tokens     TokenSource
	httpClient *http.Client
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client (used by tests)
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a reasoning-engine client
func NewClient(engine Engine, tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		engine: engine,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute, // Long timeout for AI responses
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Engine returns the engine this client fronts
func (c *Client) Engine() Engine {
	return c.engine
}

// Query executes a non-streaming operation and returns the raw JSON body.
// Streaming operations must go through StreamQuery instead.
func (c *Client) Query(ctx context.Context, op Operation) ([]byte, error) {
	resp, err := c.dispatch(ctx, op)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to read response: "+err.Error(), resp.StatusCode, "")
	}

	return body, nil
}

// StreamQuery executes a streaming operation and returns the relay channels.
// The caller owns consumption; the relay closes the upstream body.
func (c *Client) StreamQuery(ctx context.Context, op Operation) (<-chan []byte, <-chan error, error) {
	resp, err := c.dispatch(ctx, op)
	if err != nil {
		return nil, nil, err
	}

	chunks, errs := Relay(resp.Body)
	return chunks, errs, nil
}

// dispatch mints a token, posts the translated request and validates the
// status. The token round trip and the engine call are sequential within
// one invocation; nothing is shared across calls.
func (c *Client) dispatch(ctx context.Context, op Operation) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	upstream := BuildRequest(op, c.engine)

	payload, err := json.Marshal(upstream.Body)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to encode request: "+err.Error(), 0, "")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", upstream.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.NewUpstreamError("failed to create request: "+err.Error(), 0, "")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	utils.Debug("[Vertex] %s %s", op.Kind(), upstream.URL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		uerr := errors.NewUpstreamError("reasoning engine request failed: "+err.Error(), 0, "")
		// Transport-level failures are worth a client retry; engine
		// rejections below are not.
		uerr.Retryable = utils.IsNetworkError(err)
		return nil, uerr
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		utils.Warn("[Vertex] %s failed: %d %s", op.Kind(), resp.StatusCode, utils.Truncate(string(body), 200))
		return nil, errors.NewUpstreamError("reasoning engine error", resp.StatusCode, string(body))
	}

	return resp, nil
}
