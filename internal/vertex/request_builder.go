// Package vertex provides the Vertex AI reasoning-engine client.
package vertex

import (
	"fmt"

	"github.com/advisorkit/advisor-proxy-go/internal/config"
)

// Engine identifies one reasoning engine instance
type Engine struct {
	ProjectID string
	Location  string
	EngineID  string
}

// BaseURL returns the engine's resource URL without an operation suffix
func (e Engine) BaseURL() string {
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/reasoningEngines/%s",
		e.Location, e.ProjectID, e.Location, e.EngineID)
}

// Input is the inner input payload of a query request
type Input struct {
	Text string `json:"text"`
}

// RequestBody is the JSON body posted to the reasoning engine. Session is
// present only for operations bound to a session.
type RequestBody struct {
	Input   Input  `json:"input"`
	Session string `json:"session,omitempty"`
}

// Request is a fully determined upstream HTTP call: URL plus body. Building
// one has no side effects; nothing happens until it is dispatched.
type Request struct {
	URL  string
	Body RequestBody
}

// BuildRequest translates a logical operation into the upstream request.
// Pure function: same operation and engine always produce the same request,
// and every Operation value maps to exactly one endpoint shape.
func BuildRequest(op Operation, engine Engine) Request {
	base := engine.BaseURL()

	switch op.Kind() {
	case OpStreamQuery:
		return Request{
			URL: base + config.StreamQuerySuffix,
			Body: RequestBody{
				Input:   Input{Text: op.Text()},
				Session: op.SessionID(),
			},
		}
	case OpCreateSession:
		// Never carries a session: the engine allocates its own state.
		return Request{
			URL:  base + config.QuerySuffix,
			Body: RequestBody{Input: Input{Text: config.MarkerCreateSession}},
		}
	case OpListSessions:
		return Request{
			URL:  base + config.QuerySuffix,
			Body: RequestBody{Input: Input{Text: config.MarkerListSessions}},
		}
	case OpGetSession:
		return Request{
			URL: base + config.QuerySuffix,
			Body: RequestBody{
				Input:   Input{Text: fmt.Sprintf(config.MarkerGetSession, op.SessionID())},
				Session: op.SessionID(),
			},
		}
	case OpDeleteSession:
		return Request{
			URL: base + config.QuerySuffix,
			Body: RequestBody{
				Input:   Input{Text: fmt.Sprintf(config.MarkerDeleteSession, op.SessionID())},
				Session: op.SessionID(),
			},
		}
	}

	// Unreachable for values built through the factory functions.
	return Request{URL: base + config.QuerySuffix}
}
