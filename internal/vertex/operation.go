// Package vertex provides the Vertex AI reasoning-engine client: request
// translation, response normalization and stream relay.
package vertex

import "fmt"

// OpKind identifies a logical agent operation
type OpKind string

const (
	OpStreamQuery   OpKind = "stream_query"
	OpCreateSession OpKind = "create_session"
	OpListSessions  OpKind = "list_sessions"
	OpGetSession    OpKind = "get_session"
	OpDeleteSession OpKind = "delete_session"
)

// Operation is a closed variant describing exactly one logical agent call.
// The kind fully determines the upstream endpoint and whether a session
// identifier accompanies the request; construct values through the factory
// functions below rather than literal structs.
type Operation struct {
	kind      OpKind
	text      string
	sessionID string
}

// SendMessage builds a chat-turn operation. sessionID may be empty for a
// sessionless turn.
func SendMessage(text, sessionID string) Operation {
	return Operation{kind: OpStreamQuery, text: text, sessionID: sessionID}
}

// CreateSession builds a session-initialization operation. It never carries
// a session identifier.
func CreateSession() Operation {
	return Operation{kind: OpCreateSession}
}

// ListSessions builds a session-listing operation
func ListSessions() Operation {
	return Operation{kind: OpListSessions}
}

// GetSession builds a session-lookup operation
func GetSession(sessionID string) Operation {
	return Operation{kind: OpGetSession, sessionID: sessionID}
}

// DeleteSession builds a session-deletion operation
func DeleteSession(sessionID string) Operation {
	return Operation{kind: OpDeleteSession, sessionID: sessionID}
}

// Kind returns the operation kind
func (o Operation) Kind() OpKind { return o.kind }

// Text returns the message text for chat-turn operations
func (o Operation) Text() string { return o.text }

// SessionID returns the logical session identifier, if any
func (o Operation) SessionID() string { return o.sessionID }

// Streaming reports whether the operation targets the streaming endpoint
func (o Operation) Streaming() bool { return o.kind == OpStreamQuery }

// ParseOperation maps a wire operation name plus message and session id to
// an Operation. Unrecognized names yield an error.
func ParseOperation(name, message, sessionID string) (Operation, error) {
	switch OpKind(name) {
	case OpStreamQuery:
		return SendMessage(message, sessionID), nil
	case OpCreateSession:
		return CreateSession(), nil
	case OpListSessions:
		return ListSessions(), nil
	case OpGetSession:
		return GetSession(sessionID), nil
	case OpDeleteSession:
		return DeleteSession(sessionID), nil
	default:
		return Operation{}, fmt.Errorf("unsupported operation: %q", name)
	}
}
