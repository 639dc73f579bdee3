package agentclient

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/advisorkit/advisor-proxy-go/internal/vertex"
)

// SessionBinder tracks the caller's current conversation session. Session
// ids are generated locally; the backing engine keeps its own session state
// and the two are never reconciled.
type SessionBinder struct {
	client *Client

	mu      sync.Mutex
	current string

	newID func() string
}

// NewSessionBinder creates a SessionBinder on top of client
func NewSessionBinder(client *Client) *SessionBinder {
	return &SessionBinder{
		client: client,
		newID:  uuid.NewString,
	}
}

// CurrentSession returns the bound session id, or empty when none is bound
func (b *SessionBinder) CurrentSession() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// CreateSession asks the engine to initialize a new conversation, then binds
// a fresh local session id. The engine response is discarded; only a
// successful round trip matters.
func (b *SessionBinder) CreateSession(ctx context.Context) (string, error) {
	if _, err := b.client.Invoke(ctx, "create_session", "", ""); err != nil {
		return "", err
	}

	id := b.newID()

	b.mu.Lock()
	b.current = id
	b.mu.Unlock()

	return id, nil
}

// SendMessage sends text on the current session, materializes the full
// streamed response and returns its normalized text. When no session is
// bound the message is sent without session context.
func (b *SessionBinder) SendMessage(ctx context.Context, text string) (string, error) {
	b.mu.Lock()
	session := b.current
	b.mu.Unlock()

	return b.SendMessageTo(ctx, text, session)
}

// SendMessageTo sends text on an explicit session id, bypassing the bound
// session. An empty sessionID sends a sessionless turn.
func (b *SessionBinder) SendMessageTo(ctx context.Context, text, sessionID string) (string, error) {
	body, err := b.client.Stream(ctx, text, sessionID)
	if err != nil {
		return "", err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	return vertex.Normalize(raw), nil
}

// ListSessions returns the session ids the engine reports, or an empty list
// when the response carries no recognizable sessions field.
func (b *SessionBinder) ListSessions(ctx context.Context) ([]string, error) {
	body, err := b.client.Invoke(ctx, "list_sessions", "", "")
	if err != nil {
		return nil, err
	}

	sessions := gjson.GetBytes(body, "sessions")
	if !sessions.IsArray() {
		return []string{}, nil
	}

	ids := make([]string, 0)
	for _, item := range sessions.Array() {
		if item.Type == gjson.String {
			ids = append(ids, item.String())
			continue
		}
		if id := item.Get("id"); id.Exists() {
			ids = append(ids, id.String())
		}
	}
	return ids, nil
}

// GetSession fetches the engine's information for a session id, raw
func (b *SessionBinder) GetSession(ctx context.Context, sessionID string) ([]byte, error) {
	return b.client.Invoke(ctx, "get_session", "", sessionID)
}

// DeleteSession deletes a session. When the deleted session is the bound
// one, the binding is cleared; deleting any other session leaves the
// current binding untouched.
func (b *SessionBinder) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := b.client.Invoke(ctx, "delete_session", "", sessionID); err != nil {
		return err
	}

	b.mu.Lock()
	if b.current == sessionID {
		b.current = ""
	}
	b.mu.Unlock()

	return nil
}
