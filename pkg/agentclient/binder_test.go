package agentclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// proxyStub fakes the proxy's /v1/agent endpoint and records the requests
// it receives.
type proxyStub struct {
	t        *testing.T
	requests []agentRequest

	streamBody string
	responses  map[string]string
	failWith   int
}

func (p *proxyStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/agent" || r.Method != http.MethodPost {
			p.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var req agentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			p.t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.requests = append(p.requests, req)

		if p.failWith != 0 {
			w.WriteHeader(p.failWith)
			w.Write([]byte(`{"type":"error","error":{"code":"UPSTREAM_ERROR","message":"boom"}}`))
			return
		}

		if req.Operation == "stream_query" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(p.streamBody))
			return
		}

		body, ok := p.responses[req.Operation]
		if !ok {
			body = "{}"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func newTestBinder(t *testing.T, stub *proxyStub) *SessionBinder {
	t.Helper()
	stub.t = t
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return NewSessionBinder(NewClient(srv.URL))
}

func TestCreateSessionBindsLocalID(t *testing.T) {
	stub := &proxyStub{responses: map[string]string{
		"create_session": `{"response":"session initialized"}`,
	}}
	binder := newTestBinder(t, stub)

	if binder.CurrentSession() != "" {
		t.Fatal("no session should be bound initially")
	}

	id, err := binder.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated session id")
	}
	if binder.CurrentSession() != id {
		t.Errorf("CurrentSession = %q, want %q", binder.CurrentSession(), id)
	}

	// The generated id is local; it is never sent upstream on creation
	if len(stub.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(stub.requests))
	}
	if stub.requests[0].SessionID != "" {
		t.Errorf("create_session must not carry a session id, got %q", stub.requests[0].SessionID)
	}

	// A second creation rebinds to a fresh id
	second, err := binder.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if second == id {
		t.Error("each created session must get a distinct id")
	}
	if binder.CurrentSession() != second {
		t.Error("binder should track the latest created session")
	}
}

func TestCreateSessionFailureLeavesBindingUntouched(t *testing.T) {
	stub := &proxyStub{failWith: http.StatusBadGateway}
	binder := newTestBinder(t, stub)

	if _, err := binder.CreateSession(context.Background()); err == nil {
		t.Fatal("expected error from failed creation")
	}
	if binder.CurrentSession() != "" {
		t.Error("failed creation must not bind a session")
	}
}

func TestSendMessageUsesBoundSession(t *testing.T) {
	stub := &proxyStub{
		responses:  map[string]string{"create_session": `{}`},
		streamBody: "streamed reply text",
	}
	binder := newTestBinder(t, stub)

	id, err := binder.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	reply, err := binder.SendMessage(context.Background(), "hello agent")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if reply != "streamed reply text" {
		t.Errorf("unexpected reply: %q", reply)
	}

	last := stub.requests[len(stub.requests)-1]
	if last.Operation != "stream_query" {
		t.Errorf("unexpected operation: %s", last.Operation)
	}
	if last.SessionID != id {
		t.Errorf("message should carry the bound session, got %q", last.SessionID)
	}
	if last.Message != "hello agent" {
		t.Errorf("unexpected message: %q", last.Message)
	}
}

func TestSendMessageWithoutSession(t *testing.T) {
	stub := &proxyStub{streamBody: `{"response":"normalized"}`}
	binder := newTestBinder(t, stub)

	reply, err := binder.SendMessage(context.Background(), "sessionless")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if reply != "normalized" {
		t.Errorf("response envelope should be normalized, got %q", reply)
	}
	if stub.requests[0].SessionID != "" {
		t.Error("sessionless message must not carry a session id")
	}
}

func TestSendMessageToOverridesBinding(t *testing.T) {
	stub := &proxyStub{
		responses:  map[string]string{"create_session": `{}`},
		streamBody: "override reply",
	}
	binder := newTestBinder(t, stub)

	if _, err := binder.CreateSession(context.Background()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	reply, err := binder.SendMessageTo(context.Background(), "hello", "other-session")
	if err != nil {
		t.Fatalf("SendMessageTo failed: %v", err)
	}
	if reply != "override reply" {
		t.Errorf("unexpected reply: %q", reply)
	}

	last := stub.requests[len(stub.requests)-1]
	if last.SessionID != "other-session" {
		t.Errorf("explicit session should win over the binding, got %q", last.SessionID)
	}
}

func TestListSessions(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "string ids",
			body: `{"sessions":["a","b"]}`,
			want: []string{"a", "b"},
		},
		{
			name: "object ids",
			body: `{"sessions":[{"id":"x"},{"id":"y"}]}`,
			want: []string{"x", "y"},
		},
		{
			name: "missing field degrades to empty",
			body: `{"response":"no sessions here"}`,
			want: []string{},
		},
		{
			name: "non-array field degrades to empty",
			body: `{"sessions":"oops"}`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &proxyStub{responses: map[string]string{"list_sessions": tt.body}}
			binder := newTestBinder(t, stub)

			got, err := binder.ListSessions(context.Background())
			if err != nil {
				t.Fatalf("ListSessions failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d sessions, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("session %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDeleteSessionClearsMatchingBinding(t *testing.T) {
	stub := &proxyStub{responses: map[string]string{
		"create_session": `{}`,
		"delete_session": `{}`,
	}}
	binder := newTestBinder(t, stub)

	id, err := binder.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// Deleting some other session leaves the binding alone
	if err := binder.DeleteSession(context.Background(), "other"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if binder.CurrentSession() != id {
		t.Error("deleting an unrelated session must not clear the binding")
	}

	// Deleting the bound session clears it
	if err := binder.DeleteSession(context.Background(), id); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if binder.CurrentSession() != "" {
		t.Error("deleting the bound session must clear the binding")
	}
}

func TestDeleteSessionFailureKeepsBinding(t *testing.T) {
	stub := &proxyStub{responses: map[string]string{"create_session": `{}`}}
	binder := newTestBinder(t, stub)

	id, err := binder.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	stub.failWith = http.StatusBadGateway
	if err := binder.DeleteSession(context.Background(), id); err == nil {
		t.Fatal("expected error from failed deletion")
	}
	if binder.CurrentSession() != id {
		t.Error("failed deletion must keep the binding")
	}
}
