package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/advisorkit/advisor-proxy-go/internal/config"
	"github.com/advisorkit/advisor-proxy-go/internal/history"
	"github.com/advisorkit/advisor-proxy-go/internal/modules"
	"github.com/advisorkit/advisor-proxy-go/internal/vertex"
)

type staticTokens struct{}

func (staticTokens) Token(ctx context.Context) (string, error) {
	return "test-bearer", nil
}

// engineStub answers reasoning-engine calls with canned bodies keyed by the
// URL operation suffix. A non-nil streamErr breaks the stream after its body
// instead of ending it cleanly.
type engineStub struct {
	status      int
	queryBody   string
	streamBody  string
	streamErr   error
	lastURL     string
	lastPayload []byte
}

// brokenBody yields its data in one read, then fails instead of EOF
type brokenBody struct {
	data []byte
	err  error
	sent bool
}

func (b *brokenBody) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, b.data), nil
	}
	return 0, b.err
}

func (b *brokenBody) Close() error { return nil }

func (s *engineStub) RoundTrip(req *http.Request) (*http.Response, error) {
	s.lastURL = req.URL.String()
	if req.Body != nil {
		s.lastPayload, _ = io.ReadAll(req.Body)
	}

	status := s.status
	if status == 0 {
		status = http.StatusOK
	}

	body := s.queryBody
	if strings.HasSuffix(req.URL.Path, ":streamQuery") {
		body = s.streamBody
		if s.streamErr != nil {
			return &http.Response{
				StatusCode: status,
				Body:       &brokenBody{data: []byte(body), err: s.streamErr},
				Header:     make(http.Header),
			}, nil
		}
	}

	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}, nil
}

type serverFixture struct {
	srv   *Server
	stub  *engineStub
	store *history.Store
}

func newTestServer(t *testing.T, cfg *config.Config, stub *engineStub) *serverFixture {
	t.Helper()

	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	engine := vertex.Engine{ProjectID: "p", Location: "us-central1", EngineID: "e"}
	client := vertex.NewClient(engine, staticTokens{},
		vertex.WithHTTPClient(&http.Client{Transport: stub}))

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open history store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	usageStats := modules.NewUsageStats(nil)

	srv := New(cfg, client, store, usageStats, Options{})
	srv.SetupRoutes()

	return &serverFixture{srv: srv, stub: stub, store: store}
}

func (f *serverFixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(w, req)
	return w
}

func TestAgentQueryPassthrough(t *testing.T) {
	stub := &engineStub{queryBody: `{"response":"session made"}`}
	f := newTestServer(t, nil, stub)

	w := f.do("POST", "/v1/agent", `{"operation":"create_session"}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	// Non-streaming responses pass through byte for byte
	if w.Body.String() != `{"response":"session made"}` {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if !strings.HasSuffix(f.stub.lastURL, ":query") {
		t.Errorf("create_session must hit :query, got %s", f.stub.lastURL)
	}
}

func TestAgentStreamingRelay(t *testing.T) {
	stub := &engineStub{streamBody: "streamed agent reply"}
	f := newTestServer(t, nil, stub)

	w := f.do("POST", "/v1/agent",
		`{"operation":"stream_query","message":"hi","sessionId":"sess-9"}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Errorf("unexpected content type: %s", got)
	}
	if w.Body.String() != "streamed agent reply" {
		t.Errorf("unexpected stream body: %q", w.Body.String())
	}

	var payload vertex.RequestBody
	if err := json.Unmarshal(f.stub.lastPayload, &payload); err != nil {
		t.Fatalf("failed to decode upstream payload: %v", err)
	}
	if payload.Input.Text != "hi" || payload.Session != "sess-9" {
		t.Errorf("unexpected upstream payload: %+v", payload)
	}

	// Both turns of the exchange land in history
	turns, err := f.store.History(context.Background(), "sess-9")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(turns))
	}
	if turns[0].Role != history.RoleUser || turns[0].Content != "hi" {
		t.Errorf("unexpected user turn: %+v", turns[0])
	}
	if turns[1].Role != history.RoleAssistant || turns[1].Content != "streamed agent reply" {
		t.Errorf("unexpected assistant turn: %+v", turns[1])
	}
}

func TestAgentStreamingPersistsEveryCleanExchange(t *testing.T) {
	stub := &engineStub{streamBody: "steady reply"}
	f := newTestServer(t, nil, stub)

	// The relay closes both of its channels when the stream ends; every
	// clean exchange must still land in history, not just the lucky ones.
	for i := 0; i < 20; i++ {
		session := fmt.Sprintf("sess-%d", i)
		body := fmt.Sprintf(`{"operation":"stream_query","message":"hi","sessionId":%q}`, session)

		w := f.do("POST", "/v1/agent", body, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("exchange %d: status = %d", i, w.Code)
		}

		turns, err := f.store.History(context.Background(), session)
		if err != nil {
			t.Fatalf("exchange %d: History failed: %v", i, err)
		}
		if len(turns) != 2 {
			t.Fatalf("exchange %d: expected 2 persisted turns, got %d", i, len(turns))
		}
	}
}

func TestAgentMidStreamErrorDropsPartialTurn(t *testing.T) {
	stub := &engineStub{streamBody: "partial reply", streamErr: errors.New("connection reset")}
	f := newTestServer(t, nil, stub)

	w := f.do("POST", "/v1/agent",
		`{"operation":"stream_query","message":"hi","sessionId":"sess-err"}`, nil)

	// Headers were already committed when the stream broke; the chunks
	// emitted so far stand
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "partial reply" {
		t.Errorf("unexpected partial body: %q", w.Body.String())
	}

	// A truncated reply must not be saved as a complete assistant turn
	turns, err := f.store.History(context.Background(), "sess-err")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("truncated exchange must not be persisted, got %+v", turns)
	}
}

func TestAgentUpstreamErrorBeforeHeaders(t *testing.T) {
	stub := &engineStub{status: http.StatusTooManyRequests, streamBody: "quota exhausted"}
	f := newTestServer(t, nil, stub)

	w := f.do("POST", "/v1/agent", `{"operation":"stream_query","message":"hi"}`, nil)

	// The upstream failure surfaces as a JSON error, not a broken stream
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error response is not JSON: %v", err)
	}
	if resp["type"] != "error" {
		t.Errorf("unexpected error envelope: %v", resp)
	}
}

func TestAgentRejectsUnknownOperation(t *testing.T) {
	f := newTestServer(t, nil, &engineStub{})

	w := f.do("POST", "/v1/agent", `{"operation":"explode"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAgentDeleteSessionDropsLocalHistory(t *testing.T) {
	stub := &engineStub{queryBody: `{"response":"deleted"}`}
	f := newTestServer(t, nil, stub)

	if err := f.store.SaveTurn(context.Background(), "gone", history.RoleUser, "old message"); err != nil {
		t.Fatalf("SaveTurn failed: %v", err)
	}

	w := f.do("POST", "/v1/agent", `{"operation":"delete_session","sessionId":"gone"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	sessions, err := f.store.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("local history should be dropped with the session, got %+v", sessions)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.APIKey = "secret"
	f := newTestServer(t, cfg, &engineStub{queryBody: `{}`})

	// Missing key
	w := f.do("POST", "/v1/agent", `{"operation":"list_sessions"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	// Wrong key
	w = f.do("POST", "/v1/agent", `{"operation":"list_sessions"}`,
		map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	// Bearer token
	w = f.do("POST", "/v1/agent", `{"operation":"list_sessions"}`,
		map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	// X-API-Key header
	w = f.do("POST", "/v1/agent", `{"operation":"list_sessions"}`,
		map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	// Health stays open
	w = f.do("GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newTestServer(t, nil, &engineStub{})

	w := f.do("GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("health response is not JSON: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("unexpected health status: %v", resp["status"])
	}
	if _, ok := resp["uptime"].(string); !ok {
		t.Errorf("health should report a human-readable uptime: %v", resp["uptime"])
	}
}

func TestConfigEndpointRedactsSecrets(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.APIKey = "secret"
	cfg.RedisPassword = "hunter2"
	f := newTestServer(t, cfg, &engineStub{})

	w := f.do("GET", "/v1/config", "", map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Config map[string]interface{} `json:"config"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("config response is not JSON: %v", err)
	}
	if resp.Config["apiKey"] != "********" {
		t.Errorf("apiKey not redacted: %v", resp.Config["apiKey"])
	}
	if resp.Config["redisPassword"] != "********" {
		t.Errorf("redisPassword not redacted: %v", resp.Config["redisPassword"])
	}
	if body := w.Body.String(); strings.Contains(body, "hunter2") {
		t.Errorf("secret leaked into config response: %s", body)
	}
}

func TestSessionEndpoints(t *testing.T) {
	f := newTestServer(t, nil, &engineStub{})
	ctx := context.Background()

	f.store.SaveTurn(ctx, "s1", history.RoleUser, "hello")
	f.store.SaveTurn(ctx, "s1", history.RoleAssistant, "hi there")

	w := f.do("GET", "/v1/sessions", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"s1"`) {
		t.Errorf("session listing missing s1: %s", w.Body.String())
	}

	w = f.do("GET", "/v1/history/s1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "hi there") {
		t.Errorf("history missing assistant turn: %s", w.Body.String())
	}

	w = f.do("DELETE", "/v1/sessions/s1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	turns, err := f.store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("history should be empty after delete, got %d turns", len(turns))
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	f := newTestServer(t, nil, &engineStub{})

	w := f.do("GET", "/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("404 response is not JSON: %v", err)
	}
	if resp["type"] != "error" {
		t.Errorf("unexpected 404 envelope: %v", resp)
	}
}
