package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/wingmanhq/wingman/internal/knowledge"
	"github.com/wingmanhq/wingman/internal/llm"
	"github.com/wingmanhq/wingman/internal/orchestrator"
	"github.com/wingmanhq/wingman/internal/thread"
)

const cannedReply = `{"detected_platform":"hinge","summary":"Going well.","replies":[{"text":"Coffee this week?","tone":"direct","principle_ids":["P01"]}]}`

// stubProvider returns cannedReply. When block is set, Complete signals
// entered and waits for block to close.
type stubProvider struct {
	mu      sync.Mutex
	calls   int
	block   chan struct{}
	entered chan struct{}
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls++
	block, entered := p.block, p.entered
	p.mu.Unlock()
	if block != nil {
		entered <- struct{}{}
		<-block
	}
	return &llm.CompletionResponse{Content: cannedReply, Model: "stub"}, nil
}

func newTestServer(t *testing.T, prov llm.Provider, cfg Config) (*Server, *orchestrator.Engine) {
	t.Helper()
	kb, err := knowledge.Default()
	if err != nil {
		t.Fatalf("knowledge.Default: %v", err)
	}
	if prov == nil {
		prov = &stubProvider{}
	}
	engine := orchestrator.New(orchestrator.Deps{
		Repository: thread.NewMemoryRepository(),
		Provider:   prov,
		Knowledge:  kb,
	})
	return New(cfg, engine, nil), engine
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

func createThread(t *testing.T, srv *Server, body any) thread.Thread {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/api/threads", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create thread: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[thread.Thread](t, w)
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, nil, Config{})

	w := do(t, srv, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode[map[string]string](t, w)
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t, nil, Config{AllowAll: true})

	req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestThreadLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, nil, Config{})

	th := createThread(t, srv, createThreadRequest{Title: "Sam", Goal: "dating"})
	if th.ID == "" || th.Title != "Sam" {
		t.Fatalf("unexpected thread: %+v", th)
	}
	if got := th.Context.Value("goal"); got != "dating" {
		t.Errorf("goal = %q, want dating", got)
	}

	w := do(t, srv, http.MethodGet, "/api/threads", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	if list := decode[[]thread.Thread](t, w); len(list) != 1 || list[0].ID != th.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	if w := do(t, srv, http.MethodGet, "/api/threads/"+th.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodDelete, "/api/threads/"+th.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodGet, "/api/threads/"+th.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", w.Code)
	}
}

func TestCreateThreadWithoutBody(t *testing.T) {
	srv, _ := newTestServer(t, nil, Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/threads", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	if w := do(t, srv, http.MethodPost, "/api/threads", "not an object"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestTurnAsksQuestion(t *testing.T) {
	prov := &stubProvider{}
	srv, _ := newTestServer(t, prov, Config{})
	th := createThread(t, srv, nil)

	w := do(t, srv, http.MethodPost, "/api/threads/"+th.ID+"/turns", turnRequest{Text: "they stopped replying"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[orchestrator.TurnResult](t, w)
	if res.Generated {
		t.Error("expected a clarifying question, not a generation")
	}
	if res.Question == nil || res.Question.ID != "platform" {
		t.Fatalf("expected platform question, got %+v", res.Question)
	}
	if prov.calls != 0 {
		t.Errorf("provider called %d times", prov.calls)
	}

	w = do(t, srv, http.MethodPost, "/api/threads/"+th.ID+"/turns",
		turnRequest{Answer: &orchestrator.Answer{QuestionID: "platform", Value: "hinge"}})
	if w.Code != http.StatusOK {
		t.Fatalf("answer: expected 200, got %d", w.Code)
	}
	res = decode[orchestrator.TurnResult](t, w)
	if got := res.Thread.Context.Value("platform"); got != "hinge" {
		t.Errorf("platform = %q, want hinge", got)
	}
}

func TestTurnWithInlineImage(t *testing.T) {
	prov := &stubProvider{}
	srv, _ := newTestServer(t, prov, Config{})
	th := createThread(t, srv, nil)

	// []byte fields travel as base64 in JSON.
	body := `{"image_data":"iVBORw0KGgo=","image_mime":"image/png"}`
	req := httptest.NewRequest(http.MethodPost, "/api/threads/"+th.ID+"/turns", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[orchestrator.TurnResult](t, w)
	if !res.Generated || prov.calls != 1 {
		t.Fatalf("expected one generation, generated=%v calls=%d", res.Generated, prov.calls)
	}
	first := res.Thread.Messages[0]
	if first.Kind != thread.KindImage || !strings.HasPrefix(first.ImageURL, "data:image/png;base64,") {
		t.Errorf("unexpected image message: %+v", first)
	}
}

func TestTurnErrors(t *testing.T) {
	srv, _ := newTestServer(t, nil, Config{})
	th := createThread(t, srv, nil)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown thread", "/api/threads/missing/turns", turnRequest{Text: "hi"}, http.StatusNotFound},
		{"empty input", "/api/threads/" + th.ID + "/turns", turnRequest{}, http.StatusBadRequest},
		{"malformed body", "/api/threads/" + th.ID + "/turns", "nope", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if body := decode[map[string]string](t, w); body["error"] == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestConcurrentTurnConflict(t *testing.T) {
	prov := &stubProvider{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	srv, engine := newTestServer(t, prov, Config{})
	th := createThread(t, srv, nil)

	done := make(chan error, 1)
	go func() {
		_, err := engine.HandleTurn(context.Background(), th.ID, orchestrator.Input{
			Image: &orchestrator.Image{URL: "https://example.com/shot.png"},
		})
		done <- err
	}()
	<-prov.entered

	w := do(t, srv, http.MethodPost, "/api/threads/"+th.ID+"/turns", turnRequest{Text: "hello?"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}

	close(prov.block)
	if err := <-done; err != nil {
		t.Fatalf("first turn: %v", err)
	}
}

func TestNextQuestionAndClearField(t *testing.T) {
	srv, _ := newTestServer(t, nil, Config{})
	th := createThread(t, srv, nil)

	w := do(t, srv, http.MethodGet, "/api/threads/"+th.ID+"/next-question", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	next := decode[nextQuestionResponse](t, w)
	if next.EnoughContext || next.Question == nil || next.Question.ID != "platform" {
		t.Fatalf("unexpected next question: %+v", next)
	}

	do(t, srv, http.MethodPost, "/api/threads/"+th.ID+"/turns",
		turnRequest{Answer: &orchestrator.Answer{QuestionID: "platform", Value: "tinder"}})

	w = do(t, srv, http.MethodDelete, "/api/threads/"+th.ID+"/context/platform", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", w.Code)
	}
	if got := decode[thread.Thread](t, w).Context.Value("platform"); got != "" {
		t.Errorf("platform still set to %q", got)
	}

	if w := do(t, srv, http.MethodDelete, "/api/threads/"+th.ID+"/context/horoscope", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown field: expected 400, got %d", w.Code)
	}
}

func TestRankEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, Config{})

	w := do(t, srv, http.MethodPost, "/api/retrieval/rank", map[string]any{
		"platform":     "tinder",
		"user_message": "she stopped replying",
		"limit":        2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	res := decode[rankResponse](t, w)
	if len(res.Results) == 0 || len(res.Results) > 2 {
		t.Fatalf("expected 1-2 results, got %d", len(res.Results))
	}
	for i := 1; i < len(res.Results); i++ {
		if res.Results[i].Score > res.Results[i-1].Score {
			t.Errorf("results not sorted by score: %+v", res.Results)
		}
	}
	if strings.Count(res.Formatted, "<example ") != len(res.Results) {
		t.Errorf("formatted block count mismatch:\n%s", res.Formatted)
	}
}

func TestPlatformEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, Config{})

	w := do(t, srv, http.MethodGet, "/api/platforms/Tinder", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	p := decode[platformResponse](t, w)
	if p.Key != "tinder" || !strings.Contains(p.Context, "PLATFORM: ") {
		t.Errorf("unexpected platform: %+v", p)
	}

	if w := do(t, srv, http.MethodGet, "/api/platforms/myspace", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown platform: expected 404, got %d", w.Code)
	}
}

func TestWebSocketOriginPolicy(t *testing.T) {
	tests := []struct {
		name     string
		allowAll bool
		origin   string
		wantOK   bool
	}{
		{"no origin", false, "", true},
		{"localhost page", false, "http://localhost:3000", true},
		{"loopback page", false, "http://127.0.0.1:8080", true},
		{"foreign page", false, "http://evil.example", false},
		{"https lookalike", false, "https://localhost.evil.example", false},
		{"foreign page allowed in dev mode", true, "http://evil.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, nil, Config{AllowAll: tt.allowAll})
			th := createThread(t, srv, nil)
			ts := httptest.NewServer(srv.Router())
			defer ts.Close()

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/threads/" + th.ID
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				conn.Close()
				return
			}
			if err == nil {
				conn.Close()
				t.Fatal("expected the handshake to be refused")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("expected 403, got %+v", resp)
			}
		})
	}
}

func TestWebSocketTurns(t *testing.T) {
	srv, _ := newTestServer(t, nil, Config{})
	th := createThread(t, srv, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	base := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/threads/"+th.ID, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(turnRequest{Text: "what should I say?"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp wsResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != "turn" || resp.Result == nil || resp.Result.Question == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if err := conn.WriteJSON(turnRequest{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp = wsResponse{}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != "error" || resp.Status != http.StatusBadRequest {
		t.Fatalf("expected a 400 error message, got %+v", resp)
	}

	_, httpResp, err := websocket.DefaultDialer.Dial(base+"/ws/threads/missing", nil)
	if err == nil {
		t.Fatal("expected dial to fail for unknown thread")
	}
	if httpResp == nil || httpResp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 handshake response, got %+v", httpResp)
	}
}
