package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/veristream/internal/agent"
	"github.com/ppiankov/veristream/internal/evidence"
	"github.com/ppiankov/veristream/internal/llm"
	"github.com/ppiankov/veristream/internal/model"
	"github.com/ppiankov/veristream/internal/orchestrator"
	"github.com/ppiankov/veristream/internal/store"
)

type cannedProvider struct{ response string }

func (p *cannedProvider) Name() string                     { return "canned" }
func (p *cannedProvider) IsAvailable(context.Context) bool { return true }
func (p *cannedProvider) Complete(context.Context, llm.ChatRequest) (string, error) {
	return p.response, nil
}
func (p *cannedProvider) Stream(_ context.Context, _ llm.ChatRequest, fn llm.StreamFunc) error {
	return fn(llm.Chunk{Type: llm.ChunkText, Text: p.response})
}

type staticFetcher struct{ text string }

func (f *staticFetcher) FetchText(context.Context, string) (string, error) {
	return f.text, nil
}

const extractionJSON = `[{"claim": "water boils at 100C", "verbatim": "water boils at 100C", "type": "scientific", "confidence": 0.9}]`

const verificationText = `## Verification Status
VERIFIED

## Confidence Score
0.95`

func newTestServer(t *testing.T) (*httptest.Server, *store.Manager) {
	t.Helper()

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	hub := NewHub(nil, metrics)
	sessions := store.NewManager(time.Minute, nil)

	ext := agent.NewExtractor(&cannedProvider{response: extractionJSON}, nil, 1000, nil)
	ver := agent.NewVerifier(&cannedProvider{response: verificationText}, nil, 1000, evidence.NewClassifier(nil), nil)
	svc := orchestrator.NewService(ext, ver, sessions, hub, orchestrator.Options{
		Workers:      2,
		LLMPerSecond: 1000,
	}, nil)

	srv := New(model.ServerConfig{CORSOrigins: []string{"*"}}, sessions, svc, hub, metrics, registry,
		&staticFetcher{text: "water boils at 100C at sea level."}, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, sessions
}

func postJSON(t *testing.T, url string, body any) map[string]any {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST %s: status %d", url, resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestServer_CreateSession(t *testing.T) {
	ts, sessions := newTestServer(t)

	out := postJSON(t, ts.URL+"/api/create-session", map[string]any{})
	id, _ := out["session_id"].(string)
	if id == "" {
		t.Fatal("expected session_id in response")
	}
	if _, ok := sessions.Get(id); !ok {
		t.Error("session not stored")
	}
}

func TestServer_AnalyzeTextFlow(t *testing.T) {
	ts, sessions := newTestServer(t)

	out := postJSON(t, ts.URL+"/api/analyze-text", map[string]any{
		"text": "water boils at 100C at sea level.",
	})
	if out["status"] != string(model.SessionAwaitingConfirmation) {
		t.Errorf("expected awaiting_confirmation, got %v", out["status"])
	}
	claims, _ := out["claims"].([]any)
	if len(claims) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(claims))
	}

	id := out["session_id"].(string)
	session, ok := sessions.Get(id)
	if !ok || session.Snapshot().ExtractedClaimsCount != 1 {
		t.Error("claims not stored on session")
	}
}

func TestServer_AnalyzeText_RequiresText(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/analyze-text", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServer_AnalyzeURL(t *testing.T) {
	ts, _ := newTestServer(t)
	out := postJSON(t, ts.URL+"/api/analyze-url", map[string]any{"url": "https://example.com/article"})
	if out["status"] != string(model.SessionAwaitingConfirmation) {
		t.Errorf("expected awaiting_confirmation, got %v", out["status"])
	}
}

func TestServer_ConfirmClaimsAndCompletion(t *testing.T) {
	ts, sessions := newTestServer(t)

	created := postJSON(t, ts.URL+"/api/create-session", map[string]any{})
	id := created["session_id"].(string)

	out := postJSON(t, ts.URL+"/api/confirm-claims", map[string]any{
		"session_id": id,
		"confirmed_claims": []model.Claim{
			{ID: "claim_1", Claim: "water boils at 100C"},
		},
	})
	if out["status"] != string(model.SessionVerifying) {
		t.Fatalf("expected verifying ack, got %v", out["status"])
	}

	session, _ := sessions.Get(id)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if session.Snapshot().Status == model.SessionCompleted {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	v := session.Snapshot()
	if v.Status != model.SessionCompleted || v.ResultsCount != 1 {
		t.Fatalf("background verification did not finish: %+v", v)
	}
}

func TestServer_ConfirmClaims_UnknownSession(t *testing.T) {
	ts, _ := newTestServer(t)
	raw, _ := json.Marshal(map[string]any{"session_id": "missing", "confirmed_claims": []model.Claim{}})
	resp, err := http.Post(ts.URL+"/api/confirm-claims", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestServer_VerifySingle(t *testing.T) {
	ts, _ := newTestServer(t)
	out := postJSON(t, ts.URL+"/api/verify-single", map[string]any{"claim": "water boils at 100C"})
	if out["status"] != string(model.SessionCompleted) {
		t.Errorf("expected completed, got %v", out["status"])
	}
	result, _ := out["result"].(map[string]any)
	if result["status"] != string(model.StatusVerified) {
		t.Errorf("expected VERIFIED verdict, got %v", result["status"])
	}
}

func TestServer_SessionLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	created := postJSON(t, ts.URL+"/api/create-session", map[string]any{})
	id := created["session_id"].(string)

	resp, err := http.Get(ts.URL + "/api/session/" + id)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET session: expected 200, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/session/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("DELETE session: expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/session/" + id)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServer_Metrics(t *testing.T) {
	ts, _ := newTestServer(t)
	postJSON(t, ts.URL+"/api/create-session", map[string]any{})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "veristream_sessions_created_total 1") {
		t.Error("session counter missing from metrics exposition")
	}
}

func TestServer_WebSocketStreaming(t *testing.T) {
	ts, _ := newTestServer(t)

	created := postJSON(t, ts.URL+"/api/create-session", map[string]any{})
	id := created["session_id"].(string)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	postJSON(t, ts.URL+"/api/confirm-claims", map[string]any{
		"session_id":       id,
		"confirmed_claims": []model.Claim{{ID: "claim_1", Claim: "water boils at 100C"}},
	})

	// Read until the completed status arrives; every frame must be a
	// well-formed envelope.
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	sawResult := false
	for {
		var env model.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read envelope: %v (sawResult=%v)", err, sawResult)
		}
		if env.Timestamp.IsZero() {
			t.Error("envelope missing timestamp")
		}
		switch env.Type {
		case model.EventVerificationResult:
			sawResult = true
		case model.EventStatus:
			var d model.StatusData
			if err := json.Unmarshal(env.Data, &d); err != nil {
				t.Fatalf("bad status payload: %v", err)
			}
			if d.Status == model.SessionCompleted {
				if !sawResult {
					t.Error("completed before any result event")
				}
				return
			}
		}
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/create-session", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 preflight, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("unexpected allow-origin: %q", got)
	}
}
