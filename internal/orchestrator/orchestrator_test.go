package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/veristream/internal/agent"
	"github.com/ppiankov/veristream/internal/llm"
	"github.com/ppiankov/veristream/internal/model"
	"github.com/ppiankov/veristream/internal/store"
)

// scriptedProvider answers every Stream call with the same canned text
type scriptedProvider struct {
	mu       sync.Mutex
	response string
	prompts  []string
}

func (p *scriptedProvider) Name() string                     { return "scripted" }
func (p *scriptedProvider) IsAvailable(context.Context) bool { return true }

func (p *scriptedProvider) Complete(_ context.Context, req llm.ChatRequest) (string, error) {
	return p.response, nil
}

func (p *scriptedProvider) Stream(_ context.Context, req llm.ChatRequest, fn llm.StreamFunc) error {
	p.mu.Lock()
	p.prompts = append(p.prompts, req.Prompt)
	p.mu.Unlock()
	return fn(llm.Chunk{Type: llm.ChunkText, Text: p.response})
}

// recordingBus captures broadcasts for assertions
type recordingBus struct {
	mu       sync.Mutex
	updates  []model.UpdateEvent
	claims   [][]model.Claim
	results  []model.VerificationResult
	statuses []model.SessionStatus
	errors   []string
}

func (b *recordingBus) BroadcastUpdate(_ string, ev model.UpdateEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, ev)
}

func (b *recordingBus) BroadcastClaims(_ string, claims []model.Claim) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.claims = append(b.claims, claims)
}

func (b *recordingBus) BroadcastResult(_ string, r model.VerificationResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = append(b.results, r)
}

func (b *recordingBus) BroadcastStatus(_ string, status model.SessionStatus, _ string, _ map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, status)
}

func (b *recordingBus) BroadcastError(_ string, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors = append(b.errors, msg)
}

func (b *recordingBus) lastStatus() model.SessionStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.statuses) == 0 {
		return ""
	}
	return b.statuses[len(b.statuses)-1]
}

const extractionResponse = `[
  {"claim": "Go was released in 2009", "verbatim": "Go was released in 2009", "type": "historical", "confidence": 0.9},
  {"claim": "Go has a garbage collector", "verbatim": "Go has a garbage collector", "type": "scientific", "confidence": 0.8}
]`

const verificationResponse = `## Verification Status
VERIFIED

## Confidence Score
0.9

## Evidence Summary
Well documented.`

func newTestService(extractResp, verifyResp string, opts Options) (*Service, *store.Manager, *recordingBus) {
	ext := agent.NewExtractor(&scriptedProvider{response: extractResp}, nil, 1000, nil)
	ver := agent.NewVerifier(&scriptedProvider{response: verifyResp}, nil, 1000, nil, nil)
	sessions := store.NewManager(time.Minute, nil)
	bus := &recordingBus{}
	if opts.LLMPerSecond == 0 {
		opts.LLMPerSecond = 1000 // keep tests fast
	}
	return NewService(ext, ver, sessions, bus, opts, nil), sessions, bus
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestService_ExtractText(t *testing.T) {
	svc, sessions, bus := newTestService(extractionResponse, verificationResponse, Options{})
	session := sessions.Create("")

	claims, err := svc.ExtractText(context.Background(), session.ID, "Go was released in 2009. Go has a garbage collector.")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(claims))
	}

	if session.Snapshot().Status != model.SessionAwaitingConfirmation {
		t.Errorf("expected awaiting_confirmation, got %s", session.Snapshot().Status)
	}
	if len(bus.claims) != 1 || len(bus.claims[0]) != 2 {
		t.Errorf("claims not broadcast: %+v", bus.claims)
	}
}

func TestService_ExtractText_SprintSlicing(t *testing.T) {
	svc, sessions, _ := newTestService(extractionResponse, verificationResponse, Options{MaxChunkWords: 5})
	session := sessions.Create("")

	text := "one two three four five six seven eight"
	if _, err := svc.ExtractText(context.Background(), session.ID, text); err != nil {
		t.Fatalf("ExtractText: %v", err)
	}

	v := session.Snapshot()
	if v.RemainingWords != 3 {
		t.Errorf("expected 3 remaining words, got %d", v.RemainingWords)
	}

	session.Update(func(s *store.Session) {
		if s.RemainingText != "six seven eight" {
			t.Errorf("unexpected remaining text: %q", s.RemainingText)
		}
	})
}

func TestService_ExtractText_UnknownSession(t *testing.T) {
	svc, _, _ := newTestService(extractionResponse, verificationResponse, Options{})
	if _, err := svc.ExtractText(context.Background(), "missing", "text"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestService_Verify(t *testing.T) {
	svc, sessions, bus := newTestService(extractionResponse, verificationResponse, Options{Workers: 2})
	session := sessions.Create("")

	confirmed := []model.Claim{
		{ID: "claim_1", Claim: "Go was released in 2009"},
		{ID: "claim_2", Claim: "Go has a garbage collector"},
		{ID: "claim_3", Claim: "Go compiles fast"},
	}
	if err := svc.Verify(context.Background(), session.ID, confirmed); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	waitFor(t, func() bool { return bus.lastStatus() == model.SessionCompleted })

	if session.Snapshot().Status != model.SessionCompleted {
		t.Errorf("expected completed session, got %s", session.Snapshot().Status)
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	if len(bus.results) != 3 {
		t.Fatalf("expected 3 result broadcasts, got %d", len(bus.results))
	}
	for _, r := range bus.results {
		if r.Status != model.StatusVerified {
			t.Errorf("unexpected result status: %s", r.Status)
		}
	}

	// Terminal completed-phase updates carry the embedded result.
	var terminals int
	for _, u := range bus.updates {
		if u.Phase == model.PhaseCompleted && u.Result != nil {
			terminals++
		}
	}
	if terminals != 3 {
		t.Errorf("expected 3 terminal updates with results, got %d", terminals)
	}
}

func TestService_VerifySingle(t *testing.T) {
	svc, sessions, bus := newTestService(extractionResponse, verificationResponse, Options{})
	session := sessions.Create("")

	result, err := svc.VerifySingle(context.Background(), session.ID, "The moon orbits the earth")
	if err != nil {
		t.Fatalf("VerifySingle: %v", err)
	}
	if result.ClaimID != "single_claim" || result.Status != model.StatusVerified {
		t.Errorf("unexpected result: %+v", result)
	}
	if session.Snapshot().Status != model.SessionCompleted {
		t.Errorf("expected completed, got %s", session.Snapshot().Status)
	}
	if len(bus.results) != 1 {
		t.Errorf("expected 1 result broadcast, got %d", len(bus.results))
	}
}

func TestSplitSprint(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxWords  int
		chunk     string
		remaining string
	}{
		{"short text unchanged", "a b c", 5, "a b c", ""},
		{"exact boundary", "a b c", 3, "a b c", ""},
		{"sliced", "a b c d e", 3, "a b c", "d e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, remaining := splitSprint(tt.text, tt.maxWords)
			if chunk != tt.chunk || remaining != tt.remaining {
				t.Errorf("got (%q, %q), want (%q, %q)", chunk, remaining, tt.chunk, tt.remaining)
			}
		})
	}
}

func TestService_ExtractText_WhitespaceOnlyText(t *testing.T) {
	svc, sessions, _ := newTestService("not json at all", verificationResponse, Options{})
	session := sessions.Create("")

	// Parse failure falls back to naive sentence claims, never an error.
	claims, err := svc.ExtractText(context.Background(), session.ID, strings.Repeat("word ", 30)+"ends here.")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if len(claims) == 0 {
		t.Fatal("expected fallback claims")
	}
}
