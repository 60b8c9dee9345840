package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ppiankov/veristream/internal/clock"
	"github.com/ppiankov/veristream/internal/focus"
	"github.com/ppiankov/veristream/internal/model"
)

var testCfg = model.RevealConfig{
	Interval:      10 * time.Millisecond,
	GraceDelay:    500 * time.Millisecond,
	SafetyTimeout: 4 * time.Second,
}

func newTestCore() (*Core, *clock.Manual) {
	clk := clock.NewManual(time.Unix(0, 0))
	return NewCore(testCfg, clk, nil), clk
}

func envelope(t *testing.T, eventType string, payload any) model.Envelope {
	t.Helper()
	env, err := model.NewEnvelope(eventType, payload)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return env
}

func update(t *testing.T, c *Core, ev model.UpdateEvent) {
	t.Helper()
	c.HandleEnvelope(envelope(t, model.EventThinkingUpdate, ev))
}

// revealAll advances the clock far enough to reveal any pending text
func revealAll(clk *clock.Manual) {
	clk.Advance(testCfg.Interval * 2000)
}

func TestCore_ThinkingUpdatesMergeAndReveal(t *testing.T) {
	c, clk := newTestCore()

	c.HandleEnvelope(envelope(t, model.EventStatus, model.StatusData{Status: model.SessionExtracting}))
	update(t, c, model.UpdateEvent{ClaimID: model.ExtractionClaimID, Phase: model.PhaseAnalyzing, Message: "ab", IsNativeThought: true})
	update(t, c, model.UpdateEvent{ClaimID: model.ExtractionClaimID, Phase: model.PhaseAnalyzing, Message: "cd", IsNativeThought: true})

	snap := c.Snapshot()
	if snap.Status != model.SessionExtracting {
		t.Errorf("expected extracting status, got %s", snap.Status)
	}
	if len(snap.Timeline) != 1 || snap.Timeline[0].Full != "abcd" {
		t.Fatalf("expected one merged entry with abcd, got %+v", snap.Timeline)
	}
	if snap.Timeline[0].DisplayComplete {
		t.Error("reveal must lag behind data arrival")
	}

	clk.Advance(4 * testCfg.Interval)
	snap = c.Snapshot()
	if !snap.Timeline[0].DisplayComplete || snap.Timeline[0].Text != "abcd" {
		t.Errorf("expected full reveal after 4 ticks, got %+v", snap.Timeline[0])
	}
}

func TestCore_ClaimsGatedOnRevealPlusGrace(t *testing.T) {
	c, clk := newTestCore()
	c.HandleEnvelope(envelope(t, model.EventStatus, model.StatusData{Status: model.SessionExtracting}))

	// Claims land in the same step as the final extraction snapshot.
	c.HandleEnvelope(envelope(t, model.EventClaimsExtracted, model.ClaimsData{
		Claims: []model.Claim{{ID: "claim_1", Claim: "x"}},
	}))
	update(t, c, model.UpdateEvent{
		ClaimID: model.ExtractionClaimID, Phase: "PHASE 1", Message: "done",
		IsRefined: true, IsStreamingComplete: true,
	})

	if snap := c.Snapshot(); snap.Status == model.SessionAwaitingConfirmation || len(snap.Claims) != 0 {
		t.Fatal("claims surfaced before the reveal caught up")
	}

	clk.Advance(4 * testCfg.Interval) // reveal "done"
	if snap := c.Snapshot(); len(snap.Claims) != 0 {
		t.Fatal("claims surfaced before the grace delay")
	}

	clk.Advance(testCfg.GraceDelay)
	snap := c.Snapshot()
	if snap.Status != model.SessionAwaitingConfirmation || len(snap.Claims) != 1 {
		t.Fatalf("expected surfaced claims after grace, got status=%s claims=%d", snap.Status, len(snap.Claims))
	}
	if snap.Pane != focus.PaneConfirmation {
		t.Errorf("expected confirmation pane, got %s", snap.Pane)
	}
}

func TestCore_SafetyTimeoutWithoutReveal(t *testing.T) {
	c, clk := newTestCore()
	c.HandleEnvelope(envelope(t, model.EventStatus, model.StatusData{Status: model.SessionExtracting}))
	c.HandleEnvelope(envelope(t, model.EventClaimsExtracted, model.ClaimsData{
		Claims: []model.Claim{{ID: "claim_1"}},
	}))
	// No extraction narrative ever completes (none even arrives).

	clk.Advance(testCfg.SafetyTimeout - time.Millisecond)
	if snap := c.Snapshot(); len(snap.Claims) != 0 {
		t.Fatal("claims surfaced before the safety timeout")
	}
	clk.Advance(time.Millisecond)
	if snap := c.Snapshot(); snap.Status != model.SessionAwaitingConfirmation || len(snap.Claims) != 1 {
		t.Fatalf("safety timeout did not surface the claims: %s", snap.Status)
	}
}

func TestCore_ResultsFollowDisplayCompletionOrder(t *testing.T) {
	c, clk := newTestCore()
	c.HandleEnvelope(envelope(t, model.EventStatus, model.StatusData{Status: model.SessionVerifying}))

	// B's result arrives before A's result.
	c.HandleEnvelope(envelope(t, model.EventVerificationResult, model.VerificationResult{ClaimID: "claim_b", Status: model.StatusVerified}))
	c.HandleEnvelope(envelope(t, model.EventVerificationResult, model.VerificationResult{ClaimID: "claim_a", Status: model.StatusFalse}))

	// A's terminal entry lands first; appending B's snaps A to revealed,
	// so A's display completes first while B is still typing out.
	update(t, c, model.UpdateEvent{ClaimID: "claim_a", Phase: model.PhaseCompleted, Message: "Verification complete: FALSE"})
	update(t, c, model.UpdateEvent{ClaimID: "claim_b", Phase: model.PhaseCompleted, Message: "Verification complete: VERIFIED"})

	snap := c.Snapshot()
	if len(snap.Results) != 1 || snap.Results[0].ClaimID != "claim_a" {
		t.Fatalf("expected claim_a released first, got %+v", snap.Results)
	}

	revealAll(clk)
	snap = c.Snapshot()
	if len(snap.Results) != 2 || snap.Results[1].ClaimID != "claim_b" {
		t.Fatalf("expected claim_b released second, got %+v", snap.Results)
	}
	if snap.Pane != focus.PaneResults {
		t.Errorf("expected results pane after first release, got %s", snap.Pane)
	}
}

func TestCore_CompletionGatedOnRevealAndEmptyPending(t *testing.T) {
	c, clk := newTestCore()
	c.HandleEnvelope(envelope(t, model.EventStatus, model.StatusData{Status: model.SessionVerifying}))
	c.HandleEnvelope(envelope(t, model.EventVerificationResult, model.VerificationResult{ClaimID: "claim_1", Status: model.StatusVerified}))
	update(t, c, model.UpdateEvent{ClaimID: "claim_1", Phase: model.PhaseCompleted, Message: "done"})
	c.HandleEnvelope(envelope(t, model.EventStatus, model.StatusData{Status: model.SessionCompleted, Message: "All verifications completed"}))

	if snap := c.Snapshot(); snap.Status != model.SessionVerifying {
		t.Fatalf("completed must be display-gated, got %s", snap.Status)
	}

	revealAll(clk)
	snap := c.Snapshot()
	if snap.Status != model.SessionCompleted || !snap.Finalized {
		t.Fatalf("expected finalized completed session, got status=%s finalized=%v", snap.Status, snap.Finalized)
	}
	if snap.PendingResults != 0 || len(snap.Results) != 1 {
		t.Errorf("expected one released result and empty pending map, got %d/%d", len(snap.Results), snap.PendingResults)
	}
}

func TestCore_ErrorEventIsTerminalUntilReset(t *testing.T) {
	c, _ := newTestCore()
	c.HandleEnvelope(envelope(t, model.EventStatus, model.StatusData{Status: model.SessionExtracting}))
	c.HandleEnvelope(envelope(t, model.EventError, model.ErrorData{Error: "model quota exceeded"}))

	snap := c.Snapshot()
	if snap.Status != model.SessionError || snap.Error != "model quota exceeded" {
		t.Fatalf("expected error state, got %+v", snap.Status)
	}

	// Further status events cannot leave the error state.
	c.HandleEnvelope(envelope(t, model.EventStatus, model.StatusData{Status: model.SessionVerifying}))
	if got := c.Snapshot().Status; got != model.SessionError {
		t.Errorf("error state must be terminal, got %s", got)
	}

	c.Reset()
	if got := c.Snapshot().Status; got != model.SessionIdle {
		t.Errorf("expected idle after reset, got %s", got)
	}
}

func TestCore_UnknownAndMalformedMessagesDropped(t *testing.T) {
	c, _ := newTestCore()
	c.HandleMessage([]byte(`{not json`))
	c.HandleMessage([]byte(`{"type":"telemetry","data":{}}`))
	c.HandleEnvelope(model.Envelope{Type: model.EventThinkingUpdate, Data: json.RawMessage(`"not an object"`)})

	snap := c.Snapshot()
	if snap.Status != model.SessionIdle || len(snap.Timeline) != 0 {
		t.Errorf("malformed input mutated state: %+v", snap)
	}
}

func TestCore_ResetCancelsEverything(t *testing.T) {
	c, clk := newTestCore()
	c.HandleEnvelope(envelope(t, model.EventStatus, model.StatusData{Status: model.SessionExtracting}))
	c.HandleEnvelope(envelope(t, model.EventClaimsExtracted, model.ClaimsData{Claims: []model.Claim{{ID: "claim_1"}}}))
	update(t, c, model.UpdateEvent{ClaimID: model.ExtractionClaimID, Phase: model.PhaseAnalyzing, Message: "some long narrative"})

	c.Reset()
	before := c.Snapshot()

	// Stale reveal ticks, grace and safety timers must all be inert.
	clk.Advance(10 * testCfg.SafetyTimeout)
	after := c.Snapshot()

	if after.Status != model.SessionIdle || len(after.Timeline) != 0 ||
		len(after.Claims) != 0 || len(after.Results) != 0 || after.PendingResults != 0 {
		t.Errorf("state mutated after reset: %+v", after)
	}
	if before.Pane != focus.PaneInput || after.Pane != focus.PaneInput {
		t.Errorf("expected input pane after reset, got %s/%s", before.Pane, after.Pane)
	}
}

func TestCore_SubscribeNotifiesAndUnsubscribes(t *testing.T) {
	c, _ := newTestCore()

	var seen []model.SessionStatus
	id := c.Subscribe(func(s Snapshot) { seen = append(seen, s.Status) })

	c.HandleEnvelope(envelope(t, model.EventStatus, model.StatusData{Status: model.SessionExtracting}))
	if len(seen) != 1 || seen[0] != model.SessionExtracting {
		t.Fatalf("expected one notification, got %v", seen)
	}

	c.Unsubscribe(id)
	c.HandleEnvelope(envelope(t, model.EventStatus, model.StatusData{Status: model.SessionVerifying}))
	if len(seen) != 1 {
		t.Errorf("notification after unsubscribe: %v", seen)
	}
}

func TestCore_ManualPaneRejectedWhileConfirming(t *testing.T) {
	c, clk := newTestCore()
	c.HandleEnvelope(envelope(t, model.EventStatus, model.StatusData{Status: model.SessionExtracting}))
	c.HandleEnvelope(envelope(t, model.EventClaimsExtracted, model.ClaimsData{Claims: []model.Claim{{ID: "claim_1"}}}))
	clk.Advance(testCfg.SafetyTimeout + time.Millisecond)

	if c.Snapshot().Status != model.SessionAwaitingConfirmation {
		t.Fatal("setup: expected awaiting confirmation")
	}
	if c.SelectPane(focus.PaneResults) {
		t.Error("manual pane selection must be rejected while confirming")
	}
}
