package focus

import (
	"testing"

	"github.com/ppiankov/veristream/internal/model"
)

func TestProjection_ConfirmationLocksAttention(t *testing.T) {
	p := NewProjection()
	pane := p.Observe(model.SessionAwaitingConfirmation, 3, 0, false)
	if pane != PaneConfirmation {
		t.Fatalf("expected confirmation pane, got %s", pane)
	}
	if p.Select(PaneResults, model.SessionAwaitingConfirmation) {
		t.Error("manual override must be rejected while awaiting confirmation")
	}
	if p.Pane() != PaneConfirmation {
		t.Errorf("pane moved despite rejection: %s", p.Pane())
	}
}

func TestProjection_FirstNarrativeMovesToProgress(t *testing.T) {
	p := NewProjection()
	if pane := p.Observe(model.SessionExtracting, 1, 0, false); pane != PaneProgress {
		t.Fatalf("expected progress pane on first narrative, got %s", pane)
	}

	// The rule is one-shot: a later manual choice sticks.
	if !p.Select(PaneInput, model.SessionExtracting) {
		t.Fatal("manual selection should be honored")
	}
	if pane := p.Observe(model.SessionExtracting, 5, 0, false); pane != PaneInput {
		t.Errorf("narrative rule fired twice, got %s", pane)
	}
}

func TestProjection_NarrativeDoesNotStealFromResults(t *testing.T) {
	p := NewProjection()
	p.Select(PaneResults, model.SessionIdle)
	if pane := p.Observe(model.SessionExtracting, 1, 0, false); pane != PaneResults {
		t.Errorf("progress must not steal attention from results, got %s", pane)
	}
}

func TestProjection_FirstResultMovesToResults(t *testing.T) {
	p := NewProjection()
	p.Observe(model.SessionVerifying, 4, 0, false)
	if pane := p.Observe(model.SessionVerifying, 4, 1, false); pane != PaneResults {
		t.Fatalf("expected results pane on first release, got %s", pane)
	}

	p.Select(PaneProgress, model.SessionVerifying)
	if pane := p.Observe(model.SessionVerifying, 4, 2, false); pane != PaneProgress {
		t.Errorf("result rule fired twice, got %s", pane)
	}
}

func TestProjection_FinalizeMovesToResultsAgain(t *testing.T) {
	p := NewProjection()
	p.Observe(model.SessionVerifying, 4, 1, false)
	p.Select(PaneProgress, model.SessionVerifying)

	if pane := p.Observe(model.SessionCompleted, 4, 3, true); pane != PaneResults {
		t.Errorf("expected results pane on finalize, got %s", pane)
	}
}

func TestProjection_ErrorSuppressesAutomaticMoves(t *testing.T) {
	p := NewProjection()
	p.Observe(model.SessionVerifying, 1, 0, false) // progress
	if pane := p.Observe(model.SessionError, 2, 1, false); pane != PaneProgress {
		t.Errorf("automatic move fired in error state, got %s", pane)
	}
	// Manual viewing of what is already present stays allowed.
	if !p.Select(PaneResults, model.SessionError) {
		t.Error("manual selection must work in error state")
	}
}

func TestProjection_Reset(t *testing.T) {
	p := NewProjection()
	p.Observe(model.SessionVerifying, 2, 1, false)
	p.Reset()
	if p.Pane() != PaneInput {
		t.Errorf("expected input pane after reset, got %s", p.Pane())
	}
	if pane := p.Observe(model.SessionExtracting, 1, 0, false); pane != PaneProgress {
		t.Errorf("one-shot rules must re-arm after reset, got %s", pane)
	}
}
