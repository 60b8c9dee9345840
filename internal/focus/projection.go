// Package focus derives which pane has user attention from session state.
// It owns no independent truth.
package focus

import "github.com/ppiankov/veristream/internal/model"

// Pane identifies one attention surface in the client
type Pane string

const (
	PaneInput        Pane = "input"        // Text/URL entry
	PaneProgress     Pane = "progress"     // Live narrative timeline
	PaneConfirmation Pane = "confirmation" // Claim review before verification
	PaneResults      Pane = "results"      // Released verification results
)

// Projection tracks the current pane and the one-shot automatic rules
type Projection struct {
	pane          Pane
	narrativeSeen bool
	resultSeen    bool
	finalizedSeen bool
}

// NewProjection starts on the input pane
func NewProjection() *Projection {
	return &Projection{pane: PaneInput}
}

// Pane returns the pane currently holding attention
func (p *Projection) Pane() Pane { return p.pane }

// Observe applies the automatic rules, in priority order, against the
// current derived state. Error status suppresses every automatic move.
func (p *Projection) Observe(status model.SessionStatus, timelineLen, releasedResults int, finalized bool) Pane {
	if status == model.SessionError {
		return p.pane
	}

	// Confirmation locks attention while the user must decide.
	if status == model.SessionAwaitingConfirmation {
		p.pane = PaneConfirmation
		return p.pane
	}

	// First narrative activity pulls attention to progress, unless the
	// user is already looking at results.
	if !p.narrativeSeen && timelineLen > 0 {
		p.narrativeSeen = true
		if p.pane != PaneResults {
			p.pane = PaneProgress
		}
	}

	// First released result, and the final commit, both move to results.
	if !p.resultSeen && releasedResults > 0 {
		p.resultSeen = true
		p.pane = PaneResults
	}
	if !p.finalizedSeen && finalized {
		p.finalizedSeen = true
		p.pane = PaneResults
	}

	return p.pane
}

// Select applies a manual pane choice. It is rejected while confirmation
// holds the lock; manual selection is otherwise honored until the next
// automatic rule fires.
func (p *Projection) Select(pane Pane, status model.SessionStatus) bool {
	if status == model.SessionAwaitingConfirmation {
		return false
	}
	p.pane = pane
	return true
}

// Reset returns to the input pane and re-arms the one-shot rules
func (p *Projection) Reset() {
	p.pane = PaneInput
	p.narrativeSeen = false
	p.resultSeen = false
	p.finalizedSeen = false
}
