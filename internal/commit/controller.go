// Package commit gates arrived-but-not-yet-surfaced values (extracted
// claims, per-claim verification results) on the paced reveal catching up.
package commit

import (
	"time"

	"github.com/ppiankov/veristream/internal/clock"
	"github.com/ppiankov/veristream/internal/model"
	"github.com/ppiankov/veristream/internal/timeline"
)

// Sink receives the irreversible transitions the controller commits
type Sink interface {
	// CommitStatus applies a completion-driven session status transition.
	CommitStatus(model.SessionStatus)
	// StatusMessage sets the interim progress text.
	StatusMessage(string)
	// SurfaceClaims hands the buffered claim set to the confirmation step.
	SurfaceClaims([]model.Claim)
	// ReleaseResult moves one verification result into the visible
	// collection. Calls arrive in display-completion order.
	ReleaseResult(model.VerificationResult)
	// Finalize fires once when the whole run is committed as completed.
	Finalize()
}

// Controller owns the two pending buffers and the timers that guard them.
// It is not safe for concurrent use; timer callbacks are serialized through
// the exec function supplied by the owner.
type Controller struct {
	clk  clock.Clock
	exec func(func())
	sink Sink

	grace  time.Duration
	safety time.Duration

	claims        []model.Claim
	claimsPending bool
	graceTimer    clock.Timer
	safetyTimer   clock.Timer

	pending  map[string]model.VerificationResult
	upstream model.SessionStatus

	finalized bool
}

// NewController creates a controller. exec must run the given step exactly
// once, serialized against all other session state mutations.
func NewController(clk clock.Clock, grace, safety time.Duration, exec func(func()), sink Sink) *Controller {
	return &Controller{
		clk:     clk,
		exec:    exec,
		sink:    sink,
		grace:   grace,
		safety:  safety,
		pending: make(map[string]model.VerificationResult),
	}
}

// BufferClaims stores an extracted claim set without surfacing it. The
// session status is not advanced yet; a safety timeout forces the surface
// even if the extraction narrative never finishes revealing.
func (c *Controller) BufferClaims(claims []model.Claim) {
	c.stopClaimTimers()
	c.claims = claims
	c.claimsPending = true
	c.sink.StatusMessage("Finishing analysis...")
	c.safetyTimer = c.clk.AfterFunc(c.safety, func() {
		c.exec(c.surfaceClaims)
	})
}

// BufferResult stores a verification result keyed by claim id. Results are
// never committed on arrival; Evaluate releases them once the claim's
// terminal entry has fully revealed.
func (c *Controller) BufferResult(r model.VerificationResult) {
	c.pending[r.ClaimID] = r
}

// ObserveUpstream records the producer-reported session status
func (c *Controller) ObserveUpstream(s model.SessionStatus) {
	c.upstream = s
}

// Evaluate runs the gating rules against the current log. The owner calls
// it after every state step (merge, reveal tick, buffer mutation).
func (c *Controller) Evaluate(log *timeline.Log) {
	// Extraction commit: once the extraction narrative has fully revealed
	// and a claim set is waiting, surface it after a short grace delay.
	if c.claimsPending && c.graceTimer == nil && extractionRevealed(log) {
		c.graceTimer = c.clk.AfterFunc(c.grace, func() {
			c.exec(c.surfaceClaims)
		})
	}

	// Verification commit: release every result whose terminal entry has
	// revealed, not just the first. Bulk runs complete many claims in the
	// same step; release order follows display completion, not arrival.
	if len(c.pending) > 0 {
		for _, e := range log.Entries() {
			if e.Phase != model.PhaseCompleted || !e.DisplayComplete {
				continue
			}
			if r, ok := c.pending[e.ClaimID]; ok {
				delete(c.pending, e.ClaimID)
				c.sink.ReleaseResult(r)
			}
		}
	}

	// Overall completion: the producer finished, every terminal entry has
	// revealed, and nothing is left pending.
	if !c.finalized &&
		c.upstream == model.SessionCompleted &&
		len(c.pending) == 0 &&
		!c.claimsPending &&
		terminalsRevealed(log) {
		c.finalized = true
		c.sink.CommitStatus(model.SessionCompleted)
		c.sink.Finalize()
	}
}

// surfaceClaims commits the awaiting_confirmation transition. Reached from
// the grace timer or the safety timeout, whichever fires first.
func (c *Controller) surfaceClaims() {
	if !c.claimsPending {
		return
	}
	c.stopClaimTimers()
	c.claimsPending = false
	claims := c.claims
	c.claims = nil

	c.sink.CommitStatus(model.SessionAwaitingConfirmation)
	c.sink.SurfaceClaims(claims)
}

// PendingResults returns how many results are still gated
func (c *Controller) PendingResults() int { return len(c.pending) }

// ClaimsPending reports whether a claim set is buffered but not surfaced
func (c *Controller) ClaimsPending() bool { return c.claimsPending }

// Reset cancels every outstanding timer and clears both buffers
func (c *Controller) Reset() {
	c.stopClaimTimers()
	c.claims = nil
	c.claimsPending = false
	c.pending = make(map[string]model.VerificationResult)
	c.upstream = ""
	c.finalized = false
}

func (c *Controller) stopClaimTimers() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
	if c.safetyTimer != nil {
		c.safetyTimer.Stop()
		c.safetyTimer = nil
	}
}

// extractionRevealed reports whether the extraction narrative exists and
// every one of its entries has fully revealed
func extractionRevealed(log *timeline.Log) bool {
	found := false
	for _, e := range log.Entries() {
		if e.ClaimID != model.ExtractionClaimID {
			continue
		}
		found = true
		if !e.DisplayComplete {
			return false
		}
	}
	return found
}

// terminalsRevealed reports whether every completed-phase entry has revealed
func terminalsRevealed(log *timeline.Log) bool {
	for _, e := range log.Entries() {
		if e.Phase == model.PhaseCompleted && !e.DisplayComplete {
			return false
		}
	}
	return true
}
