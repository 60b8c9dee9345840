// Package session composes the update merge log, reveal scheduler, commit
// controller and focus projection into the client-side session core.
package session

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ppiankov/veristream/internal/clock"
	"github.com/ppiankov/veristream/internal/commit"
	"github.com/ppiankov/veristream/internal/focus"
	"github.com/ppiankov/veristream/internal/model"
	"github.com/ppiankov/veristream/internal/reveal"
	"github.com/ppiankov/veristream/internal/timeline"
)

// EntryView is the read-only projection of one timeline entry
type EntryView struct {
	ClaimID         string
	Phase           string
	Text            string // currently revealed prefix
	Full            string // complete target text
	IsNativeThought bool
	IsRefined       bool
	DisplayComplete bool
}

// Snapshot is an immutable view of the session for renderers
type Snapshot struct {
	Status         model.SessionStatus
	StatusMessage  string
	Error          string
	Pane           focus.Pane
	Timeline       []EntryView
	Claims         []model.Claim
	Results        []model.VerificationResult
	PendingResults int
	Finalized      bool
}

// Core owns all derived session state. Every entry point (event arrival,
// timer callback, reset, manual focus) serializes on one mutex, so state
// advances in discrete, non-overlapping steps.
type Core struct {
	mu  sync.Mutex
	gen int // bumped on reset; steps scheduled under an old generation are dropped

	cfg    model.RevealConfig
	clk    clock.Clock
	logger *slog.Logger

	log   *timeline.Log
	sched *reveal.Scheduler
	ctrl  *commit.Controller
	proj  *focus.Projection

	status        model.SessionStatus
	statusMessage string
	lastError     string
	claims        []model.Claim
	results       []model.VerificationResult
	finalized     bool

	subs    map[int]func(Snapshot)
	nextSub int
}

// NewCore creates an idle session core
func NewCore(cfg model.RevealConfig, clk clock.Clock, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Core{
		cfg:    cfg,
		clk:    clk,
		logger: logger,
		log:    timeline.NewLog(),
		proj:   focus.NewProjection(),
		status: model.SessionIdle,
		subs:   make(map[int]func(Snapshot)),
	}
	c.rebuild()
	return c
}

// rebuild wires a fresh scheduler and controller bound to the current
// generation. Timers armed by previous instances become no-ops.
func (c *Core) rebuild() {
	exec := c.bindExec()
	c.sched = reveal.NewScheduler(c.clk, c.cfg.Interval, exec)
	c.ctrl = commit.NewController(c.clk, c.cfg.GraceDelay, c.cfg.SafetyTimeout, exec, (*sink)(c))
}

// bindExec returns the serializer handed to the scheduler and controller.
// The generation captured here invalidates stale timer callbacks that fire
// after a reset has already replaced the state they were armed against.
func (c *Core) bindExec() func(func()) {
	gen := c.gen
	return func(step func()) {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		step()
		snap, subs := c.afterStepLocked()
		c.mu.Unlock()
		notify(subs, snap)
	}
}

// run executes one externally triggered step
func (c *Core) run(step func()) {
	c.mu.Lock()
	step()
	snap, subs := c.afterStepLocked()
	c.mu.Unlock()
	notify(subs, snap)
}

// afterStepLocked re-evaluates the gating rules and focus after any step
func (c *Core) afterStepLocked() (Snapshot, []func(Snapshot)) {
	c.ctrl.Evaluate(c.log)
	c.proj.Observe(c.status, c.log.Len(), len(c.results), c.finalized)

	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	return snap, subs
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}

// HandleMessage ingests one raw wire message. Malformed payloads are
// dropped with a log line; the stream is never terminated over one message.
func (c *Core) HandleMessage(raw []byte) {
	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn("dropping malformed message", "error", err)
		return
	}
	c.HandleEnvelope(env)
}

// HandleEnvelope ingests one typed event
func (c *Core) HandleEnvelope(env model.Envelope) {
	switch env.Type {
	case model.EventThinkingUpdate:
		var ev model.UpdateEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			c.logger.Warn("dropping malformed thinking update", "error", err)
			return
		}
		c.run(func() { c.applyUpdate(ev) })

	case model.EventVerificationResult:
		var r model.VerificationResult
		if err := json.Unmarshal(env.Data, &r); err != nil {
			c.logger.Warn("dropping malformed verification result", "error", err)
			return
		}
		c.run(func() { c.ctrl.BufferResult(r) })

	case model.EventClaimsExtracted:
		var d model.ClaimsData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			c.logger.Warn("dropping malformed claim set", "error", err)
			return
		}
		c.run(func() { c.ctrl.BufferClaims(d.Claims) })

	case model.EventStatus:
		var d model.StatusData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			c.logger.Warn("dropping malformed status event", "error", err)
			return
		}
		c.run(func() { c.applyStatus(d) })

	case model.EventError:
		var d model.ErrorData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			c.logger.Warn("dropping malformed error event", "error", err)
			return
		}
		c.run(func() {
			c.status = model.SessionError
			c.lastError = d.Error
		})

	default:
		c.logger.Warn("ignoring unknown event type", "type", env.Type)
	}
}

// applyUpdate merges one progress event and re-syncs the reveal
func (c *Core) applyUpdate(ev model.UpdateEvent) {
	if c.status == model.SessionError {
		return
	}
	c.log.Merge(ev)
	c.sched.Sync(c.log)
}

// applyStatus applies a producer-reported status. awaiting_confirmation and
// completed are display-gated and owned by the commit controller, so they
// only feed its upstream observation here.
func (c *Core) applyStatus(d model.StatusData) {
	if d.Message != "" {
		c.statusMessage = d.Message
	}
	if d.Status == "" {
		return
	}

	c.ctrl.ObserveUpstream(d.Status)

	switch d.Status {
	case model.SessionExtracting, model.SessionVerifying:
		if c.status.CanAdvance(d.Status) {
			c.status = d.Status
		}
	case model.SessionError:
		c.status = model.SessionError
	}
}

// SelectPane applies a manual focus choice
func (c *Core) SelectPane(p focus.Pane) bool {
	ok := false
	c.run(func() { ok = c.proj.Select(p, c.status) })
	return ok
}

// Subscribe registers a snapshot callback, invoked after every state step.
// The returned id deterministically unregisters via Unsubscribe.
func (c *Core) Subscribe(fn func(Snapshot)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	return id
}

// Unsubscribe removes a subscription
func (c *Core) Unsubscribe(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

// Snapshot returns the current derived state
func (c *Core) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Core) snapshotLocked() Snapshot {
	views := make([]EntryView, 0, c.log.Len())
	for _, e := range c.log.Entries() {
		views = append(views, EntryView{
			ClaimID:         e.ClaimID,
			Phase:           e.Phase,
			Text:            reveal.Displayed(e),
			Full:            e.Message,
			IsNativeThought: e.IsNativeThought,
			IsRefined:       e.IsRefined,
			DisplayComplete: e.DisplayComplete,
		})
	}
	return Snapshot{
		Status:         c.status,
		StatusMessage:  c.statusMessage,
		Error:          c.lastError,
		Pane:           c.proj.Pane(),
		Timeline:       views,
		Claims:         append([]model.Claim(nil), c.claims...),
		Results:        append([]model.VerificationResult(nil), c.results...),
		PendingResults: c.ctrl.PendingResults(),
		Finalized:      c.finalized,
	}
}

// Reset returns the session to idle: empty log, empty buffers, no live
// timers. Stale timers that still fire are dropped by the generation guard.
func (c *Core) Reset() {
	c.mu.Lock()
	c.gen++
	c.sched.Reset()
	c.ctrl.Reset()
	c.log.Reset()
	c.proj.Reset()
	c.rebuild()

	c.status = model.SessionIdle
	c.statusMessage = ""
	c.lastError = ""
	c.claims = nil
	c.results = nil
	c.finalized = false

	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	notify(subs, snap)
}

// sink adapts Core to the commit controller's sink. Methods run inside a
// step with the core lock held.
type sink Core

func (s *sink) CommitStatus(st model.SessionStatus) {
	c := (*Core)(s)
	if c.status.CanAdvance(st) {
		c.status = st
	}
}

func (s *sink) StatusMessage(m string) {
	(*Core)(s).statusMessage = m
}

func (s *sink) SurfaceClaims(claims []model.Claim) {
	(*Core)(s).claims = claims
}

func (s *sink) ReleaseResult(r model.VerificationResult) {
	c := (*Core)(s)
	c.results = append(c.results, r)
}

func (s *sink) Finalize() {
	(*Core)(s).finalized = true
}
