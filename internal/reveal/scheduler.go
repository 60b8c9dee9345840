// Package reveal paces the visible disclosure of timeline entry text,
// decoupled from how fast the underlying data arrived.
package reveal

import (
	"time"

	"github.com/ppiankov/veristream/internal/clock"
	"github.com/ppiankov/veristream/internal/timeline"
)

// Scheduler reveals exactly one active entry (the newest in the log) one
// rune per interval; every other entry is shown instantly in full. It owns
// no domain state: it only writes Displayed and DisplayComplete.
//
// The scheduler is not safe for concurrent use. Timer callbacks are routed
// through the exec function supplied by the owner, which serializes them
// with every other state step.
type Scheduler struct {
	clk      clock.Clock
	interval time.Duration
	exec     func(func())

	active *timeline.Entry
	target []rune
	timer  clock.Timer
}

// NewScheduler creates a scheduler. exec must run the given step exactly
// once, serialized against all other mutations of the session state.
func NewScheduler(clk clock.Clock, interval time.Duration, exec func(func())) *Scheduler {
	return &Scheduler{clk: clk, interval: interval, exec: exec}
}

// Sync reconciles display state with the log after a merge: the newest
// entry becomes (or stays) the active paced one, everything older snaps to
// fully revealed.
func (s *Scheduler) Sync(log *timeline.Log) {
	entries := log.Entries()
	for i, e := range entries {
		if i < len(entries)-1 {
			complete(e)
		}
	}

	last := log.Last()
	if last == nil {
		s.Reset()
		return
	}
	s.activate(last)
}

// activate designates e as the paced entry and restarts the reveal timer.
// An in-progress timer is always cancelled before a new one is scheduled so
// two timers never race on the same slot.
func (s *Scheduler) activate(e *timeline.Entry) {
	s.stopTimer()

	if e != s.active {
		if s.active != nil {
			complete(s.active)
		}
		s.active = e
	}

	s.target = []rune(e.Message)

	switch {
	case len(s.target) < e.Displayed:
		// Shrink: the displayed prefix is no longer a prefix of the
		// target, treat it as a new logical entry.
		e.Displayed = 0
		e.DisplayComplete = false
	case len(s.target) == e.Displayed:
		// Nothing left to reveal (covers the empty-target case).
		markComplete(e)
		return
	default:
		// Growth: continue from the current position.
		e.DisplayComplete = false
	}

	s.schedule()
}

// schedule arms the next tick for the active entry
func (s *Scheduler) schedule() {
	s.timer = s.clk.AfterFunc(s.interval, func() {
		s.exec(s.tick)
	})
}

// tick reveals exactly one additional rune of the active entry
func (s *Scheduler) tick() {
	s.timer = nil
	e := s.active
	if e == nil || e.DisplayComplete {
		return
	}

	if e.Displayed < len(s.target) {
		e.Displayed++
	}
	if e.Displayed >= len(s.target) {
		markComplete(e)
		return
	}
	s.schedule()
}

// Active returns the currently paced entry, or nil
func (s *Scheduler) Active() *timeline.Entry {
	return s.active
}

// Displayed returns the currently visible prefix of an entry
func Displayed(e *timeline.Entry) string {
	runes := []rune(e.Message)
	if e.Displayed >= len(runes) {
		return e.Message
	}
	return string(runes[:e.Displayed])
}

// Reset cancels any outstanding timer and forgets the active entry
func (s *Scheduler) Reset() {
	s.stopTimer()
	s.active = nil
	s.target = nil
}

func (s *Scheduler) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// complete snaps an entry to fully revealed
func complete(e *timeline.Entry) {
	e.Displayed = len([]rune(e.Message))
	markComplete(e)
}

func markComplete(e *timeline.Entry) {
	if !e.DisplayComplete {
		e.DisplayComplete = true
	}
}
