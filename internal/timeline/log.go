// Package timeline holds the canonical ordered log of progress entries for
// one session and owns the merge semantics for incoming update events.
package timeline

import "github.com/ppiankov/veristream/internal/model"

// Entry is the materialized, possibly still growing text for one
// (claim_id, phase) pair. Content fields are mutated only by Log.Merge;
// Displayed and DisplayComplete belong to the reveal scheduler.
type Entry struct {
	ClaimID             string
	Phase               string
	Message             string
	IsNativeThought     bool
	IsRefined           bool
	IsDelta             bool
	IsStreamingComplete bool

	// Reveal-owned state. Displayed is the currently visible rune count.
	Displayed       int
	DisplayComplete bool
}

// Mutation describes what a merge did to the log
type Mutation int

const (
	MutationAppended Mutation = iota
	MutationConcatenated
	MutationReplaced
)

// Log is the ordered timeline of entries for one session
type Log struct {
	entries []*Entry
}

// NewLog creates an empty log
func NewLog() *Log {
	return &Log{}
}

// Merge applies one update event to the log. Rules, first match wins:
//
//  1. A native-thought event whose (claim_id, phase) matches the last entry
//     and that entry is itself native-thought: concatenate the message.
//  2. A delta or streaming-complete event replaces an existing delta-tagged
//     entry for the same (claim_id, phase) wholesale (deltas are cumulative
//     snapshots, not increments); if none exists, append.
//  3. Anything else appends. The log never rejects an event.
func (l *Log) Merge(ev model.UpdateEvent) (*Entry, Mutation) {
	if ev.IsNativeThought {
		if last := l.Last(); last != nil &&
			last.IsNativeThought &&
			last.ClaimID == ev.ClaimID &&
			last.Phase == ev.Phase {
			last.Message += ev.Message
			return last, MutationConcatenated
		}
	}

	if ev.IsDelta || ev.IsStreamingComplete {
		for _, e := range l.entries {
			if e.ClaimID == ev.ClaimID && e.Phase == ev.Phase && (e.IsDelta || e.IsStreamingComplete) {
				replaceFields(e, ev)
				return e, MutationReplaced
			}
		}
	}

	e := &Entry{}
	replaceFields(e, ev)
	l.entries = append(l.entries, e)
	return e, MutationAppended
}

// replaceFields overwrites the content fields from the event, leaving the
// reveal-owned fields untouched.
func replaceFields(e *Entry, ev model.UpdateEvent) {
	e.ClaimID = ev.ClaimID
	e.Phase = ev.Phase
	e.Message = ev.Message
	e.IsNativeThought = ev.IsNativeThought
	e.IsRefined = ev.IsRefined
	e.IsDelta = ev.IsDelta
	e.IsStreamingComplete = ev.IsStreamingComplete
}

// Len returns the number of entries
func (l *Log) Len() int { return len(l.entries) }

// Last returns the most recent entry, or nil for an empty log
func (l *Log) Last() *Entry {
	if len(l.entries) == 0 {
		return nil
	}
	return l.entries[len(l.entries)-1]
}

// At returns the entry at index i
func (l *Log) At(i int) *Entry { return l.entries[i] }

// Entries returns the backing slice. Callers must treat it as read-only.
func (l *Log) Entries() []*Entry { return l.entries }

// Terminal returns the completed-phase entry for a claim id, or nil
func (l *Log) Terminal(claimID string) *Entry {
	for _, e := range l.entries {
		if e.ClaimID == claimID && e.Phase == model.PhaseCompleted {
			return e
		}
	}
	return nil
}

// Reset drops every entry
func (l *Log) Reset() {
	l.entries = nil
}
