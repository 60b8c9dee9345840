package model

// SessionStatus is the coarse-grained lifecycle state of one session
type SessionStatus string

const (
	SessionIdle                 SessionStatus = "idle"
	SessionExtracting           SessionStatus = "extracting"
	SessionAwaitingConfirmation SessionStatus = "awaiting_confirmation"
	SessionVerifying            SessionStatus = "verifying"
	SessionCompleted            SessionStatus = "completed"
	SessionError                SessionStatus = "error"
)

// rank orders the forward-only states. Error sits above everything: it is
// reachable from any state and terminal until reset.
func (s SessionStatus) rank() int {
	switch s {
	case SessionIdle:
		return 0
	case SessionExtracting:
		return 1
	case SessionAwaitingConfirmation:
		return 2
	case SessionVerifying:
		return 3
	case SessionCompleted:
		return 4
	case SessionError:
		return 5
	default:
		return -1
	}
}

// CanAdvance reports whether a transition from s to next respects the
// monotonic lifecycle. Unknown statuses never advance.
func (s SessionStatus) CanAdvance(next SessionStatus) bool {
	if next == SessionError {
		return s != SessionError
	}
	if s == SessionError {
		return false
	}
	r, nr := s.rank(), next.rank()
	return r >= 0 && nr > r
}

// Terminal reports whether the session reached a final state
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionError
}
