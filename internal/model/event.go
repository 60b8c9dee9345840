package model

import (
	"encoding/json"
	"time"
)

// Event types carried in the envelope's "type" field
const (
	EventThinkingUpdate     = "thinking_update"
	EventVerificationResult = "verification_result"
	EventClaimsExtracted    = "claims_extracted"
	EventStatus             = "status"
	EventError              = "error"
)

// ExtractionClaimID is the sentinel claim id scoping progress events to the
// extraction phase, distinct from per-claim verification ids.
const ExtractionClaimID = "extraction_thinking"

// Well-known phase labels. Phases are opaque strings on the wire; these are
// only the labels the built-in agents emit.
const (
	PhaseAnalyzing  = "ANALYZING"
	PhaseValidating = "VALIDATING"
	PhaseCompleted  = "completed"
	PhaseError      = "error"
)

// Envelope is the outer wire shape for every pushed message
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// UpdateEvent is one progress update for a (claim_id, phase) pair.
// Exactly one of the flag combinations below is meaningful per event:
// native thoughts arrive as concatenable fragments, refined narrative as
// cumulative is_delta snapshots ending in one is_streaming_complete snapshot.
type UpdateEvent struct {
	ClaimID             string              `json:"claim_id"`
	Phase               string              `json:"phase"`
	Message             string              `json:"message"`
	IsNativeThought     bool                `json:"is_native_thought,omitempty"`
	IsRefined           bool                `json:"is_refined,omitempty"`
	IsDelta             bool                `json:"is_delta,omitempty"`
	IsStreamingComplete bool                `json:"is_streaming_complete,omitempty"`
	IsFinalThinking     bool                `json:"is_final_thinking,omitempty"`
	Result              *VerificationResult `json:"result,omitempty"` // Set on terminal completed-phase updates
}

// ClaimsData is the payload of a claims_extracted event
type ClaimsData struct {
	Claims []Claim `json:"claims"`
}

// StatusData is the payload of a status event
type StatusData struct {
	Status  SessionStatus  `json:"status,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorData is the payload of an error event
type ErrorData struct {
	Error string `json:"error"`
}

// NewEnvelope wraps a payload into a typed envelope
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}
