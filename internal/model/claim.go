package model

// Claim represents one verifiable factual statement extracted from a document
type Claim struct {
	ID         string    `json:"id"`                   // Stable within a session (e.g. "claim_3")
	Claim      string    `json:"claim"`                // The factual statement itself
	Verbatim   string    `json:"verbatim,omitempty"`   // Exact substring from the source text
	Context    string    `json:"context,omitempty"`    // Surrounding context from the original
	Type       ClaimType `json:"type,omitempty"`       // Nature of the claim
	IsQuote    bool      `json:"is_quote"`             // Whether the claim is a direct quotation
	Confidence float64   `json:"confidence,omitempty"` // Extractor confidence (0.0-1.0)
}

// ClaimType categorizes the nature of the claim
type ClaimType string

const (
	ClaimTypeStatistical ClaimType = "statistical" // Numbers, rates, measurements
	ClaimTypeHistorical  ClaimType = "historical"  // Dates, events, chronology
	ClaimTypeScientific  ClaimType = "scientific"  // Research findings, natural facts
	ClaimTypeAttribution ClaimType = "attribution" // Who said or did something
	ClaimTypeGeneral     ClaimType = "general"     // Everything else
)
