package model

// VerificationStatus is the verdict assigned to a claim
type VerificationStatus string

const (
	StatusVerified          VerificationStatus = "VERIFIED"
	StatusPartiallyVerified VerificationStatus = "PARTIALLY_VERIFIED"
	StatusUnverified        VerificationStatus = "UNVERIFIED"
	StatusDisputed          VerificationStatus = "DISPUTED"
	StatusFalse             VerificationStatus = "FALSE"
)

// Source is a reference cited by the verification agent
type Source struct {
	URL       string        `json:"url"`
	Title     string        `json:"title,omitempty"`
	Authority AuthorityTier `json:"authority,omitempty"` // Classified after verification
}

// AuthorityTier classifies how authoritative a cited source is
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Laws, statutes, academic papers, official documents
	TierSecondary AuthorityTier = 2 // Encyclopedias, major publishers, reputable media
	TierTertiary  AuthorityTier = 3 // Blogs, personal websites, tourism sites
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// VerificationResult is the structured outcome of verifying one claim
type VerificationResult struct {
	ClaimID         string             `json:"claim_id"`
	ClaimText       string             `json:"claim_text,omitempty"`
	ClaimType       ClaimType          `json:"claim_type,omitempty"`
	Status          VerificationStatus `json:"status"`
	Confidence      float64            `json:"confidence"`
	EvidenceSummary string             `json:"evidence_summary,omitempty"`
	KeyFindings     []string           `json:"key_findings,omitempty"`
	Sources         []Source           `json:"sources,omitempty"`
	ThinkingProcess string             `json:"thinking_process,omitempty"`
}

// VerificationSummary aggregates a finished verification run
type VerificationSummary struct {
	TotalClaims       int                        `json:"total_claims"`
	StatusBreakdown   map[VerificationStatus]int `json:"status_breakdown"`
	AverageConfidence float64                    `json:"average_confidence"`
}

// Summarize computes summary statistics from a set of results
func Summarize(results []VerificationResult) VerificationSummary {
	summary := VerificationSummary{
		TotalClaims:     len(results),
		StatusBreakdown: make(map[VerificationStatus]int),
	}
	if len(results) == 0 {
		return summary
	}

	total := 0.0
	for _, r := range results {
		status := r.Status
		if status == "" {
			status = StatusUnverified
		}
		summary.StatusBreakdown[status]++
		total += r.Confidence
	}
	summary.AverageConfidence = total / float64(len(results))
	return summary
}
