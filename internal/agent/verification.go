package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/veristream/internal/evidence"
	"github.com/ppiankov/veristream/internal/llm"
	"github.com/ppiankov/veristream/internal/model"
)

const verificationPrompt = `You are a professional fact-checker. Verify the following claim using your knowledge and cite the sources you rely on.

Claim to verify:
"""%s"""

Context: %s

Please provide:

1. **Thinking Process**: Explain your reasoning step-by-step
   - What sources are you looking for?
   - What evidence supports or contradicts the claim?
   - How reliable are the sources?

2. **Verification Status**: Choose ONE of:
   - VERIFIED: The claim is factually accurate based on reliable sources
   - PARTIALLY_VERIFIED: Parts of the claim are accurate, but some details are incorrect or unverified
   - UNVERIFIED: Cannot find sufficient evidence to verify the claim
   - DISPUTED: The claim is contradicted by reliable sources
   - FALSE: The claim is demonstrably false

3. **Confidence Score**: Rate your confidence (0.0 to 1.0)

4. **Evidence Summary**: Summarize the key evidence found

5. **Sources**: List the most relevant sources as URLs, one per bullet

Format your response as follows:

## Thinking Process
[Your step-by-step reasoning]

## Verification Status
[VERIFIED|PARTIALLY_VERIFIED|UNVERIFIED|DISPUTED|FALSE]

## Confidence Score
[0.0-1.0]

## Evidence Summary
[Summary of evidence]

## Key Findings
- [Finding 1]
- [Finding 2]

## Sources
- [https://example.org/...]`

var (
	firstNumber = regexp.MustCompile(`(\d+\.?\d*)`)
	urlPattern  = regexp.MustCompile(`https?://[^\s\)\]>"']+`)
)

// Verifier checks one claim at a time against the verification model
type Verifier struct {
	provider  llm.Provider
	refiner   llm.Provider // may be nil
	authority *evidence.Classifier
	logger    *slog.Logger
	limit     int
}

// NewVerifier creates a verification agent. authority may be nil to skip
// source classification.
func NewVerifier(provider, refiner llm.Provider, bufferLimit int, authority *evidence.Classifier, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{provider: provider, refiner: refiner, authority: authority, logger: logger, limit: bufferLimit}
}

// VerifyClaim verifies one claim, streaming progress through emit. A
// positive taskIndex (1-based) shapes the opening status line.
func (v *Verifier) VerifyClaim(ctx context.Context, claim model.Claim, taskIndex int, emit EmitFunc) (model.VerificationResult, error) {
	v.logger.Info("verifying claim", "claim_id", claim.ID, "text", head(claim.Claim, 100))

	var ref *Refiner
	if v.refiner != nil && emit != nil {
		ref = NewRefiner(v.refiner, claim.ID, v.limit, v.logger, emit)
	}

	if emit != nil {
		message := "Initializing verification parameters..."
		if taskIndex > 0 {
			message = fmt.Sprintf("Starting up with the %s verification task.", ordinal(taskIndex))
		}
		emit(model.UpdateEvent{ClaimID: claim.ID, Phase: model.PhaseAnalyzing, Message: message})
	}

	contextText := claim.Context
	if contextText == "" {
		contextText = "No additional context provided"
	}

	var fullText, fullThought strings.Builder
	err := v.provider.Stream(ctx, llm.ChatRequest{
		Prompt:    fmt.Sprintf(verificationPrompt, claim.Claim, contextText),
		MaxTokens: 2048,
	}, func(c llm.Chunk) error {
		switch c.Type {
		case llm.ChunkThought:
			fullThought.WriteString(c.Text)
			if ref != nil {
				ref.AddRawThought(ctx, c.Text)
			} else if emit != nil {
				emit(model.UpdateEvent{
					ClaimID:         claim.ID,
					Phase:           model.PhaseAnalyzing,
					Message:         c.Text,
					IsNativeThought: true,
				})
			}
		case llm.ChunkText:
			fullText.WriteString(c.Text)
		}
		return nil
	})
	if ref != nil {
		ref.Flush(ctx)
	}
	if err != nil {
		if emit != nil {
			emit(model.UpdateEvent{
				ClaimID: claim.ID,
				Phase:   model.PhaseError,
				Message: fmt.Sprintf("Verification failed: %v", err),
			})
		}
		return model.VerificationResult{}, fmt.Errorf("verify claim %s: %w", claim.ID, err)
	}

	if emit != nil {
		emit(model.UpdateEvent{
			ClaimID: claim.ID,
			Phase:   model.PhaseValidating,
			Message: "Synthesizing final verdict and confidence score...",
		})
	}

	result := ParseVerification(fullText.String())
	if fullThought.Len() > 0 {
		result.ThinkingProcess = fullThought.String()
	}
	if v.authority != nil {
		v.authority.AnnotateResult(&result)
	}
	result.ClaimID = claim.ID
	result.ClaimText = claim.Claim
	result.ClaimType = claim.Type
	if result.ClaimType == "" {
		result.ClaimType = model.ClaimTypeGeneral
	}

	if emit != nil {
		emit(model.UpdateEvent{
			ClaimID:         claim.ID,
			Phase:           model.PhaseCompleted,
			Message:         fmt.Sprintf("Verification complete: %s", result.Status),
			IsFinalThinking: true,
			Result:          &result,
		})
	}

	v.logger.Info("claim verified", "claim_id", claim.ID, "status", result.Status)
	return result, nil
}

// ParseVerification parses the model's sectioned markdown response into a
// structured result. Missing or unparseable sections keep conservative
// defaults.
func ParseVerification(response string) model.VerificationResult {
	result := model.VerificationResult{
		Status:     model.StatusUnverified,
		Confidence: 0.5,
	}

	for _, section := range strings.Split(response, "##") {
		section = strings.TrimSpace(section)

		switch {
		case strings.HasPrefix(section, "Thinking Process"):
			result.ThinkingProcess = strings.TrimSpace(strings.TrimPrefix(section, "Thinking Process"))

		case strings.HasPrefix(section, "Verification Status"):
			result.Status = parseStatus(strings.TrimPrefix(section, "Verification Status"))

		case strings.HasPrefix(section, "Confidence Score"):
			if m := firstNumber.FindString(section); m != "" {
				if f, err := strconv.ParseFloat(m, 64); err == nil {
					if f > 1 {
						f /= 100
					}
					result.Confidence = f
				}
			}

		case strings.HasPrefix(section, "Evidence Summary"):
			result.EvidenceSummary = strings.TrimSpace(strings.TrimPrefix(section, "Evidence Summary"))

		case strings.HasPrefix(section, "Key Findings"):
			result.KeyFindings = parseBullets(strings.TrimPrefix(section, "Key Findings"))

		case strings.HasPrefix(section, "Sources"):
			for _, url := range urlPattern.FindAllString(section, -1) {
				result.Sources = append(result.Sources, model.Source{URL: strings.TrimRight(url, ".,;")})
			}
		}
	}
	return result
}

// parseStatus extracts the verdict keyword. Longer statuses are checked
// first since VERIFIED is a substring of both PARTIALLY_VERIFIED and
// UNVERIFIED.
func parseStatus(text string) model.VerificationStatus {
	upper := strings.ToUpper(text)
	for _, s := range []model.VerificationStatus{
		model.StatusPartiallyVerified,
		model.StatusUnverified,
		model.StatusVerified,
		model.StatusDisputed,
		model.StatusFalse,
	} {
		if strings.Contains(upper, string(s)) {
			return s
		}
	}
	return model.StatusUnverified
}

func parseBullets(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "•") {
			item := strings.TrimSpace(strings.TrimLeft(line, "-*•"))
			if item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// ordinal renders 1 as "1st", 2 as "2nd", 11 as "11th" and so on
func ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
