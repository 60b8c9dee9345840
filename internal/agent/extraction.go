package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ppiankov/veristream/internal/llm"
	"github.com/ppiankov/veristream/internal/model"
)

const extractionPrompt = `You are a professional fact-checker. Analyze the following article and extract EVERY individual verifiable factual claim.

Typical articles contain 5-15 distinct claims. Extract each one separately.

Article text:
"""
%s
"""

Return your response AS ONLY A VALID JSON ARRAY.
Each object in the array MUST have this structure:
{
    "claim": "The specific factual statement",
    "verbatim": "The EXACT line or sentence from the article (must be verbatim)",
    "context": "Surrounding context from the original text",
    "type": "statistical|historical|scientific|attribution|general",
    "is_quote": true|false,
    "confidence": 0.0-1.0
}

IMPORTANT:
- The "verbatim" field MUST BE AN EXACT SUBSTRING from the article.
- Return ONLY the JSON array. Don't add text before or after.`

var (
	trailingComma = regexp.MustCompile(`,\s*([\]}])`)
	lineComment   = regexp.MustCompile(`//[^\n]*`)
)

// Extractor identifies verifiable factual claims in a piece of text
type Extractor struct {
	provider llm.Provider
	refiner  llm.Provider // fast model for narrative refinement, may be nil
	logger   *slog.Logger
	limit    int // refiner buffer limit, chars
}

// NewExtractor creates an extraction agent. refiner may be nil, in which
// case raw model thoughts stream out unpolished.
func NewExtractor(provider, refiner llm.Provider, bufferLimit int, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{provider: provider, refiner: refiner, logger: logger, limit: bufferLimit}
}

// ExtractClaims runs the extraction model over text, streaming thinking
// progress through emit. Parse failures fall back to naive sentence claims
// rather than failing the session.
func (e *Extractor) ExtractClaims(ctx context.Context, text string, emit EmitFunc) []model.Claim {
	e.logger.Info("extracting claims", "chars", len(text))

	var ref *Refiner
	if e.refiner != nil && emit != nil {
		ref = NewRefiner(e.refiner, model.ExtractionClaimID, e.limit, e.logger, emit)
	}

	var fullText, allThoughts strings.Builder
	err := e.provider.Stream(ctx, llm.ChatRequest{
		Prompt:       fmt.Sprintf(extractionPrompt, text),
		MaxTokens:    8192,
		JSONResponse: true,
	}, func(c llm.Chunk) error {
		switch c.Type {
		case llm.ChunkThought:
			allThoughts.WriteString(c.Text)
			if ref != nil {
				ref.AddRawThought(ctx, c.Text)
			} else if emit != nil {
				emit(model.UpdateEvent{
					ClaimID:         model.ExtractionClaimID,
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
		e.logger.Error("extraction stream failed", "error", err)
		return fallbackClaims(text)
	}

	// Some models put the array in the thinking stream instead of the
	// response body.
	searchArea := strings.TrimSpace(fullText.String())
	if searchArea == "" && allThoughts.Len() > 0 {
		e.logger.Warn("empty text response, searching thoughts for JSON")
		searchArea = strings.TrimSpace(allThoughts.String())
	}

	claims, err := ParseClaims(searchArea, text)
	if err != nil {
		e.logger.Error("extraction parse failed", "error", err, "head", head(searchArea, 200))
		return fallbackClaims(text)
	}

	e.logger.Info("extracted claims", "count", len(claims))
	return claims
}

// ParseClaims parses the model's JSON array response. article is the source
// text, used to repair verbatim fields that only differ by whitespace.
func ParseClaims(response, article string) ([]model.Claim, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	jsonText := response
	if start != -1 && end != -1 && end > start {
		jsonText = response[start : end+1]
	}

	var claims []model.Claim
	if err := json.Unmarshal([]byte(jsonText), &claims); err != nil {
		cleaned := trailingComma.ReplaceAllString(jsonText, "$1")
		cleaned = lineComment.ReplaceAllString(cleaned, "")
		if err2 := json.Unmarshal([]byte(cleaned), &claims); err2 != nil {
			return nil, fmt.Errorf("parse claim array: %w", err)
		}
	}

	for i := range claims {
		claims[i].ID = fmt.Sprintf("claim_%d", i+1)
		if claims[i].Verbatim == "" {
			claims[i].Verbatim = claims[i].Claim
		}
		if !strings.Contains(article, claims[i].Verbatim) {
			if trimmed := strings.TrimSpace(claims[i].Verbatim); strings.Contains(article, trimmed) {
				claims[i].Verbatim = trimmed
			}
		}
	}
	return claims, nil
}

// fallbackClaims splits the article into sentences and treats the first few
// as low-confidence candidate claims
func fallbackClaims(text string) []model.Claim {
	var claims []model.Claim
	for _, s := range strings.Split(text, ".") {
		s = strings.TrimSpace(s)
		if len(s) <= 20 {
			continue
		}
		claims = append(claims, model.Claim{
			ID:         fmt.Sprintf("claim_fb_%d", len(claims)+1),
			Claim:      s + ".",
			Verbatim:   s + ".",
			Context:    s,
			Type:       model.ClaimTypeGeneral,
			Confidence: 0.5,
		})
		if len(claims) == 3 {
			break
		}
	}
	if len(claims) == 0 {
		claims = []model.Claim{{
			ID:         "claim_fallback",
			Claim:      head(text, 200) + "...",
			Verbatim:   head(text, 100),
			Context:    head(text, 500),
			Type:       model.ClaimTypeGeneral,
			Confidence: 0.3,
		}}
	}
	return claims
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
