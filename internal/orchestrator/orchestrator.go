// Package orchestrator drives the fact-checking workflow: claim extraction,
// user confirmation and bounded-concurrency verification.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/veristream/internal/agent"
	"github.com/ppiankov/veristream/internal/model"
	"github.com/ppiankov/veristream/internal/store"
	"github.com/ppiankov/veristream/internal/worker"
)

// llmRateKey buckets all verification model calls under one limiter key
const llmRateKey = "llm"

// Broadcaster pushes events to every client attached to a session
type Broadcaster interface {
	BroadcastUpdate(sessionID string, ev model.UpdateEvent)
	BroadcastClaims(sessionID string, claims []model.Claim)
	BroadcastResult(sessionID string, r model.VerificationResult)
	BroadcastStatus(sessionID string, status model.SessionStatus, message string, details map[string]any)
	BroadcastError(sessionID string, message string)
}

// Options bounds the verification fan-out
type Options struct {
	MaxChunkWords int     // words per extraction sprint
	Workers       int     // parallel verifications
	LLMPerSecond  float64 // model request pacing
}

// Service coordinates the agents, the session store and the event bus
type Service struct {
	extractor *agent.Extractor
	verifier  *agent.Verifier
	sessions  *store.Manager
	bus       Broadcaster
	limiter   *worker.Limiter
	opts      Options
	logger    *slog.Logger
}

// NewService wires the workflow coordinator
func NewService(extractor *agent.Extractor, verifier *agent.Verifier, sessions *store.Manager, bus Broadcaster, opts Options, logger *slog.Logger) *Service {
	if opts.MaxChunkWords <= 0 {
		opts.MaxChunkWords = 750
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.LLMPerSecond <= 0 {
		opts.LLMPerSecond = 0.5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor: extractor,
		verifier:  verifier,
		sessions:  sessions,
		bus:       bus,
		limiter:   worker.NewLimiter(opts.LLMPerSecond, opts.Workers),
		opts:      opts,
		logger:    logger,
	}
}

// ExtractText runs the extraction phase over the next sprint of text and
// leaves the session awaiting confirmation. Large documents are sliced to
// MaxChunkWords; the tail is stored on the session for the next sprint.
func (s *Service) ExtractText(ctx context.Context, sessionID, text string) ([]model.Claim, error) {
	session, err := s.sessions.MustGet(sessionID)
	if err != nil {
		return nil, err
	}

	chunk, remaining := splitSprint(text, s.opts.MaxChunkWords)
	if remaining != "" {
		s.logger.Info("large text sliced for sprint",
			"session_id", sessionID,
			"chunk_words", s.opts.MaxChunkWords,
			"remaining_words", len(strings.Fields(remaining)))
		s.bus.BroadcastStatus(sessionID, model.SessionExtracting,
			fmt.Sprintf("Processing first %d words. Remaining %d words will follow in the next sprint.",
				s.opts.MaxChunkWords, len(strings.Fields(remaining))), nil)
	}

	session.Update(func(sess *store.Session) {
		sess.Text = text
		sess.RemainingText = remaining
		sess.Status = model.SessionExtracting
	})
	s.bus.BroadcastStatus(sessionID, model.SessionExtracting, "Extracting claims from text...", nil)

	claims := s.extractor.ExtractClaims(ctx, chunk, func(ev model.UpdateEvent) {
		s.bus.BroadcastUpdate(sessionID, ev)
	})

	session.Update(func(sess *store.Session) {
		sess.ExtractedClaims = claims
		sess.Status = model.SessionAwaitingConfirmation
	})
	s.bus.BroadcastClaims(sessionID, claims)

	s.logger.Info("extraction finished", "session_id", sessionID, "claims", len(claims))
	return claims, nil
}

// Verify starts background verification of the confirmed claims and returns
// immediately. Claims run on a worker pool paced by the shared model rate
// limit; each finished claim streams out as its own result event.
func (s *Service) Verify(ctx context.Context, sessionID string, confirmed []model.Claim) error {
	session, err := s.sessions.MustGet(sessionID)
	if err != nil {
		return err
	}

	session.Update(func(sess *store.Session) {
		sess.ConfirmedClaims = confirmed
		sess.Results = nil
		sess.Status = model.SessionVerifying
	})
	s.bus.BroadcastStatus(sessionID, model.SessionVerifying,
		fmt.Sprintf("Verifying %d claims...", len(confirmed)),
		map[string]any{"total_claims": len(confirmed)})

	go s.runVerification(ctx, sessionID, confirmed)
	return nil
}

func (s *Service) runVerification(ctx context.Context, sessionID string, confirmed []model.Claim) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		s.logger.Error("session lost during background verification", "session_id", sessionID)
		return
	}

	emit := func(ev model.UpdateEvent) { s.bus.BroadcastUpdate(sessionID, ev) }

	verify := func(ctx context.Context, claim model.Claim, index int) (model.VerificationResult, error) {
		if err := s.limiter.Wait(ctx, llmRateKey); err != nil {
			return model.VerificationResult{}, err
		}
		result, err := s.verifier.VerifyClaim(ctx, claim, index, emit)
		if err != nil {
			return model.VerificationResult{}, err
		}
		session.AppendResult(result)
		s.bus.BroadcastResult(sessionID, result)
		return result, nil
	}

	outcomes := worker.NewBatchVerifier(verify, s.opts.Workers).Verify(ctx, confirmed)

	var results []model.VerificationResult
	for _, o := range outcomes {
		if o.Err != nil {
			s.logger.Error("claim verification failed",
				"session_id", sessionID, "claim_id", o.Claim.ID, "error", o.Err)
			continue
		}
		results = append(results, o.Result)
	}

	session.SetStatus(model.SessionCompleted)
	s.bus.BroadcastStatus(sessionID, model.SessionCompleted, "All verifications completed",
		map[string]any{
			"total_verified":  len(results),
			"results_summary": model.Summarize(results),
		})
	s.logger.Info("verification run finished", "session_id", sessionID, "verified", len(results))
}

// VerifySingle verifies one free-standing claim without an extraction phase
func (s *Service) VerifySingle(ctx context.Context, sessionID, claimText string) (model.VerificationResult, error) {
	session, err := s.sessions.MustGet(sessionID)
	if err != nil {
		return model.VerificationResult{}, err
	}

	session.SetStatus(model.SessionVerifying)
	s.bus.BroadcastStatus(sessionID, model.SessionVerifying, "Verifying claim...", nil)

	claim := model.Claim{
		ID:         "single_claim",
		Claim:      claimText,
		Type:       model.ClaimTypeGeneral,
		Confidence: 1.0,
	}

	if err := s.limiter.Wait(ctx, llmRateKey); err != nil {
		return model.VerificationResult{}, err
	}
	result, err := s.verifier.VerifyClaim(ctx, claim, 0, func(ev model.UpdateEvent) {
		s.bus.BroadcastUpdate(sessionID, ev)
	})
	if err != nil {
		session.SetStatus(model.SessionError)
		s.bus.BroadcastError(sessionID, fmt.Sprintf("Verification failed: %v", err))
		return model.VerificationResult{}, err
	}

	s.bus.BroadcastResult(sessionID, result)
	session.Update(func(sess *store.Session) {
		sess.Results = []model.VerificationResult{result}
		sess.Status = model.SessionCompleted
	})
	s.bus.BroadcastStatus(sessionID, model.SessionCompleted, "Verification completed", nil)
	return result, nil
}

// splitSprint slices text to the first maxWords words, returning the chunk
// and the remaining tail
func splitSprint(text string, maxWords int) (chunk, remaining string) {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text, ""
	}
	return strings.Join(words[:maxWords], " "), strings.Join(words[maxWords:], " ")
}
