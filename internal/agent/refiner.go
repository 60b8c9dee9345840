// Package agent implements the claim extraction, verification and narrative
// refinement agents on top of the llm provider abstraction.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ppiankov/veristream/internal/llm"
	"github.com/ppiankov/veristream/internal/model"
)

// EmitFunc receives progress updates as the agents work through a task
type EmitFunc func(model.UpdateEvent)

const refinerPrompt = `You are a senior editor and fact-checker analyzing a document.
Synthesize the following raw thought process into a single, cohesive, professional narrative paragraph.

Guidelines:
- Output ONLY one logical paragraph.
- FOCUS STRICTLY on the intellectual analysis of the content:
  * Which specific statements are being isolated for verification?
  * Why are these claims worth checking?
  * How verifiable does the evidence seem so far?
- DO NOT mention technical details like JSON, schemas, data fields, or parsing logic.
- DO NOT mention "formatting" or "structuring the output".
- Maintain a professional, active voice.

Raw Thinking to Synthesize:
"""%s"""`

var sentenceEnd = regexp.MustCompile(`[.!?]\s`)

// Refiner turns raw model thinking into a polished running narrative. Raw
// fragments accumulate in a buffer; once the buffer passes its limit the text
// up to the last sentence boundary is rewritten by a fast model and streamed
// out as cumulative snapshots, one numbered phase per pass.
type Refiner struct {
	provider llm.Provider
	claimID  string
	limit    int
	logger   *slog.Logger
	emit     EmitFunc

	buffer strings.Builder
	phase  int
}

// NewRefiner creates a refiner for one claim's thinking stream. A nil
// provider disables refinement; callers should stream raw thoughts instead.
func NewRefiner(provider llm.Provider, claimID string, limit int, logger *slog.Logger, emit EmitFunc) *Refiner {
	if limit <= 0 {
		limit = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refiner{
		provider: provider,
		claimID:  claimID,
		limit:    limit,
		logger:   logger,
		emit:     emit,
		phase:    1,
	}
}

// AddRawThought appends one raw fragment and runs a refinement pass when the
// buffer has grown past its limit
func (r *Refiner) AddRawThought(ctx context.Context, text string) {
	r.buffer.WriteString(text)
	if r.buffer.Len() >= r.limit {
		r.refine(ctx, false)
	}
}

// Flush refines whatever remains in the buffer, marking the final snapshot
// as the end of thinking
func (r *Refiner) Flush(ctx context.Context) {
	if r.buffer.Len() > 0 {
		r.refine(ctx, true)
	}
}

// refine cuts the buffer and rewrites the cut text. Without force the cut
// lands on the last sentence boundary so the model always sees whole
// sentences; an unbroken buffer is left to grow up to twice the limit.
func (r *Refiner) refine(ctx context.Context, force bool) {
	var toRefine string
	buf := r.buffer.String()

	if force {
		toRefine = buf
		r.buffer.Reset()
	} else {
		matches := sentenceEnd.FindAllStringIndex(buf, -1)
		if len(matches) > 0 {
			cut := matches[len(matches)-1][1]
			toRefine = buf[:cut]
			r.buffer.Reset()
			r.buffer.WriteString(buf[cut:])
		} else if len(buf) > 2*r.limit {
			toRefine = buf
			r.buffer.Reset()
		} else {
			return
		}
	}

	if strings.TrimSpace(toRefine) == "" {
		return
	}

	phase := fmt.Sprintf("PHASE %d", r.phase)
	r.phase++

	var narrative strings.Builder
	err := r.provider.Stream(ctx, llm.ChatRequest{
		Prompt: fmt.Sprintf(refinerPrompt, toRefine),
	}, func(c llm.Chunk) error {
		if c.Type != llm.ChunkText || c.Text == "" {
			return nil
		}
		narrative.WriteString(c.Text)
		r.emit(model.UpdateEvent{
			ClaimID:   r.claimID,
			Phase:     phase,
			Message:   narrative.String(),
			IsRefined: true,
			IsDelta:   true,
		})
		return nil
	})
	if err != nil {
		r.logger.Error("thinking refinement failed", "claim_id", r.claimID, "phase", phase, "error", err)
		// Fallback: surface a truncated slice of the raw thinking
		raw := toRefine
		if len(raw) > 200 {
			raw = raw[:200] + "..."
		}
		r.emit(model.UpdateEvent{ClaimID: r.claimID, Phase: phase, Message: raw})
		return
	}

	r.emit(model.UpdateEvent{
		ClaimID:             r.claimID,
		Phase:               phase,
		Message:             narrative.String(),
		IsRefined:           true,
		IsStreamingComplete: true,
		IsFinalThinking:     force,
	})
}
