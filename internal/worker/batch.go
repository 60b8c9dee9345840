package worker

import (
	"context"
	"sort"

	"github.com/ppiankov/veristream/internal/model"
)

// VerifyFunc verifies one claim. index is 1-based across the batch.
type VerifyFunc func(ctx context.Context, claim model.Claim, index int) (model.VerificationResult, error)

// VerifyOutcome is the result of verifying one claim in a batch
type VerifyOutcome struct {
	Index  int
	Claim  model.Claim
	Result model.VerificationResult
	Err    error
}

// GetError returns the verification error, if any
func (o *VerifyOutcome) GetError() error {
	return o.Err
}

// verifyJob adapts one claim to the pool's Job interface
type verifyJob struct {
	index int
	claim model.Claim
	fn    VerifyFunc
}

func (j *verifyJob) Execute(ctx context.Context) Result {
	result, err := j.fn(ctx, j.claim, j.index)
	return &VerifyOutcome{
		Index:  j.index,
		Claim:  j.claim,
		Result: result,
		Err:    err,
	}
}

// BatchVerifier verifies a set of claims concurrently
type BatchVerifier struct {
	fn          VerifyFunc
	concurrency int
}

// NewBatchVerifier creates a batch verifier with bounded concurrency
func NewBatchVerifier(fn VerifyFunc, concurrency int) *BatchVerifier {
	return &BatchVerifier{
		fn:          fn,
		concurrency: concurrency,
	}
}

// Verify runs all claims through the pool and returns outcomes in claim
// order. Individual failures are carried per-outcome, never aborting the
// batch.
func (b *BatchVerifier) Verify(ctx context.Context, claims []model.Claim) []*VerifyOutcome {
	if len(claims) == 0 {
		return []*VerifyOutcome{}
	}

	pool := NewPool(ctx, b.concurrency, len(claims))
	pool.Start()

	for i, claim := range claims {
		pool.Submit(&verifyJob{index: i + 1, claim: claim, fn: b.fn})
	}

	results := pool.Wait()

	outcomes := make([]*VerifyOutcome, 0, len(results))
	for _, result := range results {
		outcomes = append(outcomes, result.(*VerifyOutcome))
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Index < outcomes[j].Index })

	return outcomes
}
