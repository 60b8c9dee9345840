package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veristream/internal/agent"
	"github.com/ppiankov/veristream/internal/evidence"
	"github.com/ppiankov/veristream/internal/llm"
	"github.com/ppiankov/veristream/internal/model"
)

var (
	checkTimeout  time.Duration
	checkProvider string
	checkModel    string
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <claim>",
	Short: "Verify a single claim without a server",
	Long: `Check runs one verification directly against the configured LLM
provider and prints the verdict, confidence, evidence and sources.

Example:
  veristream check "The Eiffel Tower is 330 meters tall"
  veristream check --provider ollama --model llama3.2 "Water boils at 90C"`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 3*time.Minute, "overall verification timeout")
	checkCmd.Flags().StringVar(&checkProvider, "provider", "", "LLM provider (openai, anthropic, ollama)")
	checkCmd.Flags().StringVar(&checkModel, "model", "", "LLM model name")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("provider") {
		cfg.LLM.Provider = checkProvider
	}
	if cmd.Flags().Changed("model") {
		cfg.LLM.Model = checkModel
	}

	logger := newLogger()

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return fmt.Errorf("configure LLM provider: %w", err)
	}

	classifier := evidence.NewClassifier(&cfg.Authority)
	verifier := agent.NewVerifier(provider, nil, cfg.Refiner.BufferLimit, classifier, logger)

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	var emit agent.EmitFunc
	if verbose {
		emit = func(ev model.UpdateEvent) {
			if ev.Message != "" {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Phase, ev.Message)
			}
		}
	}

	claim := model.Claim{ID: "single_claim", Claim: args[0], Type: model.ClaimTypeGeneral}
	result, err := verifier.VerifyClaim(ctx, claim, 0, emit)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func printResult(r model.VerificationResult) {
	fmt.Printf("Claim:      %s\n", r.ClaimText)
	fmt.Printf("Verdict:    %s\n", r.Status)
	fmt.Printf("Confidence: %.0f%%\n", r.Confidence*100)
	if r.EvidenceSummary != "" {
		fmt.Printf("\nEvidence:\n  %s\n", r.EvidenceSummary)
	}
	if len(r.KeyFindings) > 0 {
		fmt.Println("\nKey findings:")
		for _, f := range r.KeyFindings {
			fmt.Printf("  - %s\n", f)
		}
	}
	if len(r.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range r.Sources {
			fmt.Printf("  - %s [%s]\n", s.URL, s.Authority)
		}
	}
}
