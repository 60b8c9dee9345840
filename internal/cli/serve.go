package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/veristream/internal/agent"
	"github.com/ppiankov/veristream/internal/cache"
	"github.com/ppiankov/veristream/internal/evidence"
	"github.com/ppiankov/veristream/internal/llm"
	"github.com/ppiankov/veristream/internal/model"
	"github.com/ppiankov/veristream/internal/orchestrator"
	"github.com/ppiankov/veristream/internal/server"
	"github.com/ppiankov/veristream/internal/source"
	"github.com/ppiankov/veristream/internal/store"
)

var (
	serveHost      string
	servePort      int
	serveProvider  string
	serveModel     string
	serveNoRefiner bool
	serveNoCache   bool
	serveWorkers   int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fact-checking API server",
	Long: `Serve hosts the REST and WebSocket API:
- POST /api/analyze-text and /api/analyze-url extract claims
- POST /api/confirm-claims verifies them in the background
- GET /ws/{session} streams the agents' live reasoning
- GET /metrics exposes Prometheus metrics

Example:
  veristream serve
  veristream serve --port 9000 --provider ollama --model llama3.2
  veristream serve --provider anthropic --model claude-3-5-haiku-20241022`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen address (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "LLM provider (openai, anthropic, ollama)")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "LLM model name")
	serveCmd.Flags().BoolVar(&serveNoRefiner, "no-refiner", false, "disable the thinking refiner (stream raw model thoughts)")
	serveCmd.Flags().BoolVar(&serveNoCache, "no-cache", false, "disable the article fetch cache")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0, "parallel verification workers (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)

	// The server logs structured JSON; interactive commands use text.
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return fmt.Errorf("configure LLM provider: %w", err)
	}

	var refiner llm.Provider
	if !serveNoRefiner && cfg.Refiner.Provider != "" {
		refiner, err = llm.NewProvider(llm.ConfigFromRefiner(cfg.Refiner))
		if err != nil {
			logger.Warn("refiner disabled", "error", err)
			refiner = nil
		}
	}

	classifier := evidence.NewClassifier(&cfg.Authority)
	extractor := agent.NewExtractor(provider, refiner, cfg.Refiner.BufferLimit, logger)
	verifier := agent.NewVerifier(provider, refiner, cfg.Refiner.BufferLimit, classifier, logger)
	sessions := store.NewManager(cfg.Session.Timeout, logger)

	registry := prometheus.NewRegistry()
	metrics := server.NewMetrics(registry)
	hub := server.NewHub(logger, metrics)

	svc := orchestrator.NewService(extractor, verifier, sessions, hub, orchestrator.Options{
		MaxChunkWords: cfg.Session.MaxChunkWords,
		Workers:       cfg.Concurrency.VerificationWorkers,
		LLMPerSecond:  cfg.Concurrency.LLMRequestsPerSecond,
	}, logger)

	fetcher := source.NewFetcher(cfg.HTTP, buildCache(cfg.Cache), logger)
	srv := server.New(cfg.Server, sessions, svc, hub, metrics, registry, fetcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting veristream server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"provider", cfg.LLM.Provider,
		"workers", cfg.Concurrency.VerificationWorkers,
	)
	return srv.ListenAndServe(ctx)
}

// applyServeFlags overlays explicitly set flags onto the loaded config
func applyServeFlags(cmd *cobra.Command, cfg *model.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("provider") {
		cfg.LLM.Provider = serveProvider
	}
	if cmd.Flags().Changed("model") {
		cfg.LLM.Model = serveModel
	}
	if cmd.Flags().Changed("workers") {
		cfg.Concurrency.VerificationWorkers = serveWorkers
	}
	if serveNoCache {
		cfg.Cache.Enabled = false
	}
}

func buildCache(cfg model.CacheConfig) cache.Store {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir != "" {
		return cache.NewTiered(cfg.MemoryTTL, cfg.Dir, cfg.DiskTTL)
	}
	return cache.NewMemory(cfg.MemoryTTL)
}
