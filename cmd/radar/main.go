package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-radar/internal/core/domain"
	"github.com/lueurxax/signal-radar/internal/core/embeddings"
	"github.com/lueurxax/signal-radar/internal/core/llm"
	"github.com/lueurxax/signal-radar/internal/ingest"
	"github.com/lueurxax/signal-radar/internal/knowledge"
	"github.com/lueurxax/signal-radar/internal/pipeline"
	"github.com/lueurxax/signal-radar/internal/platform/config"
	"github.com/lueurxax/signal-radar/internal/report"
)

func main() {
	mode := flag.String("mode", "daily", "Cycle mode (daily, weekly, monthly)")
	signalsPath := flag.String("signals", "", "Path to a JSON file of raw signals to ingest (daily mode)")

	flag.Parse()

	runMode, err := parseMode(*mode)
	if err != nil {
		log.Fatalf("Usage: %s --mode=[daily|weekly|monthly]", os.Args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics server runs for the duration of the cycle.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	store, err := knowledge.NewPostgres(ctx, cfg, newEmbedder(cfg, &logger), &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to knowledge store")
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	collectors, err := buildCollectors(&logger, *signalsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load signals")
	}

	p := pipeline.New(pipeline.Deps{
		Collectors: collectors,
		Store:      store,
		Client:     llm.New(cfg, &logger),
		Reporter:   report.NewLogReporter(&logger),
		Config:     cfg,
		Logger:     &logger,
	})

	summary, err := p.Run(ctx, runMode)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("cycle interrupted")
			return
		}

		logger.Fatal().Err(err).Msg("cycle failed")
	}

	logger.Info().
		Str("run_id", summary.RunID).
		Str("outcome", summary.Outcome()).
		Str("period", summary.Synthesis.Period.Key).
		Msg("done")
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func parseMode(mode string) (domain.SynthesisMode, error) {
	switch mode {
	case "daily":
		return domain.ModeDaily, nil
	case "weekly":
		return domain.ModeWeekly, nil
	case "monthly":
		return domain.ModeMonthly, nil
	default:
		return "", fmt.Errorf("unknown mode %q", mode)
	}
}

// newEmbedder picks the embedding provider. Without an API key the
// deterministic mock keeps local runs working end to end.
func newEmbedder(cfg *config.Config, logger *zerolog.Logger) embeddings.Provider {
	if cfg.OpenAIAPIKey == "" {
		logger.Warn().Msg("no OpenAI API key set, using mock embeddings")

		return embeddings.NewMockProvider()
	}

	return embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
		APIKey:    cfg.OpenAIAPIKey,
		Model:     cfg.EmbeddingModel,
		RateLimit: cfg.RateLimitRPS,
	})
}

// buildCollectors wires the ingestion sources. A signals file becomes a
// one-shot collector; without one the daily cycle still runs (and weekly
// and monthly rollups need no sources at all).
func buildCollectors(logger *zerolog.Logger, signalsPath string) (*ingest.Set, error) {
	if signalsPath == "" {
		return ingest.NewSet(logger), nil
	}

	data, err := os.ReadFile(signalsPath)
	if err != nil {
		return nil, fmt.Errorf("reading signals file: %w", err)
	}

	var signals []domain.RawSignal
	if err := json.Unmarshal(data, &signals); err != nil {
		return nil, fmt.Errorf("parsing signals file: %w", err)
	}

	return ingest.NewSet(logger, ingest.NewStaticCollector("file", signals)), nil
}
