package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/lueurxax/signal-radar/internal/core/domain"
)

// Config is the single typed configuration surface for a pipeline run.
// Loaded once at startup and passed explicitly to each stage.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`

	// Reasoning providers. OpenAI is primary, Anthropic is the fallback;
	// with neither key set the mock provider is used.
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	RankModel       string `env:"RANK_MODEL"`
	AnalysisModel   string `env:"ANALYSIS_MODEL"`
	SynthesisModel  string `env:"SYNTHESIS_MODEL"`
	EmbeddingModel  string `env:"EMBEDDING_MODEL"`
	RateLimitRPS    int    `env:"RATE_LIMIT_RPS" envDefault:"1"`

	// Pipeline thresholds.
	SignalThreshold int     `env:"SIGNAL_THRESHOLD" envDefault:"4"`
	NoveltyFloor    float64 `env:"NOVELTY_FLOOR" envDefault:"0.3"`
	BatchSize       int     `env:"BATCH_SIZE" envDefault:"10"`

	// Novelty distance mapping (cosine distance, 0..2).
	NoveltyNearDistance float64 `env:"NOVELTY_NEAR_DISTANCE" envDefault:"0.2"`
	NoveltyFarDistance  float64 `env:"NOVELTY_FAR_DISTANCE" envDefault:"0.6"`
	NoveltyTopK         int     `env:"NOVELTY_TOP_K" envDefault:"5"`

	// Per-stage timeouts. Each bounds one unit of work (a batch or an
	// item), not the whole run.
	RankTimeout      time.Duration `env:"RANK_TIMEOUT" envDefault:"120s"`
	AnalyzeTimeout   time.Duration `env:"ANALYZE_TIMEOUT" envDefault:"300s"`
	SynthesisTimeout time.Duration `env:"SYNTHESIS_TIMEOUT" envDefault:"600s"`

	// Retry behaviour for reasoning-service calls.
	RankRetries     int             `env:"RANK_RETRIES" envDefault:"2"`
	RankBackoff     []time.Duration `env:"RANK_BACKOFF" envSeparator:"," envDefault:"5s,15s"`
	AnalyzerRetries int             `env:"ANALYZER_RETRIES" envDefault:"1"`
	AnalyzerBackoff []time.Duration `env:"ANALYZER_BACKOFF" envSeparator:"," envDefault:"5s,15s"`

	// Synthesis selection.
	WeeklyMinImpact  string `env:"WEEKLY_MIN_IMPACT" envDefault:"high"`
	MonthlyMinImpact string `env:"MONTHLY_MIN_IMPACT" envDefault:"critical"`

	// Database pool.
	DBMaxConnections int32         `env:"DB_MAX_CONNECTIONS" envDefault:"4"`
	DBMinConnections int32         `env:"DB_MIN_CONNECTIONS" envDefault:"1"`
	DBConnLifetime   time.Duration `env:"DB_CONN_LIFETIME" envDefault:"30m"`

	MetricsPort int `env:"METRICS_PORT" envDefault:"9090"`
}

const maxBatchSize = 10

// Load parses configuration from the environment, optionally seeded from a
// local .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values outside the ranges the pipeline depends on.
func (c *Config) Validate() error {
	if c.SignalThreshold < domain.MinScore || c.SignalThreshold > domain.MaxScore {
		return fmt.Errorf("signal threshold %d out of range [%d,%d]", c.SignalThreshold, domain.MinScore, domain.MaxScore)
	}

	if c.NoveltyFloor < 0 || c.NoveltyFloor > 1 {
		return fmt.Errorf("novelty floor %f out of range [0,1]", c.NoveltyFloor)
	}

	if c.BatchSize < 1 || c.BatchSize > maxBatchSize {
		return fmt.Errorf("batch size %d out of range [1,%d]", c.BatchSize, maxBatchSize)
	}

	if c.NoveltyNearDistance >= c.NoveltyFarDistance {
		return fmt.Errorf("novelty near distance %f must be below far distance %f", c.NoveltyNearDistance, c.NoveltyFarDistance)
	}

	if c.NoveltyTopK < 1 {
		return fmt.Errorf("novelty top-k must be positive, got %d", c.NoveltyTopK)
	}

	if !domain.ImpactLevel(c.WeeklyMinImpact).Valid() {
		return fmt.Errorf("unknown weekly impact level %q", c.WeeklyMinImpact)
	}

	if !domain.ImpactLevel(c.MonthlyMinImpact).Valid() {
		return fmt.Errorf("unknown monthly impact level %q", c.MonthlyMinImpact)
	}

	return nil
}
