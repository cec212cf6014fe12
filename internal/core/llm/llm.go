// Package llm provides the reasoning-service client used by the ranking,
// analysis and synthesis stages. A registry fronts multiple providers with
// priority ordering, per-provider circuit breakers and automatic fallback.
package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-radar/internal/platform/config"
)

// Request is a single completion request. Model is the caller's per-task
// choice; an empty model lets the provider pick its default.
type Request struct {
	Task          string
	SystemContext string
	Prompt        string
	Model         string
	MaxTokens     int
	ExpectJSON    bool
}

// Response is the raw completion from a provider.
type Response struct {
	Text     string
	Provider ProviderName
	Model    string
}

// Task label values, used for logging and metrics.
const (
	TaskRank      = "rank"
	TaskAnalyze   = "analyze"
	TaskSynthesis = "synthesis"
)

// Circuit breaker defaults.
const (
	defaultCircuitThreshold = 5
	defaultCircuitTimeout   = 5 * time.Minute
)

const defaultMaxTokens = 4096

// Client is the reasoning-service surface the pipeline stages depend on.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	ProviderStatuses() []ProviderStatus
}

// New creates a reasoning client with multi-provider fallback support.
// Providers are registered in priority order: OpenAI (primary), Anthropic
// (fallback). With no API keys configured the mock provider is used, which
// keeps local runs and tests working without network access.
func New(cfg *config.Config, logger *zerolog.Logger) Client {
	if logger == nil {
		nopLogger := zerolog.Nop()
		logger = &nopLogger
	}

	registry := NewRegistry(logger)
	circuitCfg := CircuitBreakerConfig{
		Threshold:  defaultCircuitThreshold,
		ResetAfter: defaultCircuitTimeout,
	}

	if cfg.OpenAIAPIKey != "" {
		registry.Register(NewOpenAIProvider(cfg, logger), circuitCfg)
	}

	if cfg.AnthropicAPIKey != "" {
		registry.Register(NewAnthropicProvider(cfg, logger), circuitCfg)
	}

	if registry.ProviderCount() == 0 {
		registry.Register(NewMockProvider(), circuitCfg)
	}

	return registry
}
