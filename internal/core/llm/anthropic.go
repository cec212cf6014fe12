package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lueurxax/signal-radar/internal/core/xerrors"
	"github.com/lueurxax/signal-radar/internal/platform/config"
)

// Anthropic model constants.
const (
	ModelClaudeHaiku = "claude-haiku-4.5"

	defaultAnthropicModel = ModelClaudeHaiku

	modelPrefixClaude = "claude"

	anthropicRateLimiterBurst = 5
)

// anthropicProvider implements the Provider interface for Anthropic Claude.
type anthropicProvider struct {
	cfg         *config.Config
	client      anthropic.Client
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter
}

// NewAnthropicProvider creates a new Anthropic reasoning provider.
func NewAnthropicProvider(cfg *config.Config, logger *zerolog.Logger) Provider {
	client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))

	rateLimit := cfg.RateLimitRPS
	if rateLimit == 0 {
		rateLimit = 1
	}

	return &anthropicProvider{
		cfg:         cfg,
		client:      client,
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rateLimit)), anthropicRateLimiterBurst),
	}
}

// Name returns the provider identifier.
func (p *anthropicProvider) Name() ProviderName {
	return ProviderAnthropic
}

// IsAvailable returns true if the provider is configured and available.
func (p *anthropicProvider) IsAvailable() bool {
	return p.cfg.AnthropicAPIKey != ""
}

// Priority returns the provider priority.
func (p *anthropicProvider) Priority() int {
	return PriorityFallback
}

// resolveModel returns the appropriate model name for Anthropic. Models
// configured for other providers map to the default Claude model.
func (p *anthropicProvider) resolveModel(model string) string {
	if strings.HasPrefix(model, modelPrefixClaude) {
		return model
	}

	return defaultAnthropicModel
}

// Complete implements Provider interface.
func (p *anthropicProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limiter: %w", err)
	}

	model := p.resolveModel(req.Model)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	prompt := req.Prompt
	if req.SystemContext != "" {
		prompt = req.SystemContext + "\n\n" + prompt
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Response{}, classifyAnthropicError(fmt.Errorf("anthropic message: %w", err))
	}

	var sb strings.Builder

	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Response{}, fmt.Errorf("%w: anthropic", xerrors.ErrEmptyResponse)
	}

	return Response{
		Text:     text,
		Provider: ProviderAnthropic,
		Model:    model,
	}, nil
}

// classifyAnthropicError marks rate-limit, overloaded and transport
// failures as transient.
func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return errors.Join(xerrors.ErrTransient, err)
		}

		return err
	}

	return errors.Join(xerrors.ErrTransient, err)
}

// Ensure anthropicProvider implements Provider interface.
var _ Provider = (*anthropicProvider)(nil)
