package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lueurxax/signal-radar/internal/core/xerrors"
	"github.com/lueurxax/signal-radar/internal/platform/config"
)

// OpenAI model constants.
const (
	ModelGPT4oMini = "gpt-4o-mini"

	defaultOpenAIModel = ModelGPT4oMini

	openaiRateLimiterBurst = 5
)

// openaiProvider implements the Provider interface for OpenAI.
type openaiProvider struct {
	cfg         *config.Config
	client      *openai.Client
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter
}

// NewOpenAIProvider creates a new OpenAI reasoning provider.
func NewOpenAIProvider(cfg *config.Config, logger *zerolog.Logger) Provider {
	rateLimit := cfg.RateLimitRPS
	if rateLimit == 0 {
		rateLimit = 1
	}

	return &openaiProvider{
		cfg:         cfg,
		client:      openai.NewClient(cfg.OpenAIAPIKey),
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rateLimit)), openaiRateLimiterBurst),
	}
}

// Name returns the provider identifier.
func (p *openaiProvider) Name() ProviderName {
	return ProviderOpenAI
}

// IsAvailable returns true if the provider is configured and available.
func (p *openaiProvider) IsAvailable() bool {
	return p.cfg.OpenAIAPIKey != ""
}

// Priority returns the provider priority.
func (p *openaiProvider) Priority() int {
	return PriorityPrimary
}

// Complete implements Provider interface.
func (p *openaiProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limiter: %w", err)
	}

	model := req.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemContext != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemContext,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}

	if req.ExpectJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Response{}, classifyOpenAIError(fmt.Errorf("openai chat completion: %w", err))
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Response{}, fmt.Errorf("%w: openai", xerrors.ErrEmptyResponse)
	}

	return Response{
		Text:     resp.Choices[0].Message.Content,
		Provider: ProviderOpenAI,
		Model:    model,
	}, nil
}

// classifyOpenAIError marks rate-limit, server-side and transport failures
// as transient so the retry policy picks them up. Client-side errors (bad
// request, auth) surface unchanged.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError {
			return errors.Join(xerrors.ErrTransient, err)
		}

		return err
	}

	return errors.Join(xerrors.ErrTransient, err)
}

// Ensure openaiProvider implements Provider interface.
var _ Provider = (*openaiProvider)(nil)
