package llm

import "context"

// ProviderName identifies a reasoning provider.
type ProviderName string

// Provider name constants.
const (
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
	ProviderMock      ProviderName = "mock"
)

// Priority constants for provider ordering.
const (
	PriorityPrimary  = 100 // Primary provider (OpenAI)
	PriorityFallback = 50  // First fallback (Anthropic)
	PriorityMock     = 0   // Mock provider for testing
)

// Provider defines the interface for reasoning providers. Every provider
// exposes a single completion entry point; prompt construction and response
// parsing stay with the pipeline stages.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// IsAvailable returns true if the provider is configured and available.
	IsAvailable() bool

	// Priority returns the provider priority (higher = preferred).
	Priority() int

	// Complete sends one request and returns the raw completion text.
	Complete(ctx context.Context, req Request) (Response, error)
}
