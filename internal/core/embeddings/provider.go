// Package embeddings generates the vectors the knowledge store indexes.
// The store owns when to embed; this package only answers how.
package embeddings

import "context"

// ProviderName identifies an embedding provider.
type ProviderName string

// Provider name constants.
const (
	ProviderOpenAI ProviderName = "openai"
	ProviderMock   ProviderName = "mock"
)

// DefaultDimensions matches the vector column width in the store schema.
const DefaultDimensions = 1536

// EmbeddingResult contains the embedding vector and metadata.
type EmbeddingResult struct {
	Vector     []float32
	Dimensions int
	Provider   ProviderName
}

// Provider defines the interface for embedding providers.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// GetEmbedding generates an embedding for the given text.
	GetEmbedding(ctx context.Context, text string) (EmbeddingResult, error)

	// Dimensions returns the output dimensions of this provider.
	Dimensions() int
}
