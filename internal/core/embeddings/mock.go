package embeddings

import (
	"context"
	"hash/fnv"
	"math"
)

// LCG constants for deterministic pseudo-random generation.
const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407

	seedShift  = 33
	floatScale = 0x40000000
)

// MockProvider implements the embedding Provider interface for testing.
// It generates deterministic unit vectors from a hash of the input text,
// so identical texts land at distance zero and unrelated texts spread out.
type MockProvider struct {
	dimensions int
}

// NewMockProvider creates a new mock embedding provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{dimensions: DefaultDimensions}
}

// NewMockProviderWithDimensions creates a mock provider with custom dimensions.
func NewMockProviderWithDimensions(dims int) *MockProvider {
	return &MockProvider{dimensions: dims}
}

// Name returns the provider identifier.
func (p *MockProvider) Name() ProviderName {
	return ProviderMock
}

// Dimensions returns the output dimensions.
func (p *MockProvider) Dimensions() int {
	return p.dimensions
}

// GetEmbedding generates a deterministic mock embedding based on text hash.
func (p *MockProvider) GetEmbedding(_ context.Context, text string) (EmbeddingResult, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text)) // fnv.Write never returns an error
	seed := h.Sum64()

	vec := make([]float32, p.dimensions)
	for i := range vec {
		seed = seed*lcgMultiplier + lcgIncrement
		//nolint:gosec // intentional uint64->int64 conversion for pseudo-random generation
		vec[i] = float32(int64(seed>>seedShift)-floatScale) / float32(floatScale)
	}

	return EmbeddingResult{
		Vector:     Normalize(vec),
		Dimensions: p.dimensions,
		Provider:   ProviderMock,
	}, nil
}

// Normalize scales a vector to unit length. Zero vectors are returned
// unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	if sum == 0 {
		return vec
	}

	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}

	return vec
}

// Ensure MockProvider implements Provider interface.
var _ Provider = (*MockProvider)(nil)
