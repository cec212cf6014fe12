package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/lueurxax/signal-radar/internal/core/embeddings"
	"github.com/lueurxax/signal-radar/internal/core/xerrors"
)

// MemoryStore implements Store in memory with brute-force cosine search.
// It shares the embedding provider with the PostgreSQL store so both rank
// neighbors identically; used in tests and local runs without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	embedder embeddings.Provider
	records  map[string]memoryRecord // key: namespace + "/" + id
}

type memoryRecord struct {
	Record
	vector []float32
}

// NewMemory creates an empty in-memory store.
func NewMemory(embedder embeddings.Provider) *MemoryStore {
	return &MemoryStore{
		embedder: embedder,
		records:  make(map[string]memoryRecord),
	}
}

// Add implements Store.
func (s *MemoryStore) Add(ctx context.Context, rec Record) error {
	if !ValidNamespace(rec.Namespace) {
		return fmt.Errorf("%w: %q", xerrors.ErrInvalidNamespace, rec.Namespace)
	}

	emb, err := s.embedder.GetEmbedding(ctx, rec.Body)
	if err != nil {
		return fmt.Errorf("embedding record %s/%s: %w", rec.Namespace, rec.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Namespace + "/" + rec.ID

	if existing, ok := s.records[key]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	s.records[key] = memoryRecord{Record: rec, vector: emb.Vector}

	return nil
}

// Search implements Store.
func (s *MemoryStore) Search(ctx context.Context, namespace, query string, limit int, filter Filter) ([]Match, error) {
	if !ValidNamespace(namespace) {
		return nil, fmt.Errorf("%w: %q", xerrors.ErrInvalidNamespace, namespace)
	}

	if limit < 1 {
		return nil, fmt.Errorf("%w: search limit %d", xerrors.ErrInvalidInput, limit)
	}

	emb, err := s.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding search query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, limit)

	for _, rec := range s.records {
		if rec.Namespace != namespace || !matchesFilter(rec.Record, filter) {
			continue
		}

		matches = append(matches, Match{
			ID:       rec.ID,
			Body:     rec.Body,
			Metadata: rec.Metadata,
			Distance: cosineDistance(emb.Vector, rec.vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, namespace, id string) (Record, error) {
	if !ValidNamespace(namespace) {
		return Record{}, fmt.Errorf("%w: %q", xerrors.ErrInvalidNamespace, namespace)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[namespace+"/"+id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s/%s", xerrors.ErrNotFound, namespace, id)
	}

	return rec.Record, nil
}

// Len returns the number of records in a namespace.
func (s *MemoryStore) Len(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0

	for _, rec := range s.records {
		if rec.Namespace == namespace {
			n++
		}
	}

	return n
}

func matchesFilter(rec Record, filter Filter) bool {
	for k, v := range filter.Equals {
		if rec.Metadata[k] != v {
			return false
		}
	}

	if filter.MinScore > 0 {
		score, err := strconv.Atoi(rec.Metadata["score"])
		if err != nil || score < filter.MinScore {
			return false
		}
	}

	if !filter.CreatedAfter.IsZero() && rec.CreatedAt.Before(filter.CreatedAfter) {
		return false
	}

	if !filter.CreatedBefore.IsZero() && !rec.CreatedAt.Before(filter.CreatedBefore) {
		return false
	}

	return true
}

// cosineDistance returns 1 - cos(a, b), matching the pgvector <=> operator.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}

	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
