package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/signal-radar/internal/core/embeddings"
	"github.com/lueurxax/signal-radar/internal/core/xerrors"
)

func newTestStore() *MemoryStore {
	return NewMemory(embeddings.NewMockProviderWithDimensions(64))
}

func TestAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	rec := Record{
		Namespace: NamespaceSignals,
		ID:        "sig-1",
		Body:      "A new inference runtime was released",
		Metadata:  map[string]string{"source": "github"},
	}

	require.NoError(t, store.Add(ctx, rec))
	require.NoError(t, store.Add(ctx, rec))

	assert.Equal(t, 1, store.Len(NamespaceSignals))
}

func TestAddReplacesBodyAndMetadata(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	rec := Record{Namespace: NamespaceSignals, ID: "sig-1", Body: "first body"}
	require.NoError(t, store.Add(ctx, rec))

	rec.Body = "second body"
	rec.Metadata = map[string]string{"score": "7"}
	require.NoError(t, store.Add(ctx, rec))

	got, err := store.Get(ctx, NamespaceSignals, "sig-1")
	require.NoError(t, err)

	assert.Equal(t, "second body", got.Body)
	assert.Equal(t, "7", got.Metadata["score"])
}

func TestSearchEmptyNamespaceReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	matches, err := store.Search(ctx, NamespaceAnalyses, "anything", 5, Filter{})
	require.NoError(t, err)

	assert.Empty(t, matches)
}

func TestSearchIdenticalTextIsNearest(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	bodies := map[string]string{
		"sig-1": "Postgres added incremental vacuum improvements",
		"sig-2": "A new agent orchestration framework launched",
		"sig-3": "Benchmark results for quantized models",
	}

	for id, body := range bodies {
		require.NoError(t, store.Add(ctx, Record{Namespace: NamespaceSignals, ID: id, Body: body}))
	}

	matches, err := store.Search(ctx, NamespaceSignals, bodies["sig-2"], 3, Filter{})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "sig-2", matches[0].ID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-6)

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i].Distance, matches[i-1].Distance)
	}
}

func TestSearchMetadataFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	require.NoError(t, store.Add(ctx, Record{
		Namespace: NamespaceSyntheses,
		ID:        "2026-08-24",
		Body:      "daily brief",
		Metadata:  map[string]string{"mode": "daily"},
	}))
	require.NoError(t, store.Add(ctx, Record{
		Namespace: NamespaceSyntheses,
		ID:        "2026-W34",
		Body:      "weekly review",
		Metadata:  map[string]string{"mode": "weekly"},
	}))

	matches, err := store.Search(ctx, NamespaceSyntheses, "brief", 10, Filter{
		Equals: map[string]string{"mode": "daily"},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, "2026-08-24", matches[0].ID)
}

func TestSearchMinScoreFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	require.NoError(t, store.Add(ctx, Record{
		Namespace: NamespaceAnalyses,
		ID:        "low",
		Body:      "minor release notes",
		Metadata:  map[string]string{"score": "4"},
	}))
	require.NoError(t, store.Add(ctx, Record{
		Namespace: NamespaceAnalyses,
		ID:        "high",
		Body:      "major architecture shift",
		Metadata:  map[string]string{"score": "9"},
	}))

	matches, err := store.Search(ctx, NamespaceAnalyses, "release", 10, Filter{MinScore: 7})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, "high", matches[0].ID)
}

func TestSearchTimeRangeFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	old := Record{
		Namespace: NamespaceSignals,
		ID:        "old",
		Body:      "old signal",
		CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	recent := Record{
		Namespace: NamespaceSignals,
		ID:        "recent",
		Body:      "recent signal",
		CreatedAt: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, store.Add(ctx, old))
	require.NoError(t, store.Add(ctx, recent))

	matches, err := store.Search(ctx, NamespaceSignals, "signal", 10, Filter{
		CreatedAfter: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, "recent", matches[0].ID)
}

func TestGetMissingRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	_, err := store.Get(ctx, NamespaceSignals, "absent")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestInvalidNamespaceRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	err := store.Add(ctx, Record{Namespace: "scratch", ID: "x", Body: "y"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidNamespace)

	_, err = store.Search(ctx, "scratch", "y", 1, Filter{})
	assert.ErrorIs(t, err, xerrors.ErrInvalidNamespace)
}
