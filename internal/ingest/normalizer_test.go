package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/signal-radar/internal/core/domain"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestIdentityIsStable(t *testing.T) {
	sig := domain.RawSignal{
		Source:    "github",
		SourceURL: "https://github.com/example/proj/releases/v2",
		Title:     "v2.0 released",
	}

	first := Identity(sig)
	second := Identity(sig)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestIdentityDistinguishesFields(t *testing.T) {
	base := domain.RawSignal{Source: "github", SourceURL: "https://x", Title: "ab"}

	// source|url|title concatenation must not collide across boundaries
	shifted := domain.RawSignal{Source: "github", SourceURL: "https://xa", Title: "b"}

	assert.NotEqual(t, Identity(base), Identity(shifted))
}

func TestNormalizeAssignsIdentityAndDropsDuplicates(t *testing.T) {
	n := NewNormalizer(testLogger())
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	sig := domain.RawSignal{Source: "hn", SourceURL: "https://example.com", Title: "A post", Body: "text"}

	out := n.Normalize([]domain.RawSignal{sig, sig}, now)

	require.Len(t, out, 1)
	assert.Equal(t, Identity(sig), out[0].ID)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := NewNormalizer(testLogger())
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	in := []domain.RawSignal{
		{Source: "hn", SourceURL: "https://a", Title: "first", Body: "b1"},
		{Source: "hn", SourceURL: "https://b", Title: "second", Body: "b2"},
	}

	once := n.Normalize(in, now)
	twice := n.Normalize(once, now)

	assert.Equal(t, once, twice)
}

func TestNormalizeDropsEmptySignals(t *testing.T) {
	n := NewNormalizer(testLogger())

	out := n.Normalize([]domain.RawSignal{
		{Source: "hn", SourceURL: "https://a", Title: "  ", Body: "\n"},
		{Source: "hn", SourceURL: "https://b", Title: "kept", Body: "body"},
	}, time.Now())

	require.Len(t, out, 1)
	assert.Equal(t, "kept", out[0].Title)
}

func TestNormalizeRepairsPublishedAt(t *testing.T) {
	n := NewNormalizer(testLogger())
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sig  domain.RawSignal
		want time.Time
	}{
		{
			name: "explicit timestamp kept",
			sig: domain.RawSignal{
				Source: "s", Title: "t", Body: "b",
				PublishedAt: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			},
			want: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "parsed from metadata",
			sig: domain.RawSignal{
				Source: "s", Title: "t2", Body: "b",
				Metadata: map[string]string{"published": "2026-08-21T09:30:00Z"},
			},
			want: time.Date(2026, 8, 21, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "garbage metadata falls back to collection time",
			sig: domain.RawSignal{
				Source: "s", Title: "t3", Body: "b",
				Metadata: map[string]string{"published": "sometime last week"},
			},
			want: now,
		},
		{
			name: "missing everything falls back to collection time",
			sig:  domain.RawSignal{Source: "s", Title: "t4", Body: "b"},
			want: now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := n.Normalize([]domain.RawSignal{tt.sig}, now)
			require.Len(t, out, 1)

			assert.True(t, tt.want.Equal(out[0].PublishedAt),
				"got %v, want %v", out[0].PublishedAt, tt.want)
		})
	}
}

type failingCollector struct{ source string }

func (c *failingCollector) Source() string { return c.source }

func (c *failingCollector) Collect(context.Context) ([]domain.RawSignal, error) {
	return nil, errors.New("feed timeout")
}

func TestSetCapturesPerSourceFailures(t *testing.T) {
	good := NewStaticCollector("github", []domain.RawSignal{
		{Source: "github", Title: "release", Body: "notes"},
	})
	bad := &failingCollector{source: "arxiv"}

	set := NewSet(testLogger(), good, bad)

	signals, errs := set.Collect(context.Background())

	require.Len(t, signals, 1)
	require.Len(t, errs, 1)
	assert.Equal(t, "arxiv", errs[0].Source)
}

func TestSetDisableSkipsSource(t *testing.T) {
	c := NewStaticCollector("github", []domain.RawSignal{
		{Source: "github", Title: "release", Body: "notes"},
	})

	set := NewSet(testLogger(), c)
	set.Disable("github")

	signals, errs := set.Collect(context.Background())

	assert.Empty(t, signals)
	assert.Empty(t, errs)
}
