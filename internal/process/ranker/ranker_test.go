package ranker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/signal-radar/internal/core/domain"
	"github.com/lueurxax/signal-radar/internal/core/llm"
	"github.com/lueurxax/signal-radar/internal/core/xerrors"
	"github.com/lueurxax/signal-radar/internal/platform/config"
)

// stubClient replays canned responses call by call.
type stubClient struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (c *stubClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	i := c.calls
	c.calls++
	c.prompts = append(c.prompts, req.Prompt)

	if i < len(c.errs) && c.errs[i] != nil {
		return llm.Response{}, c.errs[i]
	}

	if i < len(c.responses) {
		return llm.Response{Text: c.responses[i], Provider: llm.ProviderMock}, nil
	}

	return llm.Response{}, xerrors.ErrEmptyResponse
}

func (c *stubClient) ProviderStatuses() []llm.ProviderStatus { return nil }

func testConfig() *config.Config {
	return &config.Config{
		BatchSize:       10,
		SignalThreshold: 4,
		RankRetries:     0,
		RankTimeout:     time.Second,
	}
}

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func makeSignals(n int) []domain.RawSignal {
	signals := make([]domain.RawSignal, n)
	for i := range signals {
		signals[i] = domain.RawSignal{
			ID:     fmt.Sprintf("sig-%d", i),
			Source: "test",
			Title:  fmt.Sprintf("signal %d", i),
			Body:   "body",
		}
	}

	return signals
}

func verdictsJSON(t *testing.T, scores []int) string {
	t.Helper()

	verdicts := make([]map[string]interface{}, len(scores))
	for i, score := range scores {
		verdicts[i] = map[string]interface{}{
			"index":         i,
			"score":         score,
			"dimensions":    []string{"tooling"},
			"impact":        "medium",
			"maturity":      "emerging",
			"justification": "test verdict",
		}
	}

	raw, err := json.Marshal(verdicts)
	require.NoError(t, err)

	return string(raw)
}

func TestRankPreservesCountAndOrder(t *testing.T) {
	signals := makeSignals(12)
	client := &stubClient{responses: []string{
		verdictsJSON(t, []int{5, 6, 7, 8, 9, 5, 6, 7, 8, 9}),
		verdictsJSON(t, []int{4, 3}),
	}}

	r := New(client, testConfig(), testLogger())

	ranked, degraded := r.Rank(context.Background(), signals)

	require.Len(t, ranked, 12)
	assert.Equal(t, 0, degraded)
	assert.Equal(t, 2, client.calls)

	for i, rs := range ranked {
		assert.Equal(t, signals[i].ID, rs.ID)
	}
}

func TestRankDiscardsBelowThresholdWithoutRemoving(t *testing.T) {
	signals := makeSignals(3)
	client := &stubClient{responses: []string{verdictsJSON(t, []int{8, 3, 4})}}

	r := New(client, testConfig(), testLogger())

	ranked, _ := r.Rank(context.Background(), signals)

	require.Len(t, ranked, 3)
	assert.False(t, ranked[0].Discarded)
	assert.True(t, ranked[1].Discarded)
	assert.False(t, ranked[2].Discarded)
}

func TestRankCorrelatesOutOfOrderIndices(t *testing.T) {
	signals := makeSignals(3)

	// verdicts arrive shuffled; index correlation must restore order
	response := `[
		{"index": 2, "score": 9, "impact": "high", "maturity": "consolidated", "justification": "third"},
		{"index": 0, "score": 2, "impact": "low", "maturity": "experimental", "justification": "first"},
		{"index": 1, "score": 6, "impact": "medium", "maturity": "emerging", "justification": "second"}
	]`
	client := &stubClient{responses: []string{response}}

	r := New(client, testConfig(), testLogger())

	ranked, degraded := r.Rank(context.Background(), signals)

	require.Len(t, ranked, 3)
	assert.Equal(t, 0, degraded)
	assert.Equal(t, 2, ranked[0].Score)
	assert.Equal(t, 6, ranked[1].Score)
	assert.Equal(t, 9, ranked[2].Score)
}

func TestRankClampsScores(t *testing.T) {
	signals := makeSignals(2)
	client := &stubClient{responses: []string{verdictsJSON(t, []int{15, 0})}}

	r := New(client, testConfig(), testLogger())

	ranked, _ := r.Rank(context.Background(), signals)

	require.Len(t, ranked, 2)
	assert.Equal(t, domain.MaxScore, ranked[0].Score)
	assert.Equal(t, domain.MinScore, ranked[1].Score)
	assert.True(t, ranked[1].Discarded)
}

func TestRankNeutralFallbackOnCountMismatch(t *testing.T) {
	signals := makeSignals(3)
	client := &stubClient{responses: []string{verdictsJSON(t, []int{5, 5})}} // one short

	r := New(client, testConfig(), testLogger())

	ranked, degraded := r.Rank(context.Background(), signals)

	require.Len(t, ranked, 3)
	assert.Equal(t, 1, degraded)

	for _, rs := range ranked {
		assert.True(t, rs.Fallback)
		assert.Equal(t, 5, rs.Score)
		assert.Equal(t, domain.ImpactMedium, rs.Impact)
		assert.Equal(t, domain.MaturityEmerging, rs.Maturity)
		assert.False(t, rs.Discarded)
	}
}

func TestRankNeutralFallbackOnUnknownImpact(t *testing.T) {
	signals := makeSignals(1)
	client := &stubClient{responses: []string{
		`[{"index": 0, "score": 8, "impact": "severe", "maturity": "emerging", "justification": "x"}]`,
	}}

	r := New(client, testConfig(), testLogger())

	ranked, degraded := r.Rank(context.Background(), signals)

	require.Len(t, ranked, 1)
	assert.Equal(t, 1, degraded)
	assert.True(t, ranked[0].Fallback)
}

func TestRankRetriesTransientThenSucceeds(t *testing.T) {
	cfg := testConfig()
	cfg.RankRetries = 1
	cfg.RankBackoff = []time.Duration{time.Millisecond}

	signals := makeSignals(1)
	client := &stubClient{
		errs:      []error{fmt.Errorf("%w: 503", xerrors.ErrTransient)},
		responses: []string{"", verdictsJSON(t, []int{7})},
	}

	r := New(client, cfg, testLogger())

	ranked, degraded := r.Rank(context.Background(), signals)

	require.Len(t, ranked, 1)
	assert.Equal(t, 0, degraded)
	assert.Equal(t, 7, ranked[0].Score)
	assert.Equal(t, 2, client.calls)
}

func TestRankUnwrapsObjectWrappedVerdicts(t *testing.T) {
	// JSON-object response mode forces a top-level object, so the array
	// arrives under a wrapper key and must still score normally.
	signals := makeSignals(2)

	for _, key := range []string{"rankings", "items", "verdicts"} {
		t.Run(key, func(t *testing.T) {
			response := fmt.Sprintf(`{%q: %s}`, key, verdictsJSON(t, []int{9, 3}))
			client := &stubClient{responses: []string{response}}

			r := New(client, testConfig(), testLogger())

			ranked, degraded := r.Rank(context.Background(), signals)

			require.Len(t, ranked, 2)
			assert.Equal(t, 0, degraded, "wrapped verdicts must not trigger the neutral fallback")
			assert.False(t, ranked[0].Fallback)
			assert.Equal(t, 9, ranked[0].Score)
			assert.Equal(t, 3, ranked[1].Score)
			assert.True(t, ranked[1].Discarded)
		})
	}
}

func TestRankObjectWithoutVerdictArrayFallsBack(t *testing.T) {
	signals := makeSignals(1)
	client := &stubClient{responses: []string{`{"scores": [1, 2, 3]}`}}

	r := New(client, testConfig(), testLogger())

	ranked, degraded := r.Rank(context.Background(), signals)

	require.Len(t, ranked, 1)
	assert.Equal(t, 1, degraded)
	assert.True(t, ranked[0].Fallback)
}

func TestRankTruncatesBodyOnRuneBoundary(t *testing.T) {
	signals := makeSignals(1)

	// 3-byte runes ensure the byte cap lands mid-rune
	signals[0].Body = strings.Repeat("€", maxBodyChars)

	client := &stubClient{responses: []string{verdictsJSON(t, []int{5})}}

	r := New(client, testConfig(), testLogger())
	r.Rank(context.Background(), signals)

	require.Len(t, client.prompts, 1)
	assert.True(t, utf8.ValidString(client.prompts[0]))
}

func TestRankPromptCarriesIndexMarkers(t *testing.T) {
	signals := makeSignals(2)
	client := &stubClient{responses: []string{verdictsJSON(t, []int{5, 5})}}

	r := New(client, testConfig(), testLogger())
	r.Rank(context.Background(), signals)

	require.Len(t, client.prompts, 1)
	assert.True(t, strings.Contains(client.prompts[0], "[0] source=test"))
	assert.True(t, strings.Contains(client.prompts[0], "[1] source=test"))
}
