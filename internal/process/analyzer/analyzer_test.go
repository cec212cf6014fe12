package analyzer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/signal-radar/internal/core/domain"
	"github.com/lueurxax/signal-radar/internal/core/llm"
	"github.com/lueurxax/signal-radar/internal/core/xerrors"
	"github.com/lueurxax/signal-radar/internal/platform/config"
)

const validAnalysis = `{
	"summary": "A runtime release that halves cold-start latency.",
	"insights": ["Cold starts dominated serving cost"],
	"code_artifacts": ["github.com/example/runtime"],
	"applicability": "Drop-in for existing deployments.",
	"architectural_implications": "Removes the need for warm pools.",
	"topics": ["inference", "latency"],
	"competitive_notes": ""
}`

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
		AnalyzerRetries: 0,
		AnalyzeTimeout:  time.Second,
	}
}

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func testSignal() domain.RankedSignal {
	return domain.RankedSignal{
		RawSignal: domain.RawSignal{
			ID:     "sig-1",
			Source: "github",
			Title:  "Runtime v3 released",
			Body:   "Full release notes.",
		},
		Score:         8,
		Impact:        domain.ImpactHigh,
		Maturity:      domain.MaturityProductionReady,
		Justification: "changes serving economics",
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	client := &stubClient{responses: []string{validAnalysis}}
	a := New(client, testConfig(), testLogger())

	got := a.Analyze(context.Background(), testSignal(), 0.8)

	assert.False(t, got.AnalysisFailed)
	assert.Equal(t, "A runtime release that halves cold-start latency.", got.Summary)
	assert.Equal(t, []string{"inference", "latency"}, got.Topics)
	assert.InDelta(t, 0.8, got.NoveltyScore, 1e-9)
	assert.False(t, got.AnalyzedAt.IsZero())
	assert.Equal(t, 1, client.calls)
}

func TestAnalyzeReinforcedRetryOnInvalidOutput(t *testing.T) {
	client := &stubClient{responses: []string{"not json at all", validAnalysis}}
	a := New(client, testConfig(), testLogger())

	got := a.Analyze(context.Background(), testSignal(), 0.5)

	assert.False(t, got.AnalysisFailed)
	assert.Equal(t, 2, client.calls)

	// second prompt must carry the reinforcement, first must not
	require.Len(t, client.prompts, 2)
	assert.False(t, strings.Contains(client.prompts[0], "previous response"))
	assert.True(t, strings.Contains(client.prompts[1], "previous response"))
}

func TestAnalyzeDegradedRecordAfterRepeatedInvalidOutput(t *testing.T) {
	client := &stubClient{responses: []string{"garbage", "still garbage"}}
	a := New(client, testConfig(), testLogger())

	sig := testSignal()
	got := a.Analyze(context.Background(), sig, 0.5)

	assert.True(t, got.AnalysisFailed)
	assert.Equal(t, sig.Title, got.Summary)
	assert.Empty(t, got.Insights)
	assert.NotNil(t, got.Insights)
	assert.Equal(t, 2, client.calls)
}

func TestAnalyzeDegradedRecordWhenServiceUnavailable(t *testing.T) {
	client := &stubClient{errs: []error{
		fmt.Errorf("%w: all down", xerrors.ErrAllProvidersFailed),
	}}
	a := New(client, testConfig(), testLogger())

	sig := testSignal()
	got := a.Analyze(context.Background(), sig, 1.0)

	assert.True(t, got.AnalysisFailed)
	assert.Equal(t, sig.Title, got.Summary)
	assert.InDelta(t, 1.0, got.NoveltyScore, 1e-9)
	assert.Equal(t, 1, client.calls)
}

func TestAnalyzeRetriesTransientThenSucceeds(t *testing.T) {
	cfg := testConfig()
	cfg.AnalyzerRetries = 1
	cfg.AnalyzerBackoff = []time.Duration{time.Millisecond}

	client := &stubClient{
		errs:      []error{fmt.Errorf("%w: 503", xerrors.ErrTransient)},
		responses: []string{"", validAnalysis},
	}
	a := New(client, cfg, testLogger())

	got := a.Analyze(context.Background(), testSignal(), 0.5)

	assert.False(t, got.AnalysisFailed)
	assert.Equal(t, 2, client.calls)
}

func TestAnalyzeMissingSummaryIsInvalid(t *testing.T) {
	client := &stubClient{responses: []string{
		`{"summary": "  ", "insights": []}`,
		validAnalysis,
	}}
	a := New(client, testConfig(), testLogger())

	got := a.Analyze(context.Background(), testSignal(), 0.5)

	assert.False(t, got.AnalysisFailed)
	assert.Equal(t, 2, client.calls, "blank summary must trigger the reinforced retry")
}

func TestAnalyzePromptCarriesRankingContext(t *testing.T) {
	client := &stubClient{responses: []string{validAnalysis}}
	a := New(client, testConfig(), testLogger())

	a.Analyze(context.Background(), testSignal(), 0.5)

	require.Len(t, client.prompts, 1)
	assert.True(t, strings.Contains(client.prompts[0], "score: 8"))
	assert.True(t, strings.Contains(client.prompts[0], "impact: high"))
	assert.True(t, strings.Contains(client.prompts[0], "changes serving economics"))
}
