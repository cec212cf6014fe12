package synthesizer

import (
	"context"
	"fmt"
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

type stubClient struct {
	responses []string
	errs      []error
	calls     int
}

func (c *stubClient) Complete(context.Context, llm.Request) (llm.Response, error) {
	i := c.calls
	c.calls++

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
	return &config.Config{SynthesisTimeout: time.Second}
}

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func day() domain.Period {
	return domain.DailyPeriod(time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))
}

func analyses(ids ...string) []domain.AnalyzedSignal {
	out := make([]domain.AnalyzedSignal, 0, len(ids))

	for i, id := range ids {
		out = append(out, domain.AnalyzedSignal{
			RankedSignal: domain.RankedSignal{
				RawSignal: domain.RawSignal{ID: id, Title: "title " + id},
				Score:     5 + i,
				Impact:    domain.ImpactMedium,
			},
			Summary:      "summary " + id,
			NoveltyScore: 0.8,
		})
	}

	return out
}

func synthesisJSON(evidenceIDs string) string {
	return fmt.Sprintf(`{
		"relevance_score": 7,
		"summary": "A meaningful day.",
		"trends": [{"statement": "Runtimes are consolidating", "evidence_ids": [%s], "confidence": 0.8}],
		"highlights": ["title sig-1", "title sig-1", "title sig-2"],
		"actions": ["evaluate the new runtime"],
		"maturity_changes": [],
		"competitive_shifts": [],
		"risk_assessment": "low"
	}`, evidenceIDs)
}

func TestDailySynthesis(t *testing.T) {
	client := &stubClient{responses: []string{synthesisJSON(`"sig-1"`)}}
	s := New(client, testConfig(), testLogger())

	syn := s.Daily(context.Background(), day(), analyses("sig-1", "sig-2"), nil)

	assert.Equal(t, domain.ModeDaily, syn.Period.Mode)
	assert.Equal(t, "2026-08-25", syn.Period.Key)
	assert.Equal(t, 7, syn.RelevanceScore)
	assert.False(t, syn.Mechanical)
	require.Len(t, syn.Trends, 1)
	assert.Equal(t, []string{"sig-1"}, syn.Trends[0].EvidenceIDs)
}

func TestDailyStripsInventedEvidence(t *testing.T) {
	client := &stubClient{responses: []string{synthesisJSON(`"sig-1", "invented-99"`)}}
	s := New(client, testConfig(), testLogger())

	syn := s.Daily(context.Background(), day(), analyses("sig-1"), nil)

	require.Len(t, syn.Trends, 1)
	assert.Equal(t, []string{"sig-1"}, syn.Trends[0].EvidenceIDs)
}

func TestDailyDropsTrendsWithoutSurvivingEvidence(t *testing.T) {
	client := &stubClient{responses: []string{synthesisJSON(`"invented-99"`)}}
	s := New(client, testConfig(), testLogger())

	syn := s.Daily(context.Background(), day(), analyses("sig-1"), nil)

	assert.Empty(t, syn.Trends)
	assert.NotNil(t, syn.Trends)
}

func TestDailyDedupesHighlights(t *testing.T) {
	client := &stubClient{responses: []string{synthesisJSON(`"sig-1"`)}}
	s := New(client, testConfig(), testLogger())

	syn := s.Daily(context.Background(), day(), analyses("sig-1", "sig-2"), nil)

	assert.Equal(t, []string{"title sig-1", "title sig-2"}, syn.Highlights)
}

func TestEmptyDayYieldsValidLowScoreSynthesis(t *testing.T) {
	client := &stubClient{}
	s := New(client, testConfig(), testLogger())

	syn := s.Daily(context.Background(), day(), nil, nil)

	assert.Equal(t, 0, client.calls, "empty period must not call the service")
	assert.Equal(t, 1, syn.RelevanceScore)
	assert.NotEmpty(t, syn.Summary)
	assert.NotNil(t, syn.Trends)
	assert.NotNil(t, syn.Highlights)
	assert.NotNil(t, syn.Actions)
	assert.Empty(t, syn.Trends)
	assert.False(t, syn.Mechanical)
}

func TestMechanicalFallbackAlwaysEmits(t *testing.T) {
	client := &stubClient{errs: []error{fmt.Errorf("%w: outage", xerrors.ErrAllProvidersFailed)}}
	s := New(client, testConfig(), testLogger())

	input := analyses("sig-1", "sig-2", "sig-3")
	syn := s.Daily(context.Background(), day(), input, nil)

	assert.True(t, syn.Mechanical)
	require.Len(t, syn.Highlights, 3)

	// rank order: sig-3 scored highest
	assert.Contains(t, syn.Highlights[0], "sig-3")
	assert.Contains(t, syn.Highlights[2], "sig-1")

	// mean of 5,6,7 floored
	assert.Equal(t, 6, syn.RelevanceScore)
	assert.NotNil(t, syn.Trends)
}

func TestMechanicalFallbackOnInvalidJSON(t *testing.T) {
	client := &stubClient{responses: []string{"I could not produce JSON today."}}
	s := New(client, testConfig(), testLogger())

	syn := s.Daily(context.Background(), day(), analyses("sig-1"), nil)

	assert.True(t, syn.Mechanical)
	assert.Equal(t, 5, syn.RelevanceScore)
}

func TestWeeklyEvidenceContainedToDailies(t *testing.T) {
	// response cites a daily key, a raw signal id and an invented id;
	// only the daily key may survive
	client := &stubClient{responses: []string{synthesisJSON(`"2026-08-24", "sig-1", "2026-W99"`)}}
	s := New(client, testConfig(), testLogger())

	dailies := []domain.Synthesis{
		{
			Period:         domain.Period{Mode: domain.ModeDaily, Key: "2026-08-24"},
			RelevanceScore: 6,
			Summary:        "monday brief",
		},
	}

	week := domain.WeeklyPeriod(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC))
	syn := s.Weekly(context.Background(), week, dailies, analyses("sig-1"))

	assert.Equal(t, domain.ModeWeekly, syn.Period.Mode)
	require.Len(t, syn.Trends, 1)
	assert.Equal(t, []string{"2026-08-24"}, syn.Trends[0].EvidenceIDs)
}

func TestWeeklyDropsHighlightsAlreadyInDailies(t *testing.T) {
	client := &stubClient{responses: []string{`{
		"relevance_score": 6,
		"summary": "the week",
		"trends": [],
		"highlights": ["Repeated daily highlight", "Fresh weekly highlight"],
		"actions": [],
		"maturity_changes": [],
		"competitive_shifts": [],
		"risk_assessment": "low"
	}`}}
	s := New(client, testConfig(), testLogger())

	dailies := []domain.Synthesis{
		{
			Period:         domain.Period{Mode: domain.ModeDaily, Key: "2026-08-24"},
			RelevanceScore: 6,
			Summary:        "monday brief",
			Highlights:     []string{"repeated DAILY highlight"},
		},
	}

	week := domain.WeeklyPeriod(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC))
	syn := s.Weekly(context.Background(), week, dailies, nil)

	assert.Equal(t, []string{"Fresh weekly highlight"}, syn.Highlights)
}

func TestMonthlyDropsHighlightsAlreadyInWeeklies(t *testing.T) {
	client := &stubClient{responses: []string{`{
		"relevance_score": 6,
		"summary": "the month",
		"trends": [],
		"highlights": ["Carried weekly highlight", "New monthly highlight"],
		"actions": [],
		"maturity_changes": [],
		"competitive_shifts": [],
		"risk_assessment": "low"
	}`}}
	s := New(client, testConfig(), testLogger())

	weeklies := []domain.Synthesis{
		{
			Period:         domain.Period{Mode: domain.ModeWeekly, Key: "2026-W34"},
			RelevanceScore: 7,
			Summary:        "week in review",
			Highlights:     []string{"carried weekly highlight"},
		},
	}

	month := domain.MonthlyPeriod(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC))
	syn := s.Monthly(context.Background(), month, weeklies, nil)

	assert.Equal(t, []string{"New monthly highlight"}, syn.Highlights)
}

func TestWeeklyWithoutDailiesIsValidEmpty(t *testing.T) {
	client := &stubClient{}
	s := New(client, testConfig(), testLogger())

	week := domain.WeeklyPeriod(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC))
	syn := s.Weekly(context.Background(), week, nil, nil)

	assert.Equal(t, 0, client.calls)
	assert.Equal(t, 1, syn.RelevanceScore)
	assert.NotEmpty(t, syn.Summary)
}

func TestMonthlyEvidenceContainedToWeeklies(t *testing.T) {
	client := &stubClient{responses: []string{synthesisJSON(`"2026-W34", "2026-08-24"`)}}
	s := New(client, testConfig(), testLogger())

	weeklies := []domain.Synthesis{
		{
			Period:         domain.Period{Mode: domain.ModeWeekly, Key: "2026-W34"},
			RelevanceScore: 7,
			Summary:        "week in review",
		},
	}

	month := domain.MonthlyPeriod(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC))
	syn := s.Monthly(context.Background(), month, weeklies, nil)

	assert.Equal(t, domain.ModeMonthly, syn.Period.Mode)
	require.Len(t, syn.Trends, 1)
	assert.Equal(t, []string{"2026-W34"}, syn.Trends[0].EvidenceIDs)
}

func TestRelevanceScoreClamped(t *testing.T) {
	client := &stubClient{responses: []string{`{
		"relevance_score": 42,
		"summary": "overexcited",
		"trends": [],
		"highlights": [],
		"actions": []
	}`}}
	s := New(client, testConfig(), testLogger())

	syn := s.Daily(context.Background(), day(), analyses("sig-1"), nil)

	assert.Equal(t, domain.MaxScore, syn.RelevanceScore)
}
