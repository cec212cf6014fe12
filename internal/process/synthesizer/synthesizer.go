// Package synthesizer folds analyses into daily briefs and rolls briefs
// up into weekly and monthly views. Containment holds by construction:
// the evidence a synthesis may cite is exactly the id set of the inputs
// passed in, and anything else the service invents is stripped.
package synthesizer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-radar/internal/core/domain"
	"github.com/lueurxax/signal-radar/internal/core/llm"
	"github.com/lueurxax/signal-radar/internal/core/xerrors"
	"github.com/lueurxax/signal-radar/internal/platform/config"
	"github.com/lueurxax/signal-radar/internal/platform/observability"
)

// Generation path labels for metrics.
const (
	pathLLM        = "llm"
	pathMechanical = "mechanical"
	pathEmpty      = "empty"
)

const emptyPeriodScore = 1

// Synthesizer generates period syntheses.
type Synthesizer struct {
	client llm.Client
	cfg    *config.Config
	logger *zerolog.Logger
}

// New creates a synthesizer.
func New(client llm.Client, cfg *config.Config, logger *zerolog.Logger) *Synthesizer {
	return &Synthesizer{client: client, cfg: cfg, logger: logger}
}

// Daily builds the daily brief from the day's analyses. History carries
// similarity-retrieved prior syntheses as context only; they cannot be
// cited as evidence.
func (s *Synthesizer) Daily(ctx context.Context, period domain.Period, analyses []domain.AnalyzedSignal, history []domain.Synthesis) domain.Synthesis {
	if len(analyses) == 0 {
		return s.emptySynthesis(period, "No signals were analyzed in this period.")
	}

	evidence := make(map[string]bool, len(analyses))
	items := make([]fallbackItem, 0, len(analyses))

	var body strings.Builder

	for _, a := range analyses {
		evidence[a.ID] = true
		items = append(items, fallbackItem{ID: a.ID, Title: a.Title, Score: a.Score})

		formatAnalysis(&body, a)
	}

	if len(history) > 0 {
		body.WriteString("\nPrior context (NOT citable as evidence):\n")

		for _, h := range history {
			fmt.Fprintf(&body, "- [%s] %s\n", h.Period.Key, h.Summary)
		}
	}

	return s.synthesize(ctx, period, body.String(), evidence, items, nil)
}

// Weekly rolls the week's daily briefs up. Evidence ids can only be the
// period keys of the dailies passed in; analyses are supporting context.
func (s *Synthesizer) Weekly(ctx context.Context, period domain.Period, dailies []domain.Synthesis, analyses []domain.AnalyzedSignal) domain.Synthesis {
	if len(dailies) == 0 {
		return s.emptySynthesis(period, "No daily briefs were produced this week.")
	}

	evidence := make(map[string]bool, len(dailies))
	items := make([]fallbackItem, 0, len(dailies))

	var body strings.Builder

	for _, d := range dailies {
		evidence[d.Period.Key] = true
		items = append(items, fallbackItem{ID: d.Period.Key, Title: d.Summary, Score: d.RelevanceScore})

		formatSynthesis(&body, d)
	}

	writeSupportingAnalyses(&body, analyses)

	return s.synthesize(ctx, period, body.String(), evidence, items, highlightKeys(dailies))
}

// Monthly rolls the month's weekly reviews up. Evidence ids can only be
// the period keys of the weeklies passed in.
func (s *Synthesizer) Monthly(ctx context.Context, period domain.Period, weeklies []domain.Synthesis, analyses []domain.AnalyzedSignal) domain.Synthesis {
	if len(weeklies) == 0 {
		return s.emptySynthesis(period, "No weekly reviews were produced this month.")
	}

	evidence := make(map[string]bool, len(weeklies))
	items := make([]fallbackItem, 0, len(weeklies))

	var body strings.Builder

	for _, w := range weeklies {
		evidence[w.Period.Key] = true
		items = append(items, fallbackItem{ID: w.Period.Key, Title: w.Summary, Score: w.RelevanceScore})

		formatSynthesis(&body, w)
	}

	writeSupportingAnalyses(&body, analyses)

	return s.synthesize(ctx, period, body.String(), evidence, items, highlightKeys(weeklies))
}

// synthesisResponse is the JSON shape shared by all three modes.
type synthesisResponse struct {
	RelevanceScore    int                     `json:"relevance_score"`
	Summary           string                  `json:"summary"`
	Trends            []domain.Trend          `json:"trends"`
	Highlights        []string                `json:"highlights"`
	Actions           []string                `json:"actions"`
	MaturityChanges   []domain.MaturityChange `json:"maturity_changes"`
	CompetitiveShifts []string                `json:"competitive_shifts"`
	RiskAssessment    string                  `json:"risk_assessment"`
}

// synthesize runs the service round trip for one period and falls back to
// the mechanical digest when it fails. A synthesis is always returned.
// Rollups pass the constituent syntheses' highlights as priorHighlights so
// a weekly never re-lists what a daily already highlighted.
func (s *Synthesizer) synthesize(ctx context.Context, period domain.Period, body string, evidence map[string]bool, items []fallbackItem, priorHighlights map[string]bool) domain.Synthesis {
	resp, err := s.request(ctx, period, body)
	if err != nil {
		observability.DegradedEvents.WithLabelValues(observability.StageSynthesize).Inc()
		observability.SynthesisEmitted.WithLabelValues(string(period.Mode), pathMechanical).Inc()

		s.logger.Warn().
			Err(err).
			Str("mode", string(period.Mode)).
			Str("period", period.Key).
			Msg("synthesis failed, emitting mechanical digest")

		return s.mechanical(period, items)
	}

	observability.SynthesisEmitted.WithLabelValues(string(period.Mode), pathLLM).Inc()

	return domain.Synthesis{
		Period:            period,
		RelevanceScore:    clampScore(resp.RelevanceScore),
		Summary:           resp.Summary,
		Trends:            containTrends(resp.Trends, evidence),
		Highlights:        dedupe(resp.Highlights, priorHighlights),
		Actions:           emptyIfNil(resp.Actions),
		MaturityChanges:   validMaturityChanges(resp.MaturityChanges),
		CompetitiveShifts: emptyIfNil(resp.CompetitiveShifts),
		RiskAssessment:    resp.RiskAssessment,
		GeneratedAt:       time.Now().UTC(),
	}
}

func (s *Synthesizer) request(ctx context.Context, period domain.Period, body string) (synthesisResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.SynthesisTimeout)
	defer cancel()

	resp, err := s.client.Complete(callCtx, llm.Request{
		Task:          llm.TaskSynthesis,
		SystemContext: llm.SystemContextArchitect,
		Prompt:        llm.SynthesisPrompt(string(period.Mode), period.Key, body),
		Model:         s.cfg.SynthesisModel,
		ExpectJSON:    true,
	})
	if err != nil {
		return synthesisResponse{}, err
	}

	var parsed synthesisResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Text)), &parsed); err != nil {
		return synthesisResponse{}, fmt.Errorf("%w: parsing synthesis: %w", xerrors.ErrOutputValidation, err)
	}

	if strings.TrimSpace(parsed.Summary) == "" {
		return synthesisResponse{}, fmt.Errorf("%w: synthesis summary missing", xerrors.ErrOutputValidation)
	}

	return parsed, nil
}

// fallbackItem is one input as the mechanical digest presents it.
type fallbackItem struct {
	ID    string
	Title string
	Score int
}

// mechanical is the deterministic fallback digest: inputs listed in rank
// order with a computed aggregate relevance. Flagged so readers know no
// reasoning happened.
func (s *Synthesizer) mechanical(period domain.Period, items []fallbackItem) domain.Synthesis {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})

	highlights := make([]string, 0, len(items))
	sum := 0

	for _, item := range items {
		highlights = append(highlights, fmt.Sprintf("[%s] (score %d) %s", item.ID, item.Score, firstLine(item.Title)))
		sum += item.Score
	}

	// Floor of the mean: a digest without reasoning should not look more
	// relevant than its inputs.
	aggregate := emptyPeriodScore
	if len(items) > 0 {
		aggregate = clampScore(int(math.Floor(float64(sum) / float64(len(items)))))
	}

	return domain.Synthesis{
		Period:            period,
		RelevanceScore:    aggregate,
		Summary:           fmt.Sprintf("Mechanical digest: %d inputs listed in rank order. Synthesis was unavailable.", len(items)),
		Trends:            []domain.Trend{},
		Highlights:        highlights,
		Actions:           []string{},
		MaturityChanges:   []domain.MaturityChange{},
		CompetitiveShifts: []string{},
		Mechanical:        true,
		GeneratedAt:       time.Now().UTC(),
	}
}

// emptySynthesis is the valid result for a period with no inputs.
func (s *Synthesizer) emptySynthesis(period domain.Period, summary string) domain.Synthesis {
	observability.SynthesisEmitted.WithLabelValues(string(period.Mode), pathEmpty).Inc()

	return domain.Synthesis{
		Period:            period,
		RelevanceScore:    emptyPeriodScore,
		Summary:           summary,
		Trends:            []domain.Trend{},
		Highlights:        []string{},
		Actions:           []string{},
		MaturityChanges:   []domain.MaturityChange{},
		CompetitiveShifts: []string{},
		GeneratedAt:       time.Now().UTC(),
	}
}

// containTrends strips evidence ids that are not inputs of this synthesis
// and drops trends left without evidence.
func containTrends(trends []domain.Trend, evidence map[string]bool) []domain.Trend {
	contained := make([]domain.Trend, 0, len(trends))

	for _, t := range trends {
		kept := make([]string, 0, len(t.EvidenceIDs))

		for _, id := range t.EvidenceIDs {
			if evidence[id] {
				kept = append(kept, id)
			}
		}

		if len(kept) == 0 {
			continue
		}

		t.EvidenceIDs = kept

		if t.Confidence < 0 {
			t.Confidence = 0
		}

		if t.Confidence > 1 {
			t.Confidence = 1
		}

		contained = append(contained, t)
	}

	return contained
}

// validMaturityChanges keeps only changes whose endpoints are real
// maturity levels.
func validMaturityChanges(changes []domain.MaturityChange) []domain.MaturityChange {
	out := make([]domain.MaturityChange, 0, len(changes))

	for _, c := range changes {
		if c.Topic == "" || !c.From.Valid() || !c.To.Valid() {
			continue
		}

		out = append(out, c)
	}

	return out
}

func clampScore(score int) int {
	if score < domain.MinScore {
		return domain.MinScore
	}

	if score > domain.MaxScore {
		return domain.MaxScore
	}

	return score
}

// dedupe drops repeats within items and anything already present in seen.
// The seen map is mutated; pass nil to dedupe within the list only.
func dedupe(items []string, seen map[string]bool) []string {
	if seen == nil {
		seen = make(map[string]bool, len(items))
	}

	out := make([]string, 0, len(items))

	for _, item := range items {
		key := highlightKey(item)
		if key == "" || seen[key] {
			continue
		}

		seen[key] = true

		out = append(out, item)
	}

	return out
}

func highlightKey(item string) string {
	return strings.ToLower(strings.TrimSpace(item))
}

// highlightKeys collects the highlight keys of the constituent syntheses a
// rollup is built from.
func highlightKeys(syntheses []domain.Synthesis) map[string]bool {
	keys := make(map[string]bool)

	for _, syn := range syntheses {
		for _, h := range syn.Highlights {
			if key := highlightKey(h); key != "" {
				keys[key] = true
			}
		}
	}

	return keys
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}

	return items
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}

	return text
}

func formatAnalysis(sb *strings.Builder, a domain.AnalyzedSignal) {
	fmt.Fprintf(sb, "[%s] score=%d impact=%s maturity=%s novelty=%.2f\n", a.ID, a.Score, a.Impact, a.Maturity, a.NoveltyScore)
	fmt.Fprintf(sb, "%s\n%s\n", a.Title, a.Summary)

	for _, insight := range a.Insights {
		fmt.Fprintf(sb, "- %s\n", insight)
	}

	if a.CompetitiveNotes != "" {
		fmt.Fprintf(sb, "competitive: %s\n", a.CompetitiveNotes)
	}

	if a.AnalysisFailed {
		sb.WriteString("(analysis degraded: summary is the raw title)\n")
	}

	sb.WriteString("\n")
}

func formatSynthesis(sb *strings.Builder, syn domain.Synthesis) {
	fmt.Fprintf(sb, "[%s] relevance=%d\n%s\n", syn.Period.Key, syn.RelevanceScore, syn.Summary)

	for _, t := range syn.Trends {
		fmt.Fprintf(sb, "- trend: %s (confidence %.2f)\n", t.Statement, t.Confidence)
	}

	for _, h := range syn.Highlights {
		fmt.Fprintf(sb, "- highlight: %s\n", h)
	}

	if syn.Mechanical {
		sb.WriteString("(mechanical digest, no reasoning applied)\n")
	}

	sb.WriteString("\n")
}

// writeSupportingAnalyses appends high-relevance analyses as context. They
// are not part of the evidence set.
func writeSupportingAnalyses(sb *strings.Builder, analyses []domain.AnalyzedSignal) {
	if len(analyses) == 0 {
		return
	}

	sb.WriteString("\nSupporting analyses (NOT citable as evidence):\n")

	for _, a := range analyses {
		fmt.Fprintf(sb, "- [%s] score=%d %s\n", a.ID, a.Score, firstLine(a.Summary))
	}
}
