// Package pipeline drives one full cycle: ingest, rank, novelty-filter,
// analyze, persist, synthesize, deliver. Strictly sequential; one unit of
// work is in flight at any time. Unit failures degrade locally, store
// write failures and resource exhaustion abort the run.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-radar/internal/core/domain"
	"github.com/lueurxax/signal-radar/internal/core/llm"
	"github.com/lueurxax/signal-radar/internal/core/xerrors"
	"github.com/lueurxax/signal-radar/internal/ingest"
	"github.com/lueurxax/signal-radar/internal/knowledge"
	"github.com/lueurxax/signal-radar/internal/platform/config"
	"github.com/lueurxax/signal-radar/internal/platform/observability"
	"github.com/lueurxax/signal-radar/internal/process/analyzer"
	"github.com/lueurxax/signal-radar/internal/process/novelty"
	"github.com/lueurxax/signal-radar/internal/process/ranker"
	"github.com/lueurxax/signal-radar/internal/process/synthesizer"
	"github.com/lueurxax/signal-radar/internal/report"
)

// Run outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded-complete"
)

// Retrieval limits for synthesis context.
const (
	historyLimit         = 3
	contextAnalysesLimit = 20

	contextQuery = "significant developments for production AI engineering"
)

// DegradedEvent records one fallback activation during a run.
type DegradedEvent struct {
	Stage string
	ID    string
}

// RunSummary is the accounting of one cycle. Every ingested signal ends
// up in exactly one of processed, discarded, excluded or failed.
type RunSummary struct {
	RunID          string
	Mode           domain.SynthesisMode
	Ingested       int
	Processed      int
	Discarded      int
	Excluded       int
	Failed         int
	DegradedEvents []DegradedEvent
	SourceErrors   []ingest.SourceError
	PhaseDurations map[string]time.Duration
	Synthesis      domain.Synthesis
}

// Outcome classifies a completed (non-fatal) run.
func (s *RunSummary) Outcome() string {
	if len(s.DegradedEvents) > 0 || s.Failed > 0 {
		return OutcomeDegraded
	}

	return OutcomeSuccess
}

func (s *RunSummary) degrade(stage, id string) {
	s.DegradedEvents = append(s.DegradedEvents, DegradedEvent{Stage: stage, ID: id})
}

// Deps carries everything a pipeline needs. Stages are constructed here
// so wiring stays in one place.
type Deps struct {
	Collectors *ingest.Set
	Store      knowledge.Store
	Client     llm.Client
	Reporter   report.Reporter
	Config     *config.Config
	Logger     *zerolog.Logger
	Now        func() time.Time
}

// Pipeline is the sequential cycle orchestrator.
type Pipeline struct {
	collectors  *ingest.Set
	normalizer  *ingest.Normalizer
	ranker      *ranker.Ranker
	novelty     *novelty.Filter
	analyzer    *analyzer.Analyzer
	synthesizer *synthesizer.Synthesizer
	store       knowledge.Store
	reporter    report.Reporter
	cfg         *config.Config
	logger      *zerolog.Logger
	now         func() time.Time
}

// New creates a pipeline with all stages wired.
func New(deps Deps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Pipeline{
		collectors:  deps.Collectors,
		normalizer:  ingest.NewNormalizer(deps.Logger),
		ranker:      ranker.New(deps.Client, deps.Config, deps.Logger),
		novelty:     novelty.New(deps.Store, deps.Config, deps.Logger),
		analyzer:    analyzer.New(deps.Client, deps.Config, deps.Logger),
		synthesizer: synthesizer.New(deps.Client, deps.Config, deps.Logger),
		store:       deps.Store,
		reporter:    deps.Reporter,
		cfg:         deps.Config,
		logger:      deps.Logger,
		now:         deps.Now,
	}
}

// Run executes one cycle for the given mode. The summary is returned even
// on fatal errors, covering the work done up to the abort.
func (p *Pipeline) Run(ctx context.Context, mode domain.SynthesisMode) (*RunSummary, error) {
	runID := uuid.NewString()
	logger := p.logger.With().Str("run_id", runID).Str("mode", string(mode)).Logger()

	summary := &RunSummary{
		RunID:          runID,
		Mode:           mode,
		PhaseDurations: make(map[string]time.Duration),
	}

	start := p.now()

	defer func() {
		observability.CycleDuration.WithLabelValues(string(mode)).Observe(p.now().Sub(start).Seconds())
	}()

	logger.Info().Msg("cycle started")

	var err error

	switch mode {
	case domain.ModeWeekly:
		err = p.runWeekly(ctx, &logger, summary)
	case domain.ModeMonthly:
		err = p.runMonthly(ctx, &logger, summary)
	default:
		err = p.runDaily(ctx, &logger, summary)
	}

	if err != nil {
		logger.Error().Err(err).Msg("cycle aborted")

		return summary, err
	}

	logger.Info().
		Str("outcome", summary.Outcome()).
		Int("ingested", summary.Ingested).
		Int("processed", summary.Processed).
		Int("discarded", summary.Discarded).
		Int("excluded", summary.Excluded).
		Int("failed", summary.Failed).
		Msg("cycle finished")

	return summary, nil
}

// runDaily is the full ingest-to-synthesis path.
func (p *Pipeline) runDaily(ctx context.Context, logger *zerolog.Logger, summary *RunSummary) error {
	now := p.now().UTC()
	period := domain.DailyPeriod(now)

	// Ingest
	phase := p.startPhase(summary, "ingest")

	raw, srcErrs := p.collectors.Collect(ctx)
	summary.SourceErrors = srcErrs

	for _, se := range srcErrs {
		summary.degrade(observability.StageIngest, se.Source)
	}

	signals := p.normalizer.Normalize(raw, now)
	summary.Ingested = len(signals)

	phase()

	// Rank
	phase = p.startPhase(summary, "rank")

	ranked, degradedBatches := p.ranker.Rank(ctx, signals)
	for i := 0; i < degradedBatches; i++ {
		summary.degrade(observability.StageRank, "batch")
	}

	phase()

	// Persist every ranked signal, discarded ones included; they are the
	// negative evidence of the day.
	phase = p.startPhase(summary, "persist-signals")

	for _, rs := range ranked {
		if err := p.store.Add(ctx, signalRecord(rs, now)); err != nil {
			phase()

			return fmt.Errorf("persisting signal %s: %w", rs.ID, err)
		}

		if rs.Discarded {
			summary.Discarded++
		}
	}

	phase()

	// Novelty
	phase = p.startPhase(summary, "novelty")

	noveltyResults, noveltyDegraded := p.novelty.Assess(ctx, ranked)
	if noveltyDegraded {
		summary.degrade(observability.StageNovelty, "stage")
	}

	noveltyByID := make(map[string]domain.NoveltyResult, len(noveltyResults))
	for _, nr := range noveltyResults {
		noveltyByID[nr.SignalID] = nr
	}

	phase()

	// Analyze and persist
	phase = p.startPhase(summary, "analyze")

	analyses := make([]domain.AnalyzedSignal, 0, len(noveltyResults))

	for _, rs := range ranked {
		if rs.Discarded {
			continue
		}

		nr := noveltyByID[rs.ID]

		if !noveltyDegraded && nr.Score < p.cfg.NoveltyFloor {
			summary.Excluded++

			observability.StageProcessed.WithLabelValues(observability.StageNovelty, observability.StatusExcluded).Inc()

			logger.Debug().
				Str("signal_id", rs.ID).
				Float64("novelty", nr.Score).
				Strs("neighbors", nr.NeighborIDs).
				Msg("excluding low-novelty signal from analysis")

			continue
		}

		analysis := p.analyzer.Analyze(ctx, rs, nr.Score)
		if analysis.AnalysisFailed {
			summary.Failed++

			summary.degrade(observability.StageAnalyze, rs.ID)
		} else {
			summary.Processed++
		}

		rec, err := analysisRecord(analysis, now)
		if err != nil {
			phase()

			return fmt.Errorf("encoding analysis %s: %w", rs.ID, err)
		}

		if err := p.store.Add(ctx, rec); err != nil {
			phase()

			return fmt.Errorf("persisting analysis %s: %w", rs.ID, err)
		}

		analyses = append(analyses, analysis)
	}

	phase()

	// Synthesize
	phase = p.startPhase(summary, "synthesize")

	history := p.retrieveHistory(ctx, logger, summary)
	syn := p.synthesizer.Daily(ctx, period, analyses, history)

	phase()

	return p.finish(ctx, logger, summary, syn, analyses)
}

// runWeekly rolls up the completed dailies of the current ISO week.
func (p *Pipeline) runWeekly(ctx context.Context, logger *zerolog.Logger, summary *RunSummary) error {
	now := p.now().UTC()
	period := domain.WeeklyPeriod(now)

	phase := p.startPhase(summary, "gather")

	weekStart := startOfISOWeek(now)
	dailies := p.gatherSyntheses(ctx, logger, summary, dailyKeysUpTo(weekStart, now))
	analyses := p.gatherContextAnalyses(ctx, logger, summary, p.cfg.WeeklyMinImpact, weekStart)

	phase()

	phase = p.startPhase(summary, "synthesize")

	syn := p.synthesizer.Weekly(ctx, period, dailies, analyses)

	phase()

	summary.Processed = len(dailies)

	return p.finish(ctx, logger, summary, syn, analyses)
}

// runMonthly rolls up the completed weeklies of the current month.
func (p *Pipeline) runMonthly(ctx context.Context, logger *zerolog.Logger, summary *RunSummary) error {
	now := p.now().UTC()
	period := domain.MonthlyPeriod(now)

	phase := p.startPhase(summary, "gather")

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	weeklies := p.gatherSyntheses(ctx, logger, summary, weeklyKeysUpTo(monthStart, now))
	analyses := p.gatherContextAnalyses(ctx, logger, summary, p.cfg.MonthlyMinImpact, monthStart)

	phase()

	phase = p.startPhase(summary, "synthesize")

	syn := p.synthesizer.Monthly(ctx, period, weeklies, analyses)

	phase()

	summary.Processed = len(weeklies)

	return p.finish(ctx, logger, summary, syn, analyses)
}

// finish persists the synthesis, delivers it and fills the summary. The
// synthesis write is the one delivery-path operation that must succeed.
func (p *Pipeline) finish(ctx context.Context, logger *zerolog.Logger, summary *RunSummary, syn domain.Synthesis, analyses []domain.AnalyzedSignal) error {
	if syn.Mechanical {
		summary.degrade(observability.StageSynthesize, syn.Period.Key)
	}

	rec, err := synthesisRecord(syn)
	if err != nil {
		return fmt.Errorf("encoding synthesis %s: %w", syn.Period.Key, err)
	}

	if err := p.store.Add(ctx, rec); err != nil {
		return fmt.Errorf("persisting synthesis %s: %w", syn.Period.Key, err)
	}

	summary.Synthesis = syn

	if err := p.reporter.Deliver(ctx, syn, analyses); err != nil {
		// Delivery is best-effort; the persisted synthesis is the record.
		summary.degrade("deliver", syn.Period.Key)

		logger.Warn().Err(err).Str("period", syn.Period.Key).Msg("synthesis delivery failed")
	}

	return nil
}

// retrieveHistory pulls a few similar past syntheses as daily context.
// Failures degrade to no history.
func (p *Pipeline) retrieveHistory(ctx context.Context, logger *zerolog.Logger, summary *RunSummary) []domain.Synthesis {
	matches, err := p.store.Search(ctx, knowledge.NamespaceSyntheses, contextQuery, historyLimit, knowledge.Filter{
		Equals: map[string]string{"mode": string(domain.ModeDaily)},
	})
	if err != nil {
		summary.degrade(observability.StageStore, "history")

		observability.StageProcessed.WithLabelValues(observability.StageStore, observability.StatusError).Inc()

		logger.Warn().Err(err).Msg("history retrieval failed, synthesizing without prior context")

		return nil
	}

	return decodeSyntheses(logger, matches)
}

// gatherSyntheses fetches stored syntheses by period key. Missing keys
// are normal (quiet days); an unreachable store degrades to whatever was
// gathered.
func (p *Pipeline) gatherSyntheses(ctx context.Context, logger *zerolog.Logger, summary *RunSummary, keys []string) []domain.Synthesis {
	out := make([]domain.Synthesis, 0, len(keys))

	for _, key := range keys {
		rec, err := p.store.Get(ctx, knowledge.NamespaceSyntheses, key)
		if err != nil {
			if xerrors.Is(err, xerrors.ErrNotFound) {
				continue
			}

			summary.degrade(observability.StageStore, key)

			observability.StageProcessed.WithLabelValues(observability.StageStore, observability.StatusError).Inc()

			logger.Warn().Err(err).Str("period", key).Msg("synthesis retrieval failed")

			continue
		}

		syn, err := decodeSynthesis(rec.Metadata)
		if err != nil {
			summary.degrade(observability.StageStore, key)

			logger.Warn().Err(err).Str("period", key).Msg("stored synthesis undecodable")

			continue
		}

		out = append(out, syn)
	}

	return out
}

// gatherContextAnalyses retrieves high-relevance analyses since the
// period start, one impact level at a time from minImpact upward.
func (p *Pipeline) gatherContextAnalyses(ctx context.Context, logger *zerolog.Logger, summary *RunSummary, minImpact string, since time.Time) []domain.AnalyzedSignal {
	minRank := domain.ImpactLevel(minImpact).Rank()

	var out []domain.AnalyzedSignal

	for _, level := range []domain.ImpactLevel{domain.ImpactLow, domain.ImpactMedium, domain.ImpactHigh, domain.ImpactCritical} {
		if level.Rank() < minRank {
			continue
		}

		matches, err := p.store.Search(ctx, knowledge.NamespaceAnalyses, contextQuery, contextAnalysesLimit, knowledge.Filter{
			Equals:       map[string]string{"impact": string(level)},
			CreatedAfter: since,
		})
		if err != nil {
			summary.degrade(observability.StageStore, "analyses-"+string(level))

			observability.StageProcessed.WithLabelValues(observability.StageStore, observability.StatusError).Inc()

			logger.Warn().Err(err).Str("impact", string(level)).Msg("context analyses retrieval failed")

			continue
		}

		out = append(out, decodeAnalyses(logger, matches)...)
	}

	if len(out) > contextAnalysesLimit {
		out = out[:contextAnalysesLimit]
	}

	return out
}

// startPhase starts a phase timer; the returned func stops it.
func (p *Pipeline) startPhase(summary *RunSummary, name string) func() {
	start := p.now()

	return func() {
		summary.PhaseDurations[name] += p.now().Sub(start)
	}
}

// signalRecord encodes a ranked signal for the signals namespace.
func signalRecord(rs domain.RankedSignal, now time.Time) knowledge.Record {
	return knowledge.Record{
		Namespace: knowledge.NamespaceSignals,
		ID:        rs.ID,
		Body:      rs.Title + "\n" + rs.Body,
		Metadata: map[string]string{
			"source":    rs.Source,
			"url":       rs.SourceURL,
			"score":     strconv.Itoa(rs.Score),
			"impact":    string(rs.Impact),
			"maturity":  string(rs.Maturity),
			"discarded": strconv.FormatBool(rs.Discarded),
			"fallback":  strconv.FormatBool(rs.Fallback),
			"published": rs.PublishedAt.UTC().Format(time.RFC3339),
			"day":       now.Format("2006-01-02"),
		},
		CreatedAt: now,
	}
}

// analysisRecord encodes an analysis for the analyses namespace. The body
// is the signal content so novelty search compares content against
// content; the analysis itself rides in metadata.
func analysisRecord(a domain.AnalyzedSignal, now time.Time) (knowledge.Record, error) {
	encoded, err := json.Marshal(a)
	if err != nil {
		return knowledge.Record{}, err
	}

	return knowledge.Record{
		Namespace: knowledge.NamespaceAnalyses,
		ID:        a.ID,
		Body:      a.Title + "\n" + a.Body,
		Metadata: map[string]string{
			"score":    strconv.Itoa(a.Score),
			"impact":   string(a.Impact),
			"maturity": string(a.Maturity),
			"novelty":  strconv.FormatFloat(a.NoveltyScore, 'f', 2, 64),
			"failed":   strconv.FormatBool(a.AnalysisFailed),
			"day":      a.AnalyzedAt.UTC().Format("2006-01-02"),
			"analysis": string(encoded),
		},
		CreatedAt: now,
	}, nil
}

// synthesisRecord encodes a synthesis keyed by its period.
func synthesisRecord(syn domain.Synthesis) (knowledge.Record, error) {
	encoded, err := json.Marshal(syn)
	if err != nil {
		return knowledge.Record{}, err
	}

	return knowledge.Record{
		Namespace: knowledge.NamespaceSyntheses,
		ID:        syn.Period.Key,
		Body:      syn.Summary,
		Metadata: map[string]string{
			"mode":       string(syn.Period.Mode),
			"relevance":  strconv.Itoa(syn.RelevanceScore),
			"mechanical": strconv.FormatBool(syn.Mechanical),
			"synthesis":  string(encoded),
		},
		CreatedAt: syn.GeneratedAt,
	}, nil
}

func decodeSynthesis(metadata map[string]string) (domain.Synthesis, error) {
	var syn domain.Synthesis
	if err := json.Unmarshal([]byte(metadata["synthesis"]), &syn); err != nil {
		return domain.Synthesis{}, fmt.Errorf("decoding synthesis: %w", err)
	}

	return syn, nil
}

func decodeSyntheses(logger *zerolog.Logger, matches []knowledge.Match) []domain.Synthesis {
	out := make([]domain.Synthesis, 0, len(matches))

	for _, m := range matches {
		syn, err := decodeSynthesis(m.Metadata)
		if err != nil {
			logger.Warn().Err(err).Str("id", m.ID).Msg("skipping undecodable synthesis")

			continue
		}

		out = append(out, syn)
	}

	return out
}

func decodeAnalyses(logger *zerolog.Logger, matches []knowledge.Match) []domain.AnalyzedSignal {
	out := make([]domain.AnalyzedSignal, 0, len(matches))

	for _, m := range matches {
		var a domain.AnalyzedSignal
		if err := json.Unmarshal([]byte(m.Metadata["analysis"]), &a); err != nil {
			logger.Warn().Err(err).Str("id", m.ID).Msg("skipping undecodable analysis")

			continue
		}

		out = append(out, a)
	}

	return out
}

// dailyKeysUpTo lists daily period keys from start through now.
func dailyKeysUpTo(start, now time.Time) []string {
	var keys []string

	for cursor := start; !cursor.After(now); cursor = cursor.AddDate(0, 0, 1) {
		keys = append(keys, domain.DailyPeriod(cursor).Key)
	}

	return keys
}

// weeklyKeysUpTo lists the distinct weekly period keys between start and
// now.
func weeklyKeysUpTo(start, now time.Time) []string {
	var keys []string

	seen := make(map[string]bool)

	for cursor := start; !cursor.After(now); cursor = cursor.AddDate(0, 0, 1) {
		key := domain.WeeklyPeriod(cursor).Key
		if !seen[key] {
			seen[key] = true

			keys = append(keys, key)
		}
	}

	return keys
}

// startOfISOWeek returns the Monday of t's ISO week.
func startOfISOWeek(t time.Time) time.Time {
	t = t.UTC().Truncate(24 * time.Hour)

	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}

	return t.AddDate(0, 0, 1-weekday)
}
