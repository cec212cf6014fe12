// Package analyzer produces the deep per-signal analysis record. One
// signal per request; a signal that cannot be analyzed still yields a
// degraded record so the day's evidence stays complete.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-radar/internal/core/domain"
	"github.com/lueurxax/signal-radar/internal/core/llm"
	"github.com/lueurxax/signal-radar/internal/core/retrypolicy"
	"github.com/lueurxax/signal-radar/internal/core/xerrors"
	"github.com/lueurxax/signal-radar/internal/platform/config"
	"github.com/lueurxax/signal-radar/internal/platform/observability"
)

// Analyzer runs deep analysis over signals that survived ranking and the
// novelty filter.
type Analyzer struct {
	client llm.Client
	cfg    *config.Config
	logger *zerolog.Logger
}

// New creates an analyzer.
func New(client llm.Client, cfg *config.Config, logger *zerolog.Logger) *Analyzer {
	return &Analyzer{client: client, cfg: cfg, logger: logger}
}

// analysisResponse is the JSON shape the service returns.
type analysisResponse struct {
	Summary                   string   `json:"summary"`
	Insights                  []string `json:"insights"`
	CodeArtifacts             []string `json:"code_artifacts"`
	Applicability             string   `json:"applicability"`
	ArchitecturalImplications string   `json:"architectural_implications"`
	Topics                    []string `json:"topics"`
	CompetitiveNotes          string   `json:"competitive_notes"`
}

// Analyze produces the analysis record for one signal. It never returns
// an error: a failed analysis degrades to a minimal record flagged
// AnalysisFailed, which is persisted like any other.
func (a *Analyzer) Analyze(ctx context.Context, sig domain.RankedSignal, noveltyScore float64) domain.AnalyzedSignal {
	resp, err := a.request(ctx, sig, false)

	if err != nil && xerrors.Is(err, xerrors.ErrOutputValidation) {
		a.logger.Warn().
			Err(err).
			Str("signal_id", sig.ID).
			Msg("analysis output invalid, retrying with reinforced instructions")

		resp, err = a.request(ctx, sig, true)
	}

	if err != nil {
		observability.DegradedEvents.WithLabelValues(observability.StageAnalyze).Inc()
		observability.StageProcessed.WithLabelValues(observability.StageAnalyze, observability.StatusDegraded).Inc()

		a.logger.Warn().
			Err(err).
			Str("signal_id", sig.ID).
			Msg("analysis failed, emitting degraded record")

		return degradedRecord(sig, noveltyScore)
	}

	observability.StageProcessed.WithLabelValues(observability.StageAnalyze, observability.StatusOK).Inc()

	return domain.AnalyzedSignal{
		RankedSignal:              sig,
		Summary:                   resp.Summary,
		Insights:                  resp.Insights,
		CodeArtifacts:             resp.CodeArtifacts,
		Applicability:             resp.Applicability,
		ArchitecturalImplications: resp.ArchitecturalImplications,
		Topics:                    resp.Topics,
		CompetitiveNotes:          resp.CompetitiveNotes,
		NoveltyScore:              noveltyScore,
		AnalyzedAt:                time.Now().UTC(),
	}
}

// request performs one analysis round trip, retrying transient failures
// per the configured policy.
func (a *Analyzer) request(ctx context.Context, sig domain.RankedSignal, reinforced bool) (analysisResponse, error) {
	prompt := llm.AnalysisPrompt(formatSignal(sig), reinforced)

	policy := retrypolicy.Policy{
		Retries: a.cfg.AnalyzerRetries,
		Backoff: a.cfg.AnalyzerBackoff,
	}

	var resp llm.Response

	err := retrypolicy.Do(ctx, policy, a.logger, observability.StageAnalyze, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.AnalyzeTimeout)
		defer cancel()

		var callErr error

		resp, callErr = a.client.Complete(callCtx, llm.Request{
			Task:          llm.TaskAnalyze,
			SystemContext: llm.SystemContextArchitect,
			Prompt:        prompt,
			Model:         a.cfg.AnalysisModel,
			ExpectJSON:    true,
		})

		return callErr
	})
	if err != nil {
		return analysisResponse{}, err
	}

	return parseAnalysis(resp.Text)
}

// parseAnalysis validates the required fields of the response.
func parseAnalysis(text string) (analysisResponse, error) {
	var resp analysisResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(text)), &resp); err != nil {
		return analysisResponse{}, fmt.Errorf("%w: parsing analysis: %w", xerrors.ErrOutputValidation, err)
	}

	if strings.TrimSpace(resp.Summary) == "" {
		return analysisResponse{}, fmt.Errorf("%w: analysis summary missing", xerrors.ErrOutputValidation)
	}

	if resp.Insights == nil {
		resp.Insights = []string{}
	}

	if resp.CodeArtifacts == nil {
		resp.CodeArtifacts = []string{}
	}

	if resp.Topics == nil {
		resp.Topics = []string{}
	}

	return resp, nil
}

// degradedRecord is the minimal analysis for a signal the service could
// not process: the ranked signal's own words, nothing invented.
func degradedRecord(sig domain.RankedSignal, noveltyScore float64) domain.AnalyzedSignal {
	return domain.AnalyzedSignal{
		RankedSignal:   sig,
		Summary:        sig.Title,
		Insights:       []string{},
		CodeArtifacts:  []string{},
		Topics:         []string{},
		NoveltyScore:   noveltyScore,
		AnalysisFailed: true,
		AnalyzedAt:     time.Now().UTC(),
	}
}

// formatSignal renders the signal with its ranking metadata as analysis
// context.
func formatSignal(sig domain.RankedSignal) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "id: %s\nsource: %s\nurl: %s\n", sig.ID, sig.Source, sig.SourceURL)
	fmt.Fprintf(&sb, "score: %d impact: %s maturity: %s\n", sig.Score, sig.Impact, sig.Maturity)

	if len(sig.Dimensions) > 0 {
		dims := make([]string, len(sig.Dimensions))
		for i, d := range sig.Dimensions {
			dims[i] = string(d)
		}

		fmt.Fprintf(&sb, "dimensions: %s\n", strings.Join(dims, ", "))
	}

	if sig.Justification != "" {
		fmt.Fprintf(&sb, "ranking justification: %s\n", sig.Justification)
	}

	sb.WriteString("\n")
	sb.WriteString(sig.Title)
	sb.WriteString("\n\n")
	sb.WriteString(sig.Body)

	return sb.String()
}
