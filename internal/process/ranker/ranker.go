// Package ranker scores raw signals in batches through the reasoning
// service. Responses correlate back to inputs by explicit index markers;
// a batch whose response cannot be validated falls back to neutral scores
// rather than losing signals.
package ranker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-radar/internal/core/domain"
	"github.com/lueurxax/signal-radar/internal/core/llm"
	"github.com/lueurxax/signal-radar/internal/core/retrypolicy"
	"github.com/lueurxax/signal-radar/internal/core/xerrors"
	"github.com/lueurxax/signal-radar/internal/platform/config"
	"github.com/lueurxax/signal-radar/internal/platform/observability"
)

// Neutral fallback values applied when a batch cannot be scored.
const (
	fallbackScore         = 5
	fallbackJustification = "scoring unavailable, neutral fallback applied"
)

const maxBodyChars = 2000

// Ranker scores signals batch by batch.
type Ranker struct {
	client llm.Client
	cfg    *config.Config
	logger *zerolog.Logger
}

// New creates a ranker.
func New(client llm.Client, cfg *config.Config, logger *zerolog.Logger) *Ranker {
	return &Ranker{client: client, cfg: cfg, logger: logger}
}

// Rank scores every signal. The result has exactly one entry per input
// signal, in input order. The second return value counts batches that
// took the neutral fallback.
func (r *Ranker) Rank(ctx context.Context, signals []domain.RawSignal) ([]domain.RankedSignal, int) {
	ranked := make([]domain.RankedSignal, 0, len(signals))
	degraded := 0

	for start := 0; start < len(signals); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(signals) {
			end = len(signals)
		}

		batch := signals[start:end]

		fallback := false

		verdicts, err := r.rankBatch(ctx, batch)
		if err != nil {
			degraded++
			fallback = true

			observability.DegradedEvents.WithLabelValues(observability.StageRank).Inc()

			r.logger.Warn().
				Err(err).
				Int("batch_start", start).
				Int("batch_size", len(batch)).
				Msg("batch scoring failed, applying neutral fallback")

			verdicts = neutralVerdicts(len(batch))
		}

		for i, sig := range batch {
			rs := r.apply(sig, verdicts[i], fallback)
			ranked = append(ranked, rs)

			status := observability.StatusOK
			if rs.Discarded {
				status = observability.StatusDiscarded
			}

			observability.StageProcessed.WithLabelValues(observability.StageRank, status).Inc()
		}
	}

	return ranked, degraded
}

// verdict is the per-signal scoring object the service returns.
type verdict struct {
	Index         int      `json:"index"`
	Score         int      `json:"score"`
	Dimensions    []string `json:"dimensions"`
	Impact        string   `json:"impact"`
	Maturity      string   `json:"maturity"`
	Justification string   `json:"justification"`
}

// rankBatch sends one batch and returns verdicts ordered by batch
// position. Transient failures are retried per the configured policy;
// anything else surfaces to the caller for the neutral fallback.
func (r *Ranker) rankBatch(ctx context.Context, batch []domain.RawSignal) ([]verdict, error) {
	prompt := llm.RankBatchPrompt(len(batch), r.cfg.SignalThreshold, formatItems(batch))

	policy := retrypolicy.Policy{
		Retries: r.cfg.RankRetries,
		Backoff: r.cfg.RankBackoff,
	}

	var resp llm.Response

	err := retrypolicy.Do(ctx, policy, r.logger, observability.StageRank, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.RankTimeout)
		defer cancel()

		var callErr error

		resp, callErr = r.client.Complete(callCtx, llm.Request{
			Task:          llm.TaskRank,
			SystemContext: llm.SystemContextArchitect,
			Prompt:        prompt,
			Model:         r.cfg.RankModel,
			ExpectJSON:    true,
		})

		return callErr
	})
	if err != nil {
		return nil, err
	}

	return parseVerdicts(resp.Text, len(batch))
}

// verdictEnvelope is the object-wrapped form of a verdict array. JSON
// response mode forces a top-level object, so providers deliver the array
// under a wrapper key instead of bare.
type verdictEnvelope struct {
	Rankings []verdict `json:"rankings"`
	Items    []verdict `json:"items"`
	Verdicts []verdict `json:"verdicts"`
}

// decodeVerdicts accepts both a bare verdict array and the object-wrapped
// forms.
func decodeVerdicts(text string) ([]verdict, error) {
	extracted := []byte(llm.ExtractJSON(text))

	var raw []verdict
	if err := json.Unmarshal(extracted, &raw); err == nil {
		return raw, nil
	}

	var envelope verdictEnvelope
	if err := json.Unmarshal(extracted, &envelope); err != nil {
		return nil, fmt.Errorf("parsing verdicts: %w", err)
	}

	switch {
	case envelope.Rankings != nil:
		return envelope.Rankings, nil
	case envelope.Items != nil:
		return envelope.Items, nil
	case envelope.Verdicts != nil:
		return envelope.Verdicts, nil
	}

	return nil, errors.New("no verdict array found in response")
}

// parseVerdicts validates the batch correspondence: exactly one verdict
// per signal, every index present exactly once.
func parseVerdicts(text string, n int) ([]verdict, error) {
	raw, err := decodeVerdicts(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xerrors.ErrOutputValidation, err)
	}

	if len(raw) != n {
		return nil, fmt.Errorf("%w: got %d verdicts for %d signals", xerrors.ErrBatchSizeMismatch, len(raw), n)
	}

	ordered := make([]verdict, n)
	seen := make([]bool, n)

	for _, v := range raw {
		if v.Index < 0 || v.Index >= n {
			return nil, fmt.Errorf("%w: verdict index %d out of range [0,%d)", xerrors.ErrOutputValidation, v.Index, n)
		}

		if seen[v.Index] {
			return nil, fmt.Errorf("%w: duplicate verdict index %d", xerrors.ErrOutputValidation, v.Index)
		}

		seen[v.Index] = true
		ordered[v.Index] = v
	}

	for _, v := range ordered {
		if !domain.ImpactLevel(v.Impact).Valid() {
			return nil, fmt.Errorf("%w: unknown impact level %q", xerrors.ErrOutputValidation, v.Impact)
		}

		if !domain.MaturityLevel(v.Maturity).Valid() {
			return nil, fmt.Errorf("%w: unknown maturity level %q", xerrors.ErrOutputValidation, v.Maturity)
		}
	}

	return ordered, nil
}

// apply folds one verdict into the signal. Scores are clamped instead of
// rejected; unknown dimensions are silently dropped.
func (r *Ranker) apply(sig domain.RawSignal, v verdict, fallback bool) domain.RankedSignal {
	score := v.Score
	if score < domain.MinScore {
		score = domain.MinScore
	}

	if score > domain.MaxScore {
		score = domain.MaxScore
	}

	dims := make([]domain.ImpactDimension, 0, len(v.Dimensions))

	for _, d := range v.Dimensions {
		dim := domain.ImpactDimension(d)
		if domain.ValidDimension(dim) {
			dims = append(dims, dim)
		}
	}

	return domain.RankedSignal{
		RawSignal:     sig,
		Score:         score,
		Dimensions:    dims,
		Impact:        domain.ImpactLevel(v.Impact),
		Maturity:      domain.MaturityLevel(v.Maturity),
		Justification: v.Justification,
		Discarded:     score < r.cfg.SignalThreshold,
		Fallback:      fallback,
	}
}

// neutralVerdicts builds the fallback scoring for a whole batch.
func neutralVerdicts(n int) []verdict {
	verdicts := make([]verdict, n)

	for i := range verdicts {
		verdicts[i] = verdict{
			Index:         i,
			Score:         fallbackScore,
			Impact:        string(domain.ImpactMedium),
			Maturity:      string(domain.MaturityEmerging),
			Justification: fallbackJustification,
		}
	}

	return verdicts
}

// formatItems renders the batch with [N] index markers the prompt and the
// response correlation both rely on.
func formatItems(batch []domain.RawSignal) string {
	var sb strings.Builder

	for i, sig := range batch {
		body := truncateBody(sig.Body)

		fmt.Fprintf(&sb, "[%d] source=%s url=%s\n", i, sig.Source, sig.SourceURL)
		sb.WriteString(sig.Title)
		sb.WriteString("\n")
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// truncateBody cuts oversized bodies on a rune boundary so the prompt
// never carries a split UTF-8 sequence.
func truncateBody(body string) string {
	if len(body) <= maxBodyChars {
		return body
	}

	cut := maxBodyChars
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}

	return body[:cut]
}
