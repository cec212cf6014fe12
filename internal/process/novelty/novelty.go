// Package novelty scores how much of a ranked signal is already covered
// by stored analyses. Scores map from cosine distance to [0.1, 1.0]; the
// pipeline excludes below-floor signals from deep analysis.
package novelty

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-radar/internal/core/domain"
	"github.com/lueurxax/signal-radar/internal/knowledge"
	"github.com/lueurxax/signal-radar/internal/platform/config"
	"github.com/lueurxax/signal-radar/internal/platform/observability"
)

// Novelty score bounds. A near-duplicate still gets 0.1, never zero, so
// downstream weighting stays multiplicative.
const (
	minNovelty = 0.1
	maxNovelty = 1.0
)

// Filter assesses ranked signals against the analyses namespace.
type Filter struct {
	store  knowledge.Store
	cfg    *config.Config
	logger *zerolog.Logger
}

// New creates a novelty filter.
func New(store knowledge.Store, cfg *config.Config, logger *zerolog.Logger) *Filter {
	return &Filter{store: store, cfg: cfg, logger: logger}
}

// Assess computes novelty for every non-discarded signal. When the store
// is unreachable the whole stage degrades: every signal passes with full
// novelty and the second return value reports the degradation. A partial
// assessment is never returned.
func (f *Filter) Assess(ctx context.Context, ranked []domain.RankedSignal) ([]domain.NoveltyResult, bool) {
	results := make([]domain.NoveltyResult, 0, len(ranked))

	for _, sig := range ranked {
		if sig.Discarded {
			continue
		}

		matches, err := f.store.Search(ctx, knowledge.NamespaceAnalyses, searchText(sig), f.cfg.NoveltyTopK, knowledge.Filter{})
		if err != nil {
			observability.DegradedEvents.WithLabelValues(observability.StageNovelty).Inc()

			f.logger.Warn().
				Err(err).
				Str("signal_id", sig.ID).
				Msg("knowledge store unreachable, novelty filter degraded to pass-through")

			return passThrough(ranked), true
		}

		results = append(results, f.assessOne(sig, matches))
	}

	return results, false
}

// assessOne maps the neighbor distances of one signal to a novelty score.
func (f *Filter) assessOne(sig domain.RankedSignal, matches []knowledge.Match) domain.NoveltyResult {
	if len(matches) == 0 {
		return domain.NoveltyResult{SignalID: sig.ID, Score: maxNovelty}
	}

	nearest := matches[0].Distance
	mean := 0.0

	neighborIDs := make([]string, 0, len(matches))

	for _, m := range matches {
		mean += m.Distance

		if m.Distance < f.cfg.NoveltyFarDistance {
			neighborIDs = append(neighborIDs, m.ID)
		}
	}

	mean /= float64(len(matches))

	return domain.NoveltyResult{
		SignalID:    sig.ID,
		Score:       score(nearest, mean, f.cfg.NoveltyNearDistance, f.cfg.NoveltyFarDistance),
		NeighborIDs: neighborIDs,
	}
}

// score maps distances to novelty. Monotone nondecreasing in both the
// nearest and the mean distance.
func score(nearest, mean, near, far float64) float64 {
	if nearest <= near {
		return minNovelty
	}

	if nearest >= far {
		return maxNovelty
	}

	s := minNovelty + (maxNovelty-minNovelty)*(mean-near)/(far-near)

	if s < minNovelty {
		return minNovelty
	}

	if s > maxNovelty {
		return maxNovelty
	}

	return s
}

// passThrough grants full novelty to every non-discarded signal.
func passThrough(ranked []domain.RankedSignal) []domain.NoveltyResult {
	results := make([]domain.NoveltyResult, 0, len(ranked))

	for _, sig := range ranked {
		if sig.Discarded {
			continue
		}

		results = append(results, domain.NoveltyResult{SignalID: sig.ID, Score: maxNovelty})
	}

	return results
}

// searchText is the query text for neighbor search. Matches what the
// analyzer later stores as the record body prefix.
func searchText(sig domain.RankedSignal) string {
	return sig.Title + "\n" + sig.Body
}
